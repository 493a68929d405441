package utils

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/asaidimu/go-folio/core/schema"
)

// Ptr returns a pointer to v, for optional fields such as number bounds.
func Ptr[T any](v T) *T {
	return &v
}

// DecodeDocument parses a JSON object into an attribute bag. Numbers are kept
// as json.Number so their text reaches the validator unchanged.
func DecodeDocument(data []byte) (schema.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc schema.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("DecodeDocument: failed to decode JSON object: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("DecodeDocument: input must be a JSON object, got null")
	}
	if dec.More() {
		return nil, fmt.Errorf("DecodeDocument: unexpected data after the JSON object")
	}
	return doc, nil
}

// DecodeTemplates parses a JSON array of template definitions.
func DecodeTemplates(data []byte) ([]*schema.Template, error) {
	var templates []*schema.Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("DecodeTemplates: failed to decode templates: %w", err)
	}
	return templates, nil
}

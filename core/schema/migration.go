package schema

import "fmt"

// SchemaChangeType classifies a difference between two versions of a schema.
type SchemaChangeType string

const (
	SchemaChangeAddField    SchemaChangeType = "addField"
	SchemaChangeRemoveField SchemaChangeType = "removeField"
	SchemaChangeModifyField SchemaChangeType = "modifyField"
	SchemaChangeRetypeField SchemaChangeType = "retypeField"
)

// CodeFieldRetyped is reported when an existing field changes its type.
const CodeFieldRetyped = "FIELD_RETYPED"

// SchemaChange is one field-level difference between two schemas.
type SchemaChange struct {
	Type    SchemaChangeType `json:"type"`
	FieldID string           `json:"fieldId"`
	From    FieldType        `json:"from,omitempty"`
	To      FieldType        `json:"to,omitempty"`
}

// Diff lists the field changes needed to turn prev into next. Removed fields
// come first in prev's order, then added and modified fields in next's order.
func Diff(prev, next *Schema) []SchemaChange {
	var changes []SchemaChange
	for _, f := range prev.Fields {
		if next.FindField(f.Base().ID) == nil {
			changes = append(changes, SchemaChange{Type: SchemaChangeRemoveField, FieldID: f.Base().ID, From: f.Type()})
		}
	}
	for _, f := range next.Fields {
		id := f.Base().ID
		old := prev.FindField(id)
		switch {
		case old == nil:
			changes = append(changes, SchemaChange{Type: SchemaChangeAddField, FieldID: id, To: f.Type()})
		case old.Type() != f.Type():
			changes = append(changes, SchemaChange{Type: SchemaChangeRetypeField, FieldID: id, From: old.Type(), To: f.Type()})
		case !sameField(old, f):
			changes = append(changes, SchemaChange{Type: SchemaChangeModifyField, FieldID: id, From: old.Type(), To: f.Type()})
		}
	}
	return changes
}

// CheckEvolution reports changes that would leave stored records with values of
// the wrong type. Field ids are the keys of stored data, so a field may be
// added, removed or relabeled but never retyped.
func CheckEvolution(prev, next *Schema) []Issue {
	var issues []Issue
	for _, change := range Diff(prev, next) {
		if change.Type != SchemaChangeRetypeField {
			continue
		}
		issues = append(issues, Issue{
			Code:    CodeFieldRetyped,
			Field:   "fields." + change.FieldID,
			Message: fmt.Sprintf("Field '%s' cannot change type from %s to %s", change.FieldID, change.From, change.To),
		})
	}
	return issues
}

func sameField(a, b Field) bool {
	ra, errA := MarshalField(a)
	rb, errB := MarshalField(b)
	return errA == nil && errB == nil && string(ra) == string(rb)
}

package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-folio/core/schema"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateExists   = errors.New("template already exists")
	ErrRecordNotFound   = errors.New("record not found")
	ErrViewNotFound     = errors.New("view not found")
	ErrWrongViewType    = errors.New("view cannot be rendered this way")
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrUniqueViolation  = errors.New("unique index violated")
)

// ValidationError carries the issues that rejected a record. It matches
// ErrInvalidRecord under errors.Is.
type ValidationError struct {
	TemplateID string
	Details    []schema.Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record rejected by template %s: %s", e.TemplateID, joinIssues(e.Details))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

// TemplateError carries the issues that rejected a template definition or a
// change to one. It matches ErrInvalidTemplate under errors.Is.
type TemplateError struct {
	Issues []schema.Issue
}

func (e *TemplateError) Error() string {
	return "invalid template: " + joinIssues(e.Issues)
}

func (e *TemplateError) Unwrap() error { return ErrInvalidTemplate }

func joinIssues(issues []schema.Issue) string {
	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		parts = append(parts, is.Field+": "+is.Message)
	}
	return strings.Join(parts, "; ")
}

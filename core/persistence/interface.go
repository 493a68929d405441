package persistence

import (
	"context"
	"strings"

	"github.com/asaidimu/go-folio/core/schema"
	"github.com/google/uuid"
)

// StoreOptions configures how a database-backed store prepares its tables.
type StoreOptions struct {
	// CreateTables creates the template and record tables when missing.
	CreateTables bool

	// CreateIndexes turns the index hints of a template into database indexes
	// over the record data when the template is saved.
	CreateIndexes bool

	// TablePrefix is prepended to every table and index name.
	TablePrefix string

	// SchemaName for databases that support it (e.g., PostgreSQL).
	SchemaName string
}

// DefaultStoreOptions returns the options used when none are given.
func DefaultStoreOptions() *StoreOptions {
	return &StoreOptions{
		CreateTables:  true,
		CreateIndexes: true,
	}
}

// IndexName derives the database name of a template index hint. The template
// part is a hash of the full template id, so ids sharing a prefix never
// collide, and the name stays within PostgreSQL's 63 byte limit for short
// prefixes and index names.
func IndexName(prefix, templateID string, index schema.IndexDefinition) string {
	sum := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(templateID)).String(), "-", "")
	return prefix + "idx_" + sum[:16] + "_" + index.Name
}

// TemplateStore persists template definitions.
type TemplateStore interface {
	// SaveTemplate inserts the template or replaces the one with the same id.
	SaveTemplate(ctx context.Context, t *schema.Template) error
	// Template returns ErrTemplateNotFound when no template has the id.
	Template(ctx context.Context, id string) (*schema.Template, error)
	// Templates lists every template, oldest first.
	Templates(ctx context.Context) ([]*schema.Template, error)
	// DeleteTemplate removes the template and all of its records.
	DeleteTemplate(ctx context.Context, id string) error
}

// RecordStore persists validated records.
type RecordStore interface {
	// InsertRecord returns ErrUniqueViolation when a unique index of the
	// record's template already holds the same values.
	InsertRecord(ctx context.Context, r *schema.Record) error
	// Records lists the records of a template, oldest first.
	Records(ctx context.Context, templateID string) ([]schema.Record, error)
	// Record returns ErrRecordNotFound when no record has the id.
	Record(ctx context.Context, id string) (*schema.Record, error)
	DeleteRecord(ctx context.Context, id string) error
}

// Store is the full storage contract used by RecordService.
type Store interface {
	TemplateStore
	RecordStore
}

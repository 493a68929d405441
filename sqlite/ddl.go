package sqlite

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-folio/core/persistence"
	"github.com/asaidimu/go-folio/core/schema"
)

// quoteIdentifier quotes a table, column or index name.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a string literal for statements that cannot take bound
// parameters, such as the WHERE clause of a partial index.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (s *Store) templatesTable() string {
	return quoteIdentifier(s.options.TablePrefix + "templates")
}

func (s *Store) recordsTable() string {
	return quoteIdentifier(s.options.TablePrefix + "records")
}

// createTablesSQL returns the statements creating the template and record
// tables. Timestamps are stored as Unix nanoseconds so they sort numerically.
func (s *Store) createTablesSQL() []string {
	records := s.recordsTable()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	definition TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`, s.templatesTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	template_id TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`, records),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (template_id, created_at)`,
			quoteIdentifier(s.options.TablePrefix+"records_by_template"), records),
	}
}

func (s *Store) indexName(templateID string, index schema.IndexDefinition) string {
	return persistence.IndexName(s.options.TablePrefix, templateID, index)
}

// createIndexSQL turns a template index hint into a partial expression index
// over the record data of that template.
func (s *Store) createIndexSQL(templateID string, index schema.IndexDefinition) (string, error) {
	if len(index.Fields) == 0 {
		return "", fmt.Errorf("index %s has no fields", index.Name)
	}
	exprs := make([]string, 0, len(index.Fields))
	for _, f := range index.Fields {
		exprs = append(exprs, fmt.Sprintf("json_extract(data, %s)", quoteLiteral(`$."`+f+`"`)))
	}

	var b strings.Builder
	b.WriteString("CREATE ")
	if index.Unique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX IF NOT EXISTS %s ON %s (%s) WHERE template_id = %s",
		quoteIdentifier(s.indexName(templateID, index)),
		s.recordsTable(),
		strings.Join(exprs, ", "),
		quoteLiteral(templateID),
	)
	return b.String(), nil
}

func (s *Store) dropIndexSQL(templateID string, index schema.IndexDefinition) string {
	return "DROP INDEX IF EXISTS " + quoteIdentifier(s.indexName(templateID, index))
}

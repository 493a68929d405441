package postgres

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-folio/core/persistence"
	"github.com/asaidimu/go-folio/core/schema"
)

// qualified prefixes name and, when configured, qualifies it with the schema.
func (s *Store) qualified(name string) string {
	name = s.options.TablePrefix + name
	if s.options.SchemaName != "" {
		return quoteIdentifier(s.options.SchemaName) + "." + quoteIdentifier(name)
	}
	return quoteIdentifier(name)
}

func (s *Store) templatesTable() string { return s.qualified("templates") }
func (s *Store) recordsTable() string   { return s.qualified("records") }

func (s *Store) createTablesSQL() []string {
	records := s.recordsTable()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	definition JSONB NOT NULL,
	created_at BIGINT NOT NULL
)`, s.templatesTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	template_id TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at BIGINT NOT NULL
)`, records),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (template_id, created_at)`,
			quoteIdentifier(s.options.TablePrefix+"records_by_template"), records),
	}
}

func (s *Store) indexName(templateID string, index schema.IndexDefinition) string {
	return persistence.IndexName(s.options.TablePrefix, templateID, index)
}

func (s *Store) createIndexSQL(templateID string, index schema.IndexDefinition) (string, error) {
	if len(index.Fields) == 0 {
		return "", fmt.Errorf("index %s has no fields", index.Name)
	}
	exprs := make([]string, 0, len(index.Fields))
	for _, f := range index.Fields {
		exprs = append(exprs, fmt.Sprintf("(data->>%s)", quoteLiteral(f)))
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
	name := quoteIdentifier(s.indexName(templateID, index))
	if s.options.SchemaName != "" {
		name = quoteIdentifier(s.options.SchemaName) + "." + name
	}
	return "DROP INDEX IF EXISTS " + name
}

// Package sqlite implements persistence.Store on a SQLite database. Record
// data is kept as JSON text and template index hints become expression
// indexes over it.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-folio/core/persistence"
	"github.com/asaidimu/go-folio/core/schema"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// dbRunner abstracts the methods shared by *sql.DB and *sql.Tx.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	logger  *zap.Logger
	options *persistence.StoreOptions
}

var _ persistence.Store = (*Store)(nil)

// Open prepares a store on db, creating its tables when options ask for it.
// The caller keeps ownership of db.
func Open(ctx context.Context, db *sql.DB, logger *zap.Logger, options *persistence.StoreOptions) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = persistence.DefaultStoreOptions()
	}
	s := &Store{db: db, logger: logger, options: options}

	if options.CreateTables {
		for _, stmt := range s.createTablesSQL() {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
			}
		}
	}
	return s, nil
}

// withTx runs fn in a transaction, rolling back when it fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) SaveTemplate(ctx context.Context, t *schema.Template) error {
	definition, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", t.ID, err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := s.template(ctx, tx, t.ID)
		if err != nil && !errors.Is(err, persistence.ErrTemplateNotFound) {
			return err
		}
		if prev != nil && s.options.CreateIndexes {
			for _, index := range prev.Schema.Indexes {
				if _, err := tx.ExecContext(ctx, s.dropIndexSQL(prev.ID, index)); err != nil {
					return fmt.Errorf("failed to drop index %s: %w", index.Name, err)
				}
			}
		}

		stmt := fmt.Sprintf(`INSERT INTO %s (id, name, definition, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, definition = excluded.definition, created_at = excluded.created_at`, s.templatesTable())
		s.logger.Debug("Executing SQL UPSERT", zap.String("sql", stmt), zap.String("template", t.ID))
		if _, err := tx.ExecContext(ctx, stmt, t.ID, t.Name, string(definition), t.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to save template %s: %w", t.ID, err)
		}

		if !s.options.CreateIndexes {
			return nil
		}
		for _, index := range t.Schema.Indexes {
			stmt, err := s.createIndexSQL(t.ID, index)
			if err != nil {
				return err
			}
			s.logger.Debug("Creating index", zap.String("sql", stmt))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create index %s: %w", index.Name, mapError(err))
			}
		}
		return nil
	})
}

func (s *Store) Template(ctx context.Context, id string) (*schema.Template, error) {
	return s.template(ctx, s.db, id)
}

func (s *Store) template(ctx context.Context, r dbRunner, id string) (*schema.Template, error) {
	stmt := fmt.Sprintf(`SELECT definition, created_at FROM %s WHERE id = ?`, s.templatesTable())
	var definition string
	var createdAt int64
	err := r.QueryRowContext(ctx, stmt, id).Scan(&definition, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", id, err)
	}
	return decodeTemplate(definition, createdAt)
}

func (s *Store) Templates(ctx context.Context) ([]*schema.Template, error) {
	stmt := fmt.Sprintf(`SELECT definition, created_at FROM %s ORDER BY created_at, id`, s.templatesTable())
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []*schema.Template
	for rows.Next() {
		var definition string
		var createdAt int64
		if err := rows.Scan(&definition, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		t, err := decodeTemplate(definition, createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := s.template(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, index := range t.Schema.Indexes {
			if _, err := tx.ExecContext(ctx, s.dropIndexSQL(id, index)); err != nil {
				return fmt.Errorf("failed to drop index %s: %w", index.Name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE template_id = ?`, s.recordsTable()), id); err != nil {
			return fmt.Errorf("failed to delete records of %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.templatesTable()), id); err != nil {
			return fmt.Errorf("failed to delete template %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) InsertRecord(ctx context.Context, r *schema.Record) error {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", r.ID, err)
	}
	if _, err := s.template(ctx, s.db, r.TemplateID); err != nil {
		return err
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (id, template_id, data, created_at) VALUES (?, ?, ?, ?)`, s.recordsTable())
	s.logger.Debug("Executing SQL INSERT", zap.String("sql", stmt), zap.String("record", r.ID))
	if _, err := s.db.ExecContext(ctx, stmt, r.ID, r.TemplateID, string(data), r.CreatedAt.UnixNano()); err != nil {
		s.logger.Error("Failed to execute INSERT query", zap.Error(err), zap.String("sql", stmt))
		return fmt.Errorf("failed to insert record %s: %w", r.ID, mapError(err))
	}
	return nil
}

func (s *Store) Records(ctx context.Context, templateID string) ([]schema.Record, error) {
	stmt := fmt.Sprintf(`SELECT id, template_id, data, created_at FROM %s WHERE template_id = ? ORDER BY created_at, id`, s.recordsTable())
	rows, err := s.db.QueryContext(ctx, stmt, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()

	var out []schema.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return out, nil
}

func (s *Store) Record(ctx context.Context, id string) (*schema.Record, error) {
	stmt := fmt.Sprintf(`SELECT id, template_id, data, created_at FROM %s WHERE id = ?`, s.recordsTable())
	r, err := scanRecord(s.db.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrRecordNotFound, id)
	}
	return r, err
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.recordsTable()), id)
	if err != nil {
		return fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrRecordNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*schema.Record, error) {
	var r schema.Record
	var data string
	var createdAt int64
	if err := row.Scan(&r.ID, &r.TemplateID, &data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", r.ID, err)
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return &r, nil
}

func decodeTemplate(definition string, createdAt int64) (*schema.Template, error) {
	var t schema.Template
	if err := json.Unmarshal([]byte(definition), &t); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	return &t, nil
}

// mapError translates driver constraint errors into persistence sentinels.
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", persistence.ErrUniqueViolation, err)
	}
	return err
}

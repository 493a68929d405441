// Package postgres implements persistence.Store on PostgreSQL through pgx.
// Record data is kept as jsonb and template index hints become expression
// indexes over it.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-folio/core/persistence"
	"github.com/asaidimu/go-folio/core/schema"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBTX is implemented by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a DBTX that can start transactions.
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store struct {
	db      DB
	logger  *zap.Logger
	options *persistence.StoreOptions
}

var _ persistence.Store = (*Store)(nil)

// Connect creates a connection pool and checks that the server answers.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach PostgreSQL: %w", err)
	}
	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
	)
	return pool, nil
}

// Open prepares a store on db, creating its tables when options ask for it.
func Open(ctx context.Context, db DB, logger *zap.Logger, options *persistence.StoreOptions) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = persistence.DefaultStoreOptions()
	}
	s := &Store{db: db, logger: logger, options: options}

	if options.CreateTables {
		for _, stmt := range s.createTablesSQL() {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
			}
		}
	}
	return s, nil
}

func (s *Store) runInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) SaveTemplate(ctx context.Context, t *schema.Template) error {
	definition, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", t.ID, err)
	}

	return s.runInTx(ctx, func(tx pgx.Tx) error {
		prev, err := s.template(ctx, tx, t.ID)
		if err != nil && !errors.Is(err, persistence.ErrTemplateNotFound) {
			return err
		}
		if prev != nil && s.options.CreateIndexes {
			for _, index := range prev.Schema.Indexes {
				if _, err := tx.Exec(ctx, s.dropIndexSQL(prev.ID, index)); err != nil {
					return fmt.Errorf("failed to drop index %s: %w", index.Name, err)
				}
			}
		}

		stmt := fmt.Sprintf(`INSERT INTO %s (id, name, definition, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, definition = EXCLUDED.definition, created_at = EXCLUDED.created_at`, s.templatesTable())
		s.logger.Debug("Executing SQL UPSERT", zap.String("sql", stmt), zap.String("template", t.ID))
		if _, err := tx.Exec(ctx, stmt, t.ID, t.Name, definition, t.CreatedAt.UnixNano()); err != nil {
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
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create index %s: %w", index.Name, mapError(err))
			}
		}
		return nil
	})
}

func (s *Store) Template(ctx context.Context, id string) (*schema.Template, error) {
	return s.template(ctx, s.db, id)
}

func (s *Store) template(ctx context.Context, db DBTX, id string) (*schema.Template, error) {
	stmt := fmt.Sprintf(`SELECT definition, created_at FROM %s WHERE id = $1`, s.templatesTable())
	var definition []byte
	var createdAt int64
	err := db.QueryRow(ctx, stmt, id).Scan(&definition, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", id, err)
	}
	return decodeTemplate(definition, createdAt)
}

func (s *Store) Templates(ctx context.Context) ([]*schema.Template, error) {
	stmt := fmt.Sprintf(`SELECT definition, created_at FROM %s ORDER BY created_at, id`, s.templatesTable())
	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []*schema.Template
	for rows.Next() {
		var definition []byte
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
	return out, rows.Err()
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.runInTx(ctx, func(tx pgx.Tx) error {
		t, err := s.template(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, index := range t.Schema.Indexes {
			if _, err := tx.Exec(ctx, s.dropIndexSQL(id, index)); err != nil {
				return fmt.Errorf("failed to drop index %s: %w", index.Name, err)
			}
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE template_id = $1`, s.recordsTable()), id); err != nil {
			return fmt.Errorf("failed to delete records of %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.templatesTable()), id); err != nil {
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

	stmt := fmt.Sprintf(`INSERT INTO %s (id, template_id, data, created_at) VALUES ($1, $2, $3, $4)`, s.recordsTable())
	s.logger.Debug("Executing SQL INSERT", zap.String("sql", stmt), zap.String("record", r.ID))
	if _, err := s.db.Exec(ctx, stmt, r.ID, r.TemplateID, data, r.CreatedAt.UnixNano()); err != nil {
		s.logger.Error("Failed to execute INSERT query", zap.Error(err), zap.String("sql", stmt))
		return fmt.Errorf("failed to insert record %s: %w", r.ID, mapError(err))
	}
	return nil
}

func (s *Store) Records(ctx context.Context, templateID string) ([]schema.Record, error) {
	stmt := fmt.Sprintf(`SELECT id, template_id, data, created_at FROM %s WHERE template_id = $1 ORDER BY created_at, id`, s.recordsTable())
	rows, err := s.db.Query(ctx, stmt, templateID)
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
	return out, rows.Err()
}

func (s *Store) Record(ctx context.Context, id string) (*schema.Record, error) {
	stmt := fmt.Sprintf(`SELECT id, template_id, data, created_at FROM %s WHERE id = $1`, s.recordsTable())
	r, err := scanRecord(s.db.QueryRow(ctx, stmt, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrRecordNotFound, id)
	}
	return r, err
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.recordsTable()), id)
	if err != nil {
		return fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrRecordNotFound, id)
	}
	return nil
}

func scanRecord(row pgx.Row) (*schema.Record, error) {
	var r schema.Record
	var data []byte
	var createdAt int64
	if err := row.Scan(&r.ID, &r.TemplateID, &data, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := json.Unmarshal(data, &r.Data); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", r.ID, err)
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return &r, nil
}

func decodeTemplate(definition []byte, createdAt int64) (*schema.Template, error) {
	var t schema.Template
	if err := json.Unmarshal(definition, &t); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	return &t, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %v", persistence.ErrUniqueViolation, err)
	}
	return err
}

// quoteIdentifier quotes a table, column or index name.
func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/asaidimu/go-folio/config"
	"github.com/asaidimu/go-folio/core/persistence"
	"github.com/asaidimu/go-folio/core/schema"
	"github.com/asaidimu/go-folio/postgres"
	"github.com/asaidimu/go-folio/sqlite"
	"github.com/asaidimu/go-folio/utils"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const expenseTemplateJSON = `{
	"name": "Expenses",
	"description": "Household spending",
	"schema": {
		"fields": [
			{"id": "date", "label": "Date", "type": "date", "required": true},
			{"id": "amount", "label": "Amount", "type": "number", "required": true, "min": 0},
			{"id": "category", "label": "Category", "type": "select", "options": ["Food", "Transport", "Rent"]},
			{"id": "note", "label": "Note", "type": "string"},
			{"id": "reimbursed", "label": "Reimbursed", "type": "boolean"}
		],
		"indexes": [{"name": "by_date", "fields": ["date"]}]
	},
	"views": [
		{"type": "form", "id": "entry", "name": "New expense"},
		{"type": "table", "id": "all", "name": "All expenses", "columns": ["date", "amount", "category"]},
		{
			"type": "summary", "id": "overview", "name": "This month", "default": true,
			"timeField": "date",
			"metrics": [
				{"id": "total", "label": "Total spent", "op": "sum", "fieldId": "amount", "format": "currency"},
				{"id": "average", "label": "Average expense", "op": "avg", "fieldId": "amount", "format": "currency"},
				{"id": "entries", "label": "Entries", "op": "count", "format": "number"}
			],
			"groupBy": [{"fieldId": "category", "label": "By category", "limit": 5}]
		},
		{
			"type": "chart", "id": "trend", "name": "Daily spend",
			"timeField": "date", "chartType": "bar",
			"series": [{"metric": {"id": "total", "label": "Total", "op": "sum", "fieldId": "amount"}}]
		}
	]
}`

var samplePayloads = []string{
	`{"date": "2026-01-02", "amount": 42.10, "category": "Food", "note": "Groceries"}`,
	`{"date": "2026-01-05", "amount": "18", "category": "Transport", "reimbursed": "true"}`,
	`{"date": "2026-01-09", "amount": 1200, "category": "Rent"}`,
	`{"date": "2026-01-09", "amount": 9.5, "category": "Food", "note": ""}`,
	`{"date": "2026-13-01", "amount": -3, "category": "Toys", "colour": "red"}`,
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Store, func(), error) {
	options := persistence.DefaultStoreOptions()
	options.TablePrefix = cfg.TablePrefix
	options.SchemaName = cfg.SchemaName

	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		store, err := sqlite.Open(ctx, db, logger.Named("sqlite"), options)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.Open(ctx, pool, logger.Named("postgres"), options)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return persistence.NewMemoryStore(), func() {}, nil
	}
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Driver), zap.Error(err))
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	svc, err := persistence.NewRecordService(store,
		persistence.WithLogger(logger),
		persistence.WithMetrics(persistence.NewMetrics(registry)),
	)
	if err != nil {
		logger.Fatal("Failed to initialize record service", zap.Error(err))
	}

	svc.RegisterSubscription(persistence.SubscriptionOptions{
		Event: persistence.RecordCreateSuccess,
		Label: "print-created",
		Callback: func(ctx context.Context, event persistence.Event) error {
			fmt.Printf("Record added to template '%s'\n", event.Template)
			return nil
		},
	})

	var tmpl schema.Template
	if err := json.Unmarshal([]byte(expenseTemplateJSON), &tmpl); err != nil {
		logger.Fatal("Failed to decode template", zap.Error(err))
	}
	created, err := svc.CreateTemplate(ctx, &tmpl)
	if err != nil {
		logger.Fatal("Failed to create template", zap.Error(err))
	}
	fmt.Printf("Created template %q (%s)\n", created.Name, created.ID)

	for _, payload := range samplePayloads {
		doc, err := utils.DecodeDocument([]byte(payload))
		if err != nil {
			logger.Fatal("Failed to decode payload", zap.Error(err))
		}

		_, err = svc.CreateRecord(ctx, created.ID, doc)
		var verr *persistence.ValidationError
		switch {
		case errors.As(err, &verr):
			fmt.Println("Validation failed! Issues found:")
			for _, issue := range verr.Details {
				fmt.Printf("  %-24s %-10s %s\n", issue.Code, issue.Field, issue.Message)
			}
		case err != nil:
			logger.Fatal("Failed to create record", zap.Error(err))
		}
	}

	summary, err := svc.RenderSummary(ctx, created.ID, "", schema.TimeRange{From: "2026-01-01", To: "2026-01-31"})
	if err != nil {
		logger.Fatal("Failed to render summary", zap.Error(err))
	}
	fmt.Println("-------------------------------------------")
	for _, m := range summary.Metrics {
		fmt.Printf("%-20s %20s\n", m.Label, m.Display)
	}
	for _, g := range summary.Groups {
		fmt.Printf("\n%s\n", g.Label)
		for _, row := range g.Rows {
			fmt.Printf("  %-18s %10.2f %5d\n", row.Key, row.Value, row.Count)
		}
	}
	fmt.Println("-------------------------------------------")

	chart, err := svc.RenderChart(ctx, created.ID, "trend", schema.TimeRange{From: "2026-01-01", To: "2026-01-10"})
	if err != nil {
		logger.Fatal("Failed to render chart", zap.Error(err))
	}
	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(chart); err != nil {
		logger.Fatal("Failed to print chart", zap.Error(err))
	}
}

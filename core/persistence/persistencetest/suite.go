// Package persistencetest holds the behavior every persistence.Store
// implementation is expected to share.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/asaidimu/go-folio/core/persistence"
	"github.com/asaidimu/go-folio/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

// ExpenseTemplate returns a small valid template with a unique index on ref.
func ExpenseTemplate(id string) *schema.Template {
	return &schema.Template{
		ID:   id,
		Name: "Expenses",
		Schema: schema.Schema{
			Fields: []schema.Field{
				schema.DateField{FieldBase: schema.FieldBase{ID: "date", Label: "Date", Required: true}},
				schema.NumberField{FieldBase: schema.FieldBase{ID: "amount", Label: "Amount", Required: true}, Min: floatPtr(0)},
				schema.SelectField{FieldBase: schema.FieldBase{ID: "category", Label: "Category"}, Options: []string{"Food", "Transport"}},
				schema.StringField{FieldBase: schema.FieldBase{ID: "ref", Label: "Reference"}},
				schema.BooleanField{FieldBase: schema.FieldBase{ID: "reimbursed", Label: "Reimbursed"}},
			},
			Indexes: []schema.IndexDefinition{
				{Name: "by_date", Fields: []string{"date"}},
				{Name: "by_ref", Fields: []string{"ref"}, Unique: true},
			},
		},
		Views: []schema.View{
			schema.TableView{ViewBase: schema.ViewBase{ID: "all", Name: "All"}},
			schema.SummaryView{
				ViewBase:  schema.ViewBase{ID: "overview", Name: "Overview", Default: true},
				TimeField: "date",
				Metrics: []schema.Metric{
					{ID: "total", Label: "Total", Op: schema.MetricOpSum, FieldID: "amount", Format: schema.MetricFormatCurrency},
				},
				GroupBy: []schema.GroupBy{{FieldID: "category"}},
			},
			schema.ChartView{
				ViewBase:  schema.ViewBase{ID: "trend", Name: "Trend"},
				TimeField: "date",
				ChartType: schema.ChartTypeLine,
				Series:    []schema.Series{{Metric: schema.Metric{ID: "total", Label: "Total", Op: schema.MetricOpSum, FieldID: "amount"}}},
			},
		},
		CreatedAt: time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC),
	}
}

// RunStoreTests exercises a store created fresh by newStore for each subtest.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) persistence.Store) {
	ctx := context.Background()

	t.Run("Saves and reads back templates", func(t *testing.T) {
		store := newStore(t)
		tmpl := ExpenseTemplate("tmpl-1")
		require.NoError(t, store.SaveTemplate(ctx, tmpl))

		got, err := store.Template(ctx, "tmpl-1")
		require.NoError(t, err)
		assert.Equal(t, "Expenses", got.Name)
		assert.Equal(t, tmpl.Schema.FieldIDs(), got.Schema.FieldIDs())
		require.Len(t, got.Views, 3)
		assert.Equal(t, "overview", got.DefaultView().Base().ID)
		assert.True(t, got.CreatedAt.Equal(tmpl.CreatedAt))
	})

	t.Run("Replaces a template with the same id", func(t *testing.T) {
		store := newStore(t)
		tmpl := ExpenseTemplate("tmpl-1")
		require.NoError(t, store.SaveTemplate(ctx, tmpl))
		tmpl.Name = "Household expenses"
		require.NoError(t, store.SaveTemplate(ctx, tmpl))

		all, err := store.Templates(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Household expenses", all[0].Name)
	})

	t.Run("Lists templates oldest first", func(t *testing.T) {
		store := newStore(t)
		newer := ExpenseTemplate("b")
		newer.CreatedAt = newer.CreatedAt.Add(time.Hour)
		require.NoError(t, store.SaveTemplate(ctx, newer))
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("a")))

		all, err := store.Templates(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "a", all[0].ID)
		assert.Equal(t, "b", all[1].ID)
	})

	t.Run("Reports missing templates", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Template(ctx, "nope")
		assert.ErrorIs(t, err, persistence.ErrTemplateNotFound)
		assert.ErrorIs(t, store.DeleteTemplate(ctx, "nope"), persistence.ErrTemplateNotFound)
	})

	t.Run("Stores records with their scalar types", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("tmpl-1")))
		rec := &schema.Record{
			ID:         "rec-1",
			TemplateID: "tmpl-1",
			Data:       schema.Document{"date": "2026-01-15", "amount": 12.5, "reimbursed": false},
			CreatedAt:  time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.InsertRecord(ctx, rec))

		got, err := store.Record(ctx, "rec-1")
		require.NoError(t, err)
		assert.Equal(t, rec.Data, got.Data)
		assert.Equal(t, "tmpl-1", got.TemplateID)
		assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	})

	t.Run("Lists records oldest first", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("tmpl-1")))
		base := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)
		for i, id := range []string{"r1", "r2", "r3"} {
			require.NoError(t, store.InsertRecord(ctx, &schema.Record{
				ID:         id,
				TemplateID: "tmpl-1",
				Data:       schema.Document{"date": "2026-01-15", "amount": float64(i)},
				CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			}))
		}

		records, err := store.Records(ctx, "tmpl-1")
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "r1", records[0].ID)
		assert.Equal(t, "r3", records[2].ID)
		assert.Equal(t, 2.0, records[2].Data["amount"])
	})

	t.Run("Enforces unique indexes", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("tmpl-1")))
		first := &schema.Record{ID: "r1", TemplateID: "tmpl-1", Data: schema.Document{"amount": 1.0, "ref": "INV-1"}, CreatedAt: time.Now().UTC()}
		require.NoError(t, store.InsertRecord(ctx, first))

		dup := &schema.Record{ID: "r2", TemplateID: "tmpl-1", Data: schema.Document{"amount": 2.0, "ref": "INV-1"}, CreatedAt: time.Now().UTC()}
		assert.ErrorIs(t, store.InsertRecord(ctx, dup), persistence.ErrUniqueViolation)

		noRef := &schema.Record{ID: "r3", TemplateID: "tmpl-1", Data: schema.Document{"amount": 3.0}, CreatedAt: time.Now().UTC()}
		assert.NoError(t, store.InsertRecord(ctx, noRef))
		noRefAgain := &schema.Record{ID: "r4", TemplateID: "tmpl-1", Data: schema.Document{"amount": 4.0}, CreatedAt: time.Now().UTC()}
		assert.NoError(t, store.InsertRecord(ctx, noRefAgain))
	})

	t.Run("Keeps unique indexes of templates with similar ids apart", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("monthly-expenses-a")))
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("monthly-expenses-b")))

		insert := func(id, templateID string) error {
			return store.InsertRecord(ctx, &schema.Record{ID: id, TemplateID: templateID, Data: schema.Document{"amount": 1.0, "ref": "X"}, CreatedAt: time.Now().UTC()})
		}
		require.NoError(t, insert("a1", "monthly-expenses-a"))
		require.NoError(t, insert("b1", "monthly-expenses-b"))
		assert.ErrorIs(t, insert("b2", "monthly-expenses-b"), persistence.ErrUniqueViolation)

		require.NoError(t, store.DeleteTemplate(ctx, "monthly-expenses-a"))
		assert.ErrorIs(t, insert("b3", "monthly-expenses-b"), persistence.ErrUniqueViolation)
	})

	t.Run("Deletes records", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("tmpl-1")))
		require.NoError(t, store.InsertRecord(ctx, &schema.Record{ID: "r1", TemplateID: "tmpl-1", Data: schema.Document{"amount": 1.0}, CreatedAt: time.Now().UTC()}))

		require.NoError(t, store.DeleteRecord(ctx, "r1"))
		_, err := store.Record(ctx, "r1")
		assert.ErrorIs(t, err, persistence.ErrRecordNotFound)
		assert.ErrorIs(t, store.DeleteRecord(ctx, "r1"), persistence.ErrRecordNotFound)
	})

	t.Run("Deleting a template removes its records", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("tmpl-1")))
		require.NoError(t, store.SaveTemplate(ctx, ExpenseTemplate("tmpl-2")))
		require.NoError(t, store.InsertRecord(ctx, &schema.Record{ID: "r1", TemplateID: "tmpl-1", Data: schema.Document{"amount": 1.0}, CreatedAt: time.Now().UTC()}))
		require.NoError(t, store.InsertRecord(ctx, &schema.Record{ID: "r2", TemplateID: "tmpl-2", Data: schema.Document{"amount": 2.0}, CreatedAt: time.Now().UTC()}))

		require.NoError(t, store.DeleteTemplate(ctx, "tmpl-1"))
		_, err := store.Record(ctx, "r1")
		assert.ErrorIs(t, err, persistence.ErrRecordNotFound)
		_, err = store.Record(ctx, "r2")
		assert.NoError(t, err)
	})
}

package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-folio/core/persistence"
	"github.com/asaidimu/go-folio/core/persistence/persistencetest"
	"github.com/asaidimu/go-folio/core/query"
	"github.com/asaidimu/go-folio/core/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, opts ...persistence.Option) (*persistence.RecordService, *persistence.MemoryStore) {
	t.Helper()
	store := persistence.NewMemoryStore()
	opts = append([]persistence.Option{
		persistence.WithLogger(zap.NewNop()),
		persistence.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	svc, err := persistence.NewRecordService(store, opts...)
	require.NoError(t, err)
	return svc, store
}

func createExpenses(t *testing.T, svc *persistence.RecordService) *schema.Template {
	t.Helper()
	tmpl := persistencetest.ExpenseTemplate("")
	tmpl.CreatedAt = time.Time{}
	created, err := svc.CreateTemplate(context.Background(), tmpl)
	require.NoError(t, err)
	return created
}

func TestRecordService_CreateTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("Assigns an id and creation time", func(t *testing.T) {
		svc, store := newService(t)
		created := createExpenses(t, svc)
		assert.NotEmpty(t, created.ID)
		assert.True(t, created.CreatedAt.Equal(fixedNow))

		stored, err := store.Template(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Name, stored.Name)
	})

	t.Run("Rejects an invalid definition", func(t *testing.T) {
		svc, store := newService(t)
		_, err := svc.CreateTemplate(ctx, &schema.Template{Name: "Empty"})
		require.ErrorIs(t, err, persistence.ErrInvalidTemplate)

		var terr *persistence.TemplateError
		require.True(t, errors.As(err, &terr))
		require.NotEmpty(t, terr.Issues)
		assert.Equal(t, "EMPTY_SCHEMA", terr.Issues[0].Code)

		all, err := store.Templates(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Rejects an id already in use", func(t *testing.T) {
		svc, store := newService(t)
		first := persistencetest.ExpenseTemplate("exp")
		_, err := svc.CreateTemplate(ctx, first)
		require.NoError(t, err)
		_, err = svc.CreateRecord(ctx, "exp", map[string]any{"date": "2026-01-02", "amount": 3})
		require.NoError(t, err)

		second := persistencetest.ExpenseTemplate("exp")
		second.Name = "v2"
		second.Schema.Fields[1] = schema.BooleanField{FieldBase: schema.FieldBase{ID: "amount", Label: "Amount"}}
		_, err = svc.CreateTemplate(ctx, second)
		require.ErrorIs(t, err, persistence.ErrTemplateExists)

		stored, err := store.Template(ctx, "exp")
		require.NoError(t, err)
		assert.Equal(t, "Expenses", stored.Name)
		assert.Equal(t, schema.FieldTypeNumber, stored.Schema.FindField("amount").Type())
	})
}

func TestRecordService_UpdateTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("Adding a field is accepted and takes effect for new records", func(t *testing.T) {
		svc, _ := newService(t)
		tmpl := createExpenses(t, svc)

		_, err := svc.CreateRecord(ctx, tmpl.ID, map[string]any{"date": "2026-01-02", "amount": 3, "vendor": "Cafe"})
		require.ErrorIs(t, err, persistence.ErrInvalidRecord)

		tmpl.Schema.Fields = append(tmpl.Schema.Fields, schema.StringField{FieldBase: schema.FieldBase{ID: "vendor", Label: "Vendor"}})
		updated, err := svc.UpdateTemplate(ctx, tmpl)
		require.NoError(t, err)
		assert.True(t, updated.CreatedAt.Equal(fixedNow))

		rec, err := svc.CreateRecord(ctx, tmpl.ID, map[string]any{"date": "2026-01-02", "amount": 3, "vendor": "Cafe"})
		require.NoError(t, err)
		assert.Equal(t, "Cafe", rec.Data["vendor"])
	})

	t.Run("Retyping a field is rejected", func(t *testing.T) {
		svc, _ := newService(t)
		tmpl := createExpenses(t, svc)

		tmpl.Schema.Fields[3] = schema.NumberField{FieldBase: schema.FieldBase{ID: "ref", Label: "Reference"}}
		_, err := svc.UpdateTemplate(ctx, tmpl)
		var terr *persistence.TemplateError
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, schema.CodeFieldRetyped, terr.Issues[0].Code)
	})

	t.Run("Unknown template", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.UpdateTemplate(ctx, persistencetest.ExpenseTemplate("missing"))
		assert.ErrorIs(t, err, persistence.ErrTemplateNotFound)
	})
}

func TestRecordService_CreateRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("Stores normalized data", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics := persistence.NewMetrics(reg)
		svc, _ := newService(t, persistence.WithMetrics(metrics))
		tmpl := createExpenses(t, svc)

		rec, err := svc.CreateRecord(ctx, tmpl.ID, map[string]string{
			"date":       "2026-01-10",
			"amount":     "12.50",
			"category":   "Food",
			"reimbursed": "true",
			"ref":        "",
		})
		require.NoError(t, err)
		assert.Equal(t, schema.Document{"date": "2026-01-10", "amount": 12.5, "category": "Food", "reimbursed": true}, rec.Data)
		assert.True(t, rec.CreatedAt.Equal(fixedNow))

		stored, err := svc.Record(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.Data, stored.Data)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsValidated.WithLabelValues(persistence.OutcomeAccepted)))
	})

	t.Run("Rejects invalid data and stores nothing", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics := persistence.NewMetrics(reg)
		svc, _ := newService(t, persistence.WithMetrics(metrics))
		tmpl := createExpenses(t, svc)

		_, err := svc.CreateRecord(ctx, tmpl.ID, map[string]any{"amount": -1, "category": "Rent"})
		require.ErrorIs(t, err, persistence.ErrInvalidRecord)

		var verr *persistence.ValidationError
		require.True(t, errors.As(err, &verr))
		fields := make([]string, 0, len(verr.Details))
		for _, d := range verr.Details {
			fields = append(fields, d.Field)
		}
		assert.Equal(t, []string{"date", "amount", "category"}, fields)

		records, err := svc.Records(ctx, tmpl.ID)
		require.NoError(t, err)
		assert.Empty(t, records)

		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsValidated.WithLabelValues(persistence.OutcomeRejected)))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ValidationIssues.WithLabelValues(schema.CodeBelowMinimum)))
	})

	t.Run("Unknown template", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.CreateRecord(ctx, "missing", map[string]any{})
		assert.ErrorIs(t, err, persistence.ErrTemplateNotFound)
	})

	t.Run("Validation alone stores nothing", func(t *testing.T) {
		svc, _ := newService(t)
		tmpl := createExpenses(t, svc)
		result, err := svc.ValidateRecord(ctx, tmpl.ID, map[string]any{"date": "2026-01-10", "amount": 4})
		require.NoError(t, err)
		assert.True(t, result.OK)

		records, err := svc.Records(ctx, tmpl.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestRecordService_Events(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	tmpl := createExpenses(t, svc)

	var mu sync.Mutex
	var received []persistence.Event
	id := svc.RegisterSubscription(persistence.SubscriptionOptions{
		Event: persistence.RecordCreateFailed,
		Label: "rejections",
		Callback: func(ctx context.Context, event persistence.Event) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, event)
			return nil
		},
	})
	require.Len(t, svc.Subscriptions(), 1)

	_, err := svc.CreateRecord(ctx, tmpl.ID, map[string]any{"amount": 1})
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	event := received[0]
	mu.Unlock()
	assert.Equal(t, persistence.RecordCreateFailed, event.Type)
	assert.Equal(t, tmpl.ID, event.Template)
	require.Len(t, event.Issues, 1)
	assert.Equal(t, schema.CodeRequiredMissing, event.Issues[0].Code)
	require.NotNil(t, event.Error)

	svc.UnregisterSubscription(id)
	assert.Empty(t, svc.Subscriptions())
}

func TestRecordService_Render(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	svc, _ := newService(t, persistence.WithMetrics(persistence.NewMetrics(reg)))
	tmpl := createExpenses(t, svc)

	for _, data := range []map[string]any{
		{"date": "2026-01-01", "amount": 12, "category": "Food"},
		{"date": "2026-01-31", "amount": 30, "category": "Transport"},
		{"date": "2026-02-01", "amount": 100, "category": "Food"},
		{"date": "2025-12-31", "amount": 7, "category": "Food"},
	} {
		_, err := svc.CreateRecord(ctx, tmpl.ID, data)
		require.NoError(t, err)
	}

	t.Run("Default view is the summary", func(t *testing.T) {
		result, err := svc.RenderSummary(ctx, tmpl.ID, "", schema.TimeRange{Preset: schema.PresetThisMonth})
		require.NoError(t, err)
		assert.Equal(t, "overview", result.ViewID)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 42.0, result.Metrics[0].Value)
		assert.Equal(t, "42.00", result.Metrics[0].Display)
		assert.Equal(t, []query.GroupRow{
			{Key: "Transport", Value: 30, Count: 1},
			{Key: "Food", Value: 12, Count: 1},
		}, result.Groups[0].Rows)
	})

	t.Run("Chart by id", func(t *testing.T) {
		result, err := svc.RenderChart(ctx, tmpl.ID, "trend", schema.TimeRange{From: "2025-12-01", To: "2026-02-28"})
		require.NoError(t, err)
		assert.Equal(t, query.BucketMonth, result.Bucket)
		require.Len(t, result.Series, 1)
		assert.Equal(t, []query.GroupRow{
			{Key: "2025-12", Value: 7, Count: 1},
			{Key: "2026-01", Value: 42, Count: 2},
			{Key: "2026-02", Value: 100, Count: 1},
		}, result.Series[0].Points)
		count, err := testutil.GatherAndCount(reg, "folio_view_render_seconds")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("Wrong view type", func(t *testing.T) {
		_, err := svc.RenderChart(ctx, tmpl.ID, "overview", schema.TimeRange{})
		assert.ErrorIs(t, err, persistence.ErrWrongViewType)
		_, err = svc.RenderSummary(ctx, tmpl.ID, "all", schema.TimeRange{})
		assert.ErrorIs(t, err, persistence.ErrWrongViewType)
	})

	t.Run("Unknown view", func(t *testing.T) {
		_, err := svc.RenderSummary(ctx, tmpl.ID, "nope", schema.TimeRange{})
		assert.ErrorIs(t, err, persistence.ErrViewNotFound)
	})
}

func TestRecordService_DeleteTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	tmpl := createExpenses(t, svc)
	rec, err := svc.CreateRecord(ctx, tmpl.ID, map[string]any{"date": "2026-01-01", "amount": 1})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTemplate(ctx, tmpl.ID))
	_, err = svc.Template(ctx, tmpl.ID)
	assert.ErrorIs(t, err, persistence.ErrTemplateNotFound)
	_, err = svc.Record(ctx, rec.ID)
	assert.ErrorIs(t, err, persistence.ErrRecordNotFound)

	_, err = svc.CreateRecord(ctx, tmpl.ID, map[string]any{"date": "2026-01-01", "amount": 1})
	assert.ErrorIs(t, err, persistence.ErrTemplateNotFound)
}

// loadHookStore runs onLoad once, right after the next template read and
// before its result is returned.
type loadHookStore struct {
	persistence.Store
	armed  bool
	onLoad func()
}

func (s *loadHookStore) Template(ctx context.Context, id string) (*schema.Template, error) {
	t, err := s.Store.Template(ctx, id)
	if s.armed {
		s.armed = false
		s.onLoad()
	}
	return t, err
}

func TestRecordService_ValidatorCache(t *testing.T) {
	ctx := context.Background()
	store := &loadHookStore{Store: persistence.NewMemoryStore()}
	svc, err := persistence.NewRecordService(store, persistence.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	tmpl := createExpenses(t, svc)

	store.onLoad = func() {
		next := *tmpl
		next.Schema.Fields = append(append([]schema.Field(nil), tmpl.Schema.Fields...),
			schema.StringField{FieldBase: schema.FieldBase{ID: "owner", Label: "Owner", Required: true}})
		_, err := svc.UpdateTemplate(ctx, &next)
		require.NoError(t, err)
	}
	store.armed = true

	payload := map[string]any{"date": "2026-01-02", "amount": 3}
	res, err := svc.ValidateRecord(ctx, tmpl.ID, payload)
	require.NoError(t, err)
	assert.True(t, res.OK, "validated against the version read before the update")

	res, err = svc.ValidateRecord(ctx, tmpl.ID, payload)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Len(t, res.Details, 1)
	assert.Equal(t, schema.CodeRequiredMissing, res.Details[0].Code)
	assert.Equal(t, "owner", res.Details[0].Field)
}

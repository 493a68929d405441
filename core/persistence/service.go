// Package persistence stores templates and records and runs the record write
// path and view read path on top of the schema and query packages.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-folio/core/query"
	"github.com/asaidimu/go-folio/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultValidatorCacheSize = 128

// RecordService validates and stores records against their template and
// renders the template's views. It is safe for concurrent use.
type RecordService struct {
	*emitter
	store      Store
	analyzer   *query.Analyzer
	logger     *zap.Logger
	metrics    *Metrics
	now        func() time.Time
	cacheSize  int
	validators *validatorCache
	// templateMu serializes template writes.
	templateMu sync.Mutex
}

// Option configures a RecordService.
type Option func(*RecordService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *RecordService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records validation and rendering metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *RecordService) { s.metrics = m }
}

// WithClock replaces time.Now, which anchors relative time ranges and
// creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *RecordService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithValidatorCacheSize bounds the number of compiled validators kept.
func WithValidatorCacheSize(n int) Option {
	return func(s *RecordService) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

func NewRecordService(store Store, opts ...Option) (*RecordService, error) {
	s := &RecordService{
		store:     store,
		logger:    zap.NewNop(),
		now:       time.Now,
		cacheSize: defaultValidatorCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	em, err := newEmitter(s.now)
	if err != nil {
		return nil, err
	}
	s.emitter = em

	s.validators, err = newValidatorCache(s.cacheSize)
	if err != nil {
		return nil, err
	}
	s.analyzer = query.NewAnalyzer(s.logger.Named("analyzer"))
	return s, nil
}

// CreateTemplate checks a template definition and stores it. An empty id is
// replaced with a generated one. An id already in use returns
// ErrTemplateExists; stored templates change through UpdateTemplate.
func (s *RecordService) CreateTemplate(ctx context.Context, t *schema.Template) (*schema.Template, error) {
	s.templateMu.Lock()
	defer s.templateMu.Unlock()

	result, err := s.around(operation{
		name:     "create_template",
		start:    TemplateCreateStart,
		success:  TemplateCreateSuccess,
		failed:   TemplateCreateFailed,
		template: t.ID,
		input:    t,
	}, func() (any, error) {
		if issues := t.Check(); len(issues) > 0 {
			return nil, &TemplateError{Issues: issues}
		}
		created := copyTemplate(t)
		if created.ID == "" {
			created.ID = uuid.New().String()
		} else if _, err := s.store.Template(ctx, created.ID); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrTemplateExists, created.ID)
		} else if !errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
		if created.CreatedAt.IsZero() {
			created.CreatedAt = s.now().UTC()
		}
		if err := s.store.SaveTemplate(ctx, created); err != nil {
			return nil, fmt.Errorf("failed to save template %s: %w", created.ID, err)
		}
		s.logger.Info("Template created", zap.String("template", created.ID), zap.String("name", created.Name))
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*schema.Template), nil
}

// UpdateTemplate replaces the definition of an existing template. Fields may
// be added, removed or relabeled, but an existing field keeps its type.
func (s *RecordService) UpdateTemplate(ctx context.Context, t *schema.Template) (*schema.Template, error) {
	s.templateMu.Lock()
	defer s.templateMu.Unlock()

	result, err := s.around(operation{
		name:     "update_template",
		start:    TemplateUpdateStart,
		success:  TemplateUpdateSuccess,
		failed:   TemplateUpdateFailed,
		template: t.ID,
		input:    t,
	}, func() (any, error) {
		prev, err := s.store.Template(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		issues := t.Check()
		issues = append(issues, schema.CheckEvolution(&prev.Schema, &t.Schema)...)
		if len(issues) > 0 {
			return nil, &TemplateError{Issues: issues}
		}

		updated := copyTemplate(t)
		updated.CreatedAt = prev.CreatedAt
		if err := s.store.SaveTemplate(ctx, updated); err != nil {
			return nil, fmt.Errorf("failed to save template %s: %w", updated.ID, err)
		}
		s.validators.Invalidate(updated.ID)

		changes := schema.Diff(&prev.Schema, &updated.Schema)
		s.logger.Info("Template updated", zap.String("template", updated.ID), zap.Any("changes", changes))
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*schema.Template), nil
}

func (s *RecordService) Template(ctx context.Context, id string) (*schema.Template, error) {
	return s.store.Template(ctx, id)
}

func (s *RecordService) Templates(ctx context.Context) ([]*schema.Template, error) {
	return s.store.Templates(ctx)
}

// DeleteTemplate removes a template together with its records.
func (s *RecordService) DeleteTemplate(ctx context.Context, id string) error {
	s.templateMu.Lock()
	defer s.templateMu.Unlock()

	_, err := s.around(operation{
		name:     "delete_template",
		start:    TemplateDeleteStart,
		success:  TemplateDeleteSuccess,
		failed:   TemplateDeleteFailed,
		template: id,
	}, func() (any, error) {
		if err := s.store.DeleteTemplate(ctx, id); err != nil {
			return nil, err
		}
		s.validators.Invalidate(id)
		s.logger.Info("Template deleted", zap.String("template", id))
		return nil, nil
	})
	return err
}

// ValidateRecord validates raw data against a template without storing it.
// The returned error is reserved for lookup failures; rejection is reported
// in the result.
func (s *RecordService) ValidateRecord(ctx context.Context, templateID string, raw any) (schema.ValidationResult, error) {
	v, err := s.validator(ctx, templateID)
	if err != nil {
		return schema.ValidationResult{}, err
	}
	result := v.Validate(raw)
	s.metrics.observeValidation(result)
	return result, nil
}

// CreateRecord validates raw data and stores the normalized record. A
// rejected payload returns a *ValidationError and stores nothing.
func (s *RecordService) CreateRecord(ctx context.Context, templateID string, raw any) (*schema.Record, error) {
	result, err := s.around(operation{
		name:     "create_record",
		start:    RecordCreateStart,
		success:  RecordCreateSuccess,
		failed:   RecordCreateFailed,
		template: templateID,
		input:    raw,
	}, func() (any, error) {
		res, err := s.ValidateRecord(ctx, templateID, raw)
		if err != nil {
			return nil, err
		}
		if !res.OK {
			s.logger.Debug("Record rejected", zap.String("template", templateID), zap.Int("issues", len(res.Details)))
			return nil, &ValidationError{TemplateID: templateID, Details: res.Details}
		}

		record := &schema.Record{
			ID:         uuid.New().String(),
			TemplateID: templateID,
			Data:       res.Data,
			CreatedAt:  s.now().UTC(),
		}
		if err := s.store.InsertRecord(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", err)
		}
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*schema.Record), nil
}

func (s *RecordService) Records(ctx context.Context, templateID string) ([]schema.Record, error) {
	return s.store.Records(ctx, templateID)
}

func (s *RecordService) Record(ctx context.Context, id string) (*schema.Record, error) {
	return s.store.Record(ctx, id)
}

func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	_, err := s.around(operation{
		name:    "delete_record",
		start:   RecordDeleteStart,
		success: RecordDeleteSuccess,
		failed:  RecordDeleteFailed,
		input:   id,
	}, func() (any, error) {
		return nil, s.store.DeleteRecord(ctx, id)
	})
	return err
}

// RenderSummary computes a summary view over the template's records. An
// empty viewID selects the default view.
func (s *RecordService) RenderSummary(ctx context.Context, templateID, viewID string, r schema.TimeRange) (*query.SummaryResult, error) {
	result, err := s.render(ctx, templateID, viewID, r, schema.ViewTypeSummary, func(v schema.View, records []schema.Record, now time.Time) any {
		return s.analyzer.Summary(v.(schema.SummaryView), records, r, now)
	})
	if err != nil {
		return nil, err
	}
	return result.(*query.SummaryResult), nil
}

// RenderChart computes a chart view over the template's records. An empty
// viewID selects the default view.
func (s *RecordService) RenderChart(ctx context.Context, templateID, viewID string, r schema.TimeRange) (*query.ChartResult, error) {
	result, err := s.render(ctx, templateID, viewID, r, schema.ViewTypeChart, func(v schema.View, records []schema.Record, now time.Time) any {
		return s.analyzer.Chart(v.(schema.ChartView), records, r, now)
	})
	if err != nil {
		return nil, err
	}
	return result.(*query.ChartResult), nil
}

type renderFunc func(v schema.View, records []schema.Record, now time.Time) any

func (s *RecordService) render(ctx context.Context, templateID, viewID string, r schema.TimeRange, want schema.ViewType, fn renderFunc) (any, error) {
	return s.around(operation{
		name:     "render_" + string(want),
		start:    ViewRenderStart,
		success:  ViewRenderSuccess,
		failed:   ViewRenderFailed,
		template: templateID,
		input:    map[string]any{"view": viewID, "range": r},
	}, func() (any, error) {
		started := time.Now()
		t, err := s.store.Template(ctx, templateID)
		if err != nil {
			return nil, err
		}

		var view schema.View
		if viewID == "" {
			view = t.DefaultView()
		} else {
			view = t.View(viewID)
		}
		if view == nil {
			return nil, fmt.Errorf("%w: %q in template %s", ErrViewNotFound, viewID, templateID)
		}
		if view.Type() != want {
			return nil, fmt.Errorf("%w: %s is a %s view", ErrWrongViewType, view.Base().ID, view.Type())
		}

		records, err := s.store.Records(ctx, templateID)
		if err != nil {
			return nil, fmt.Errorf("failed to load records of %s: %w", templateID, err)
		}

		result := fn(view, records, s.now())
		s.metrics.observeRender(want, time.Since(started))
		return result, nil
	})
}

// validator returns the compiled validator of a template, building it on a
// cache miss.
func (s *RecordService) validator(ctx context.Context, templateID string) (*schema.Validator, error) {
	if v, ok := s.validators.Get(templateID); ok {
		return v, nil
	}
	gen := s.validators.Generation()
	t, err := s.store.Template(ctx, templateID)
	if err != nil {
		return nil, err
	}
	v := schema.NewValidator(&t.Schema)
	if !s.validators.Add(templateID, v, gen) {
		s.logger.Debug("Template changed while compiling validator, not caching", zap.String("template", templateID))
	}
	return v, nil
}

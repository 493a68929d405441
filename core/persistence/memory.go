package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/asaidimu/go-folio/core/query"
	"github.com/asaidimu/go-folio/core/schema"
)

// MemoryStore keeps templates and records in process memory. It is safe for
// concurrent use and is meant for tests and single-process tools.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*schema.Template
	records   map[string]schema.Record
	// order holds record ids per template in insertion order.
	order map[string][]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]*schema.Template),
		records:   make(map[string]schema.Record),
		order:     make(map[string][]string),
	}
}

func (s *MemoryStore) SaveTemplate(ctx context.Context, t *schema.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyTemplate(t)
	s.templates[t.ID] = cp
	return nil
}

func (s *MemoryStore) Template(ctx context.Context, id string) (*schema.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return copyTemplate(t), nil
}

func (s *MemoryStore) Templates(ctx context.Context) ([]*schema.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*schema.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, copyTemplate(t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	for _, rid := range s.order[id] {
		delete(s.records, rid)
	}
	delete(s.order, id)
	delete(s.templates, id)
	return nil
}

func (s *MemoryStore) InsertRecord(ctx context.Context, r *schema.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[r.TemplateID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, r.TemplateID)
	}
	for _, idx := range t.Schema.Indexes {
		if !idx.Unique {
			continue
		}
		key, ok := indexKey(r.Data, idx)
		if !ok {
			continue
		}
		for _, rid := range s.order[r.TemplateID] {
			if other, _ := indexKey(s.records[rid].Data, idx); other == key {
				return fmt.Errorf("%w: %s", ErrUniqueViolation, idx.Name)
			}
		}
	}

	cp := *r
	cp.Data = r.Data.Clone()
	s.records[r.ID] = cp
	s.order[r.TemplateID] = append(s.order[r.TemplateID], r.ID)
	return nil
}

func (s *MemoryStore) Records(ctx context.Context, templateID string) ([]schema.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.templates[templateID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}
	ids := s.order[templateID]
	out := make([]schema.Record, 0, len(ids))
	for _, id := range ids {
		r := s.records[id]
		r.Data = r.Data.Clone()
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) Record(ctx context.Context, id string) (*schema.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	r.Data = r.Data.Clone()
	return &r, nil
}

func (s *MemoryStore) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	delete(s.records, id)
	ids := s.order[r.TemplateID]
	for i, rid := range ids {
		if rid == id {
			s.order[r.TemplateID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// indexKey joins the canonical values of the indexed fields. Records missing
// any indexed value are not constrained, matching SQL NULL semantics.
func indexKey(data schema.Document, idx schema.IndexDefinition) (string, bool) {
	parts := make([]string, 0, len(idx.Fields))
	for _, f := range idx.Fields {
		v := data[f]
		if schema.IsMissing(v) {
			return "", false
		}
		parts = append(parts, query.ToString(v))
	}
	return strings.Join(parts, "\x00"), true
}

func copyTemplate(t *schema.Template) *schema.Template {
	cp := *t
	cp.Views = append([]schema.View(nil), t.Views...)
	cp.Schema.Fields = append([]schema.Field(nil), t.Schema.Fields...)
	cp.Schema.Indexes = append([]schema.IndexDefinition(nil), t.Schema.Indexes...)
	return &cp
}

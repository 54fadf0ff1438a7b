// Package memdata is an in-memory data-access adapter. It backs the demo
// application and serves as the reference Accessor implementation for
// tests; records keep insertion order.
package memdata

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gopanel/gopanel/data"
	"github.com/gopanel/gopanel/registry"
)

type table struct {
	recs  []data.Record
	index map[string]int // pk string -> position in recs
	seq   int64
}

// Store holds one table per registered model. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func tableKey(m *registry.Model) string {
	return m.App.ID + "." + m.ID
}

func (s *Store) table(m *registry.Model) *table {
	t, ok := s.tables[tableKey(m)]
	if !ok {
		t = &table{index: make(map[string]int)}
		s.tables[tableKey(m)] = t
	}
	return t
}

func (s *Store) FetchAll(_ context.Context, m *registry.Model, limit, offset int) ([]data.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.table(m).recs, nil, limit, offset), nil
}

func (s *Store) FetchAllFields(_ context.Context, m *registry.Model, fields []string, limit, offset int) ([]data.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.table(m).recs, fields, limit, offset), nil
}

func (s *Store) Search(_ context.Context, m *registry.Model, query string, fields []string, limit, offset int) ([]data.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var matched []data.Record
	for _, rec := range s.table(m).recs {
		for _, f := range fields {
			v, ok := rec[f]
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(fmt.Sprint(v)), q) {
				matched = append(matched, rec)
				break
			}
		}
	}
	return window(matched, nil, limit, offset), nil
}

func (s *Store) FetchOne(_ context.Context, m *registry.Model, id string) (data.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.find(m, id)
	if err != nil {
		return nil, err
	}
	return clone(rec, nil), nil
}

func (s *Store) FetchOneFields(_ context.Context, m *registry.Model, id string, fields []string) (data.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.find(m, id)
	if err != nil {
		return nil, err
	}
	return clone(rec, fields), nil
}

// Create stores rec. When the primary key is absent and integer-kinded it
// is assigned from a per-table sequence.
func (s *Store) Create(_ context.Context, m *registry.Model, rec data.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(m)
	stored := clone(rec, nil)

	id := stored.PKString(m)
	if id == "" {
		if m.PK.Kind != registry.KindInt {
			return "", fmt.Errorf("model %s: primary key %s must be provided", m.ID, m.PK.Name)
		}
		t.seq++
		stored[m.PK.Name] = t.seq
		id = fmt.Sprint(t.seq)
	}
	if _, exists := t.index[id]; exists {
		return "", fmt.Errorf("model %s: primary key %s already exists", m.ID, id)
	}

	t.index[id] = len(t.recs)
	t.recs = append(t.recs, stored)
	return id, nil
}

// Update merges the fields present in rec into the stored record.
func (s *Store) Update(_ context.Context, m *registry.Model, id string, rec data.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.find(m, id)
	if err != nil {
		return err
	}
	for k, v := range rec {
		if k == m.PK.Name {
			continue
		}
		stored[k] = v
	}
	return nil
}

func (s *Store) Delete(_ context.Context, m *registry.Model, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(m)
	pos, ok := t.index[id]
	if !ok {
		return fmt.Errorf("model %s id %s: %w", m.ID, id, data.ErrNoRecord)
	}
	t.recs = append(t.recs[:pos], t.recs[pos+1:]...)
	delete(t.index, id)
	for i := pos; i < len(t.recs); i++ {
		t.index[t.recs[i].PKString(m)] = i
	}
	return nil
}

func (s *Store) find(m *registry.Model, id string) (data.Record, error) {
	t := s.table(m)
	pos, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("model %s id %s: %w", m.ID, id, data.ErrNoRecord)
	}
	return t.recs[pos], nil
}

func window(recs []data.Record, fields []string, limit, offset int) []data.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(recs) {
		return nil
	}
	end := len(recs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]data.Record, 0, end-offset)
	for _, rec := range recs[offset:end] {
		out = append(out, clone(rec, fields))
	}
	return out
}

// clone copies a record, optionally projected; stored records never leak
// to callers.
func clone(rec data.Record, fields []string) data.Record {
	if fields != nil {
		return rec.Project(fields)
	}
	out := make(data.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

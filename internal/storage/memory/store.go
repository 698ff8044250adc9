// Package memory is a process-local PlanRepository and VenueCache used for
// local runs (STORE=memory) and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"midway/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	plans  map[string][]byte
	venues map[string]domain.Venue
	now    func() time.Time
}

func New() *Store {
	return &Store{
		plans:  map[string][]byte{},
		venues: map[string]domain.Venue{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Plans are stored serialised so callers never share slices with the store.

func (s *Store) CreatePlan(_ context.Context, p domain.Plan) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[p.ID]; ok {
		return fmt.Errorf("plan %s already exists", p.ID)
	}
	s.plans[p.ID] = b
	return nil
}

func (s *Store) GetPlan(_ context.Context, id string) (domain.Plan, error) {
	s.mu.RLock()
	b, ok := s.plans[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Plan{}, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
	}
	var p domain.Plan
	return p, json.Unmarshal(b, &p)
}

func (s *Store) UpdatePlan(_ context.Context, id string, fn func(*domain.Plan) error) (domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.plans[id]
	if !ok {
		return domain.Plan{}, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
	}
	var p domain.Plan
	if err := json.Unmarshal(b, &p); err != nil {
		return domain.Plan{}, err
	}
	if err := fn(&p); err != nil {
		return domain.Plan{}, err
	}
	p.UpdatedAt = s.now()
	nb, err := json.Marshal(p)
	if err != nil {
		return domain.Plan{}, err
	}
	s.plans[id] = nb
	return p, nil
}

func (s *Store) UpsertVenue(_ context.Context, v domain.Venue) (domain.Venue, error) {
	if v.ID == "" {
		return domain.Venue{}, fmt.Errorf("%w: venue without id", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.venues[v.ID]; ok && v.Analysis == nil {
		v.Analysis = old.Analysis
	}
	v.UpdatedAt = s.now()
	s.venues[v.ID] = v
	return v, nil
}

func (s *Store) GetVenues(_ context.Context, ids []string) ([]domain.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Venue, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.venues[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) ListVenues(_ context.Context, afterID string, limit int) ([]domain.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.venues))
	for id := range s.venues {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.Venue, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.venues[id])
	}
	return out, nil
}

// VenueCount is used by tests to assert upsert identity.
func (s *Store) VenueCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.venues)
}

package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"midway/internal/domain"
)

// ---- fakes ----

type fakeGeocoder struct {
	mu    sync.Mutex
	known map[string]domain.Coordinate
	err   error
	calls int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.Coordinate{}, f.err
	}
	c, ok := f.known[strings.ToLower(address)]
	if !ok {
		return domain.Coordinate{}, domain.ErrNotFound
	}
	return c, nil
}

type fakeSearcher struct {
	mu     sync.Mutex
	byType map[string][]domain.Venue
	err    error
	types  []string
	radius []int
}

func (f *fakeSearcher) SearchNearby(ctx context.Context, center domain.Coordinate, radiusMeters int, placeType string) ([]domain.Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, placeType)
	f.radius = append(f.radius, radiusMeters)
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Venue{}, f.byType[placeType]...), nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, v domain.Venue) (domain.VenueAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.VenueAnalysis{}, f.err
	}
	return domain.VenueAnalysis{Summary: "about " + v.Name, Tags: []string{v.Category}}, nil
}

type fakeScorer struct {
	scores map[string]float64
	err    error
	block  bool // never returns, ignoring ctx
	got    int  // group size seen
}

func (f *fakeScorer) Score(ctx context.Context, vs []domain.Venue, p domain.PreferenceProfile, groupSize int) ([]domain.MatchResult, error) {
	if f.block {
		select {}
	}
	f.got = groupSize
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.MatchResult, 0, len(vs))
	for _, v := range vs {
		out = append(out, domain.MatchResult{VenueID: v.ID, Score: f.scores[v.ID], Reasoning: "fits " + p.Query})
	}
	return out, nil
}

type fakeParser struct {
	err   error
	calls int
}

func (f *fakeParser) Parse(ctx context.Context, text string) (domain.PreferenceProfile, error) {
	f.calls++
	if f.err != nil {
		return domain.PreferenceProfile{}, f.err
	}
	p := domain.PreferenceProfile{}
	if strings.Contains(text, "cheap") {
		p.Budget = "low"
	}
	return p, nil
}

// failingVenues wraps a VenueCache and fails every upsert.
type failingVenues struct {
	domain.VenueCache
}

func (failingVenues) UpsertVenue(ctx context.Context, v domain.Venue) (domain.Venue, error) {
	return domain.Venue{}, errors.New("cache down")
}

// fakeCache stores JSON so any dst type round-trips.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// ---- helpers ----

func pfloat(f float64) *float64 { return &f }
func pint(i int) *int           { return &i }

func venue(id, category string, rating float64, lat, lng float64) domain.Venue {
	v := domain.Venue{
		ID:       id,
		Name:     strings.ToUpper(id),
		Category: category,
		Location: domain.Coordinate{Lat: lat, Lng: lng},
	}
	if rating > 0 {
		v.Rating = pfloat(rating)
	}
	return v
}

func ids(vs []domain.RankedVenue) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

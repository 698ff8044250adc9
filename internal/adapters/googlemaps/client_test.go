package googlemaps_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"midway/internal/adapters/googlemaps"
	"midway/internal/domain"
)

func newClient(t *testing.T, h http.HandlerFunc) *googlemaps.Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	cl, err := googlemaps.New(ts.URL, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := googlemaps.New("http://x", "", 1); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestGeocode_RetriesThenSuccess(t *testing.T) {
	var hits int32
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geocode/json" || r.URL.Query().Get("key") != "test-key" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(503)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":41.01,"lng":28.97}}}]}`))
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := cl.Geocode(ctx, "Istanbul")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != (domain.Coordinate{Lat: 41.01, Lng: 28.97}) {
		t.Fatalf("unexpected coordinate: %v", got)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 calls due to retries, got %d", hits)
	}
}

func TestGeocode_ZeroResultsIsNotFound(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})
	_, err := cl.Geocode(context.Background(), "nowhere at all")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchNearby_ZeroResultsIsEmpty(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "cafe" || r.URL.Query().Get("radius") != "1500" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})
	got, err := cl.SearchNearby(context.Background(), domain.Coordinate{Lat: 1, Lng: 2}, 1500, "cafe")
	if err != nil {
		t.Fatalf("zero results must not be an error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestSearchNearby_QuotaIsUpstreamUnavailable(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"quota"}`))
	})
	_, err := cl.SearchNearby(context.Background(), domain.Coordinate{}, 1000, "")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestSearchNearby_ServerDownIsUpstreamUnavailable(t *testing.T) {
	var hits int32
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(500)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := cl.SearchNearby(ctx, domain.Coordinate{}, 1000, "restaurant")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 4 {
		t.Fatalf("expected 4 attempts, got %d", hits)
	}
}

func TestSearchNearby_MapsPlaces(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","results":[
		  {"place_id":"p1","name":"Luna","types":["point_of_interest","cafe","food"],"rating":4.6,
		   "user_ratings_total":120,"price_level":2,"vicinity":"1 Main St",
		   "geometry":{"location":{"lat":40.1,"lng":-73.9}},
		   "opening_hours":{"open_now":true},"photos":[{"photo_reference":"ref-1"}]},
		  {"place_id":"p2","name":"New","types":["restaurant"],"rating":0,
		   "geometry":{"location":{"lat":40.2,"lng":-73.8}}},
		  {"place_id":"p3","name":"Gone","business_status":"CLOSED_PERMANENTLY",
		   "geometry":{"location":{"lat":40.3,"lng":-73.7}}}
		]}`))
	})
	got, err := cl.SearchNearby(context.Background(), domain.Coordinate{Lat: 40, Lng: -74}, 5000, "cafe")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected closed place to be skipped, got %d venues", len(got))
	}
	luna := got[0]
	if luna.ID != "p1" || luna.Category != "cafe" || luna.Rating == nil || *luna.Rating != 4.6 ||
		luna.PriceLevel == nil || *luna.PriceLevel != 2 || luna.Address != "1 Main St" {
		t.Fatalf("unexpected mapping: %+v", luna)
	}
	if len(luna.Photos) != 1 || luna.Photos[0] != "ref-1" {
		t.Fatalf("unexpected photos: %v", luna.Photos)
	}
	if got[1].Rating != nil {
		t.Fatalf("zero rating should be treated as unrated")
	}
}

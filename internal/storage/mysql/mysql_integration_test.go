//go:build integration

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"midway/internal/domain"
	mysqlrepo "midway/internal/storage/mysql"
)

// ---------- small helpers ----------
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }

// migrationsDir defaults to the repo's migrations folder.
func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- the tests ----------

// startMySQL runs an isolated MySQL container with the migrations applied.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=midway",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "midway")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func TestRepo_MySQL_VenueUpsertIsIdempotent(t *testing.T) {
	repo := mysqlrepo.New(startMySQL(t))
	ctx := context.Background()

	first := domain.Venue{
		ID: "place-1", Name: "Luna", Category: "cafe",
		Rating: pfloat(4.1), ReviewCount: pint(10), PriceLevel: pint(2),
		Address: "1 Main St", Location: domain.Coordinate{Lat: 40.1, Lng: -73.9},
		Features: []string{"cafe"},
		Analysis: &domain.VenueAnalysis{Summary: "cozy", Tags: []string{"cafe"}},
	}
	if _, err := repo.UpsertVenue(ctx, first); err != nil {
		t.Fatalf("UpsertVenue: %v", err)
	}

	second := first
	second.Rating = pfloat(4.6)
	second.Analysis = nil
	got, err := repo.UpsertVenue(ctx, second)
	if err != nil {
		t.Fatalf("UpsertVenue: %v", err)
	}
	if got.Rating == nil || *got.Rating != 4.6 {
		t.Fatalf("expected latest rating, got %+v", got.Rating)
	}
	if got.Analysis == nil || got.Analysis.Summary != "cozy" {
		t.Fatalf("refresh without analysis must keep the cached one: %+v", got.Analysis)
	}

	all, err := repo.ListVenues(ctx, "", 100)
	if err != nil {
		t.Fatalf("ListVenues: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one cached record, got %d", len(all))
	}

	// concurrent refreshes of one id converge on a single row
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := first
			v.Rating = pfloat(3 + float64(i)/10)
			if _, err := repo.UpsertVenue(ctx, v); err != nil {
				t.Errorf("concurrent upsert: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if all, _ = repo.ListVenues(ctx, "", 100); len(all) != 1 {
		t.Fatalf("expected one row after concurrent upserts, got %d", len(all))
	}
}

func TestRepo_MySQL_PlanLifecycle(t *testing.T) {
	repo := mysqlrepo.New(startMySQL(t))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	p := domain.Plan{
		ID: "0b6c8e4e-9d0e-4a55-8d5e-2f5c3c1c0a01",
		Participants: []domain.Participant{
			{ID: "a", Location: "Istanbul", Coord: &domain.Coordinate{Lat: 41.0, Lng: 29.0}},
			{ID: "b", Location: "Izmit", Coord: &domain.Coordinate{Lat: 40.8, Lng: 29.9}},
		},
		Midpoint:       &domain.Coordinate{Lat: 40.9, Lng: 29.45},
		SelectedVenues: []string{},
		Filters:        domain.VenueFilters{Type: "cafe", MinRating: pfloat(4)},
		Preferences:    &domain.PreferenceProfile{Query: "quiet coffee", Mood: "quiet"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	got, err := repo.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if len(got.Participants) != 2 || got.Midpoint == nil || got.Filters.Type != "cafe" ||
		got.Preferences == nil || got.Preferences.Mood != "quiet" {
		t.Fatalf("unexpected plan: %+v", got)
	}

	upd, err := repo.UpdatePlan(ctx, p.ID, func(pl *domain.Plan) error {
		pl.SelectedVenues = append(pl.SelectedVenues, "place-1")
		return nil
	})
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if len(upd.SelectedVenues) != 1 {
		t.Fatalf("unexpected update result: %+v", upd)
	}
	if got, _ = repo.GetPlan(ctx, p.ID); len(got.SelectedVenues) != 1 || got.SelectedVenues[0] != "place-1" {
		t.Fatalf("update not persisted: %+v", got.SelectedVenues)
	}

	if _, err := repo.GetPlan(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

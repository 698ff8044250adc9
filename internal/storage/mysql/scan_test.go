package mysql

import (
	"bytes"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// fakeRow feeds fixed column values to scanVenue in SELECT order.
type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r))
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r[i]))
	}
	return nil
}

func venueRow(hours, photos, features, analysis string) fakeRow {
	raw := func(s string) []byte {
		if s == "" {
			return nil
		}
		return []byte(s)
	}
	return fakeRow{
		"v1", "Corner Cafe", "cafe",
		sql.NullFloat64{Float64: 4.4, Valid: true}, sql.NullInt64{Int64: 80, Valid: true}, sql.NullInt64{},
		"1 Main St", 40.7, -73.9,
		raw(hours), raw(photos), sql.NullString{}, sql.NullString{String: "+12125550100", Valid: true},
		raw(features), raw(analysis),
		time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestScanVenue_DecodesJSONColumns(t *testing.T) {
	buf := captureLog(t)
	v, err := scanVenue(venueRow(`["Mon 8-18"]`, `["p1","p2"]`, `["wifi"]`, `{"summary":"cosy","tags":["quiet"]}`))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(v.Hours) != 1 || len(v.Photos) != 2 || len(v.Features) != 1 {
		t.Fatalf("unexpected lists: %+v", v)
	}
	if v.Analysis == nil || v.Analysis.Summary != "cosy" {
		t.Fatalf("analysis: %+v", v.Analysis)
	}
	if v.Rating == nil || *v.Rating != 4.4 || v.PriceLevel != nil || v.Phone == nil || v.Website != nil {
		t.Fatalf("nullable columns: %+v", v)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected log output: %s", buf.String())
	}
}

func TestScanVenue_NullJSONColumnsStayEmpty(t *testing.T) {
	buf := captureLog(t)
	v, err := scanVenue(venueRow("", "", "", ""))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v.Hours != nil || v.Photos != nil || v.Features != nil || v.Analysis != nil {
		t.Fatalf("expected empty fields: %+v", v)
	}
	if buf.Len() != 0 {
		t.Fatalf("NULL columns must not log: %s", buf.String())
	}
}

func TestScanVenue_CorruptColumnIsLoggedAndSkipped(t *testing.T) {
	buf := captureLog(t)
	v, err := scanVenue(venueRow(`["Mon 8-18"`, `{"not":"a list"}`, `["wifi"]`, `{oops`))
	if err != nil {
		t.Fatalf("a corrupt column must not fail the row: %v", err)
	}
	if v.ID != "v1" || len(v.Features) != 1 {
		t.Fatalf("healthy columns lost: %+v", v)
	}
	if v.Hours != nil || v.Photos != nil || v.Analysis != nil {
		t.Fatalf("corrupt columns should be empty: %+v", v)
	}
	out := buf.String()
	for _, col := range []string{`"column":"hours"`, `"column":"photos"`, `"column":"analysis"`} {
		if !strings.Contains(out, col) {
			t.Fatalf("missing warning for %s in %s", col, out)
		}
	}
	if strings.Contains(out, `"column":"features"`) || !strings.Contains(out, `"venue_id":"v1"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

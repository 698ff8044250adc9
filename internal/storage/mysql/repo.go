package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"midway/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// valJSON marshals v, storing NULL for nil/empty values.
func valJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s := string(b); s == "null" || s == "[]" || s == "{}" {
		return nil, nil
	}
	return string(b), nil
}

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ---- plans ----

func (r *Repo) CreatePlan(ctx context.Context, p domain.Plan) error {
	parts, err := json.Marshal(p.Participants)
	if err != nil {
		return err
	}
	args, err := planMutableArgs(p)
	if err != nil {
		return err
	}
	var lat, lng any
	if p.Midpoint != nil {
		lat, lng = p.Midpoint.Lat, p.Midpoint.Lng
	}
	_, err = r.db.ExecContext(ctx, insertPlanSQL,
		p.ID, string(parts), lat, lng, args[0], args[1], args[2], p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repo) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	return scanPlan(r.db.QueryRowContext(ctx, selectPlanSQL, id))
}

func (r *Repo) UpdatePlan(ctx context.Context, id string, fn func(*domain.Plan) error) (domain.Plan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPlan(tx.QueryRowContext(ctx, selectPlanSQL+" FOR UPDATE", id))
	if err != nil {
		return domain.Plan{}, err
	}
	if err := fn(&p); err != nil {
		return domain.Plan{}, err
	}
	p.UpdatedAt = r.now()

	args, err := planMutableArgs(p)
	if err != nil {
		return domain.Plan{}, err
	}
	if _, err := tx.ExecContext(ctx, updatePlanSQL, args[0], args[1], args[2], p.UpdatedAt, p.ID); err != nil {
		return domain.Plan{}, err
	}
	return p, tx.Commit()
}

// planMutableArgs returns selected_venues, filters, preferences.
func planMutableArgs(p domain.Plan) ([3]any, error) {
	var out [3]any
	sel := p.SelectedVenues
	if sel == nil {
		sel = []string{}
	}
	b, err := json.Marshal(sel)
	if err != nil {
		return out, err
	}
	out[0] = string(b)
	if out[1], err = valJSON(p.Filters); err != nil {
		return out, err
	}
	if p.Preferences != nil {
		if out[2], err = valJSON(p.Preferences); err != nil {
			return out, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (domain.Plan, error) {
	var p domain.Plan
	var parts, selected, filtersB, prefsB []byte
	var lat, lng sql.NullFloat64
	if err := row.Scan(&p.ID, &parts, &lat, &lng, &selected, &filtersB, &prefsB, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Plan{}, fmt.Errorf("plan: %w", domain.ErrNotFound)
		}
		return domain.Plan{}, err
	}
	if err := json.Unmarshal(parts, &p.Participants); err != nil {
		return domain.Plan{}, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal(selected, &p.SelectedVenues); err != nil {
		return domain.Plan{}, fmt.Errorf("decode selected venues: %w", err)
	}
	if lat.Valid && lng.Valid {
		p.Midpoint = &domain.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	if len(filtersB) > 0 {
		if err := json.Unmarshal(filtersB, &p.Filters); err != nil {
			return domain.Plan{}, fmt.Errorf("decode filters: %w", err)
		}
	}
	if len(prefsB) > 0 {
		p.Preferences = &domain.PreferenceProfile{}
		if err := json.Unmarshal(prefsB, p.Preferences); err != nil {
			return domain.Plan{}, fmt.Errorf("decode preferences: %w", err)
		}
	}
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return p, nil
}

// ---- venues ----

func (r *Repo) UpsertVenue(ctx context.Context, v domain.Venue) (domain.Venue, error) {
	if v.ID == "" {
		return domain.Venue{}, fmt.Errorf("%w: venue without id", domain.ErrInvalidInput)
	}
	jsonArgs := make([]any, 0, 4)
	for _, x := range []any{v.Hours, v.Photos, v.Features} {
		j, err := valJSON(x)
		if err != nil {
			return domain.Venue{}, err
		}
		jsonArgs = append(jsonArgs, j)
	}
	var analysis any
	if v.Analysis != nil {
		b, err := json.Marshal(v.Analysis)
		if err != nil {
			return domain.Venue{}, err
		}
		analysis = string(b)
	}

	_, err := r.db.ExecContext(ctx, upsertVenueSQL,
		v.ID,
		v.Name,
		v.Category,
		valF64(v.Rating),
		valInt(v.ReviewCount),
		valInt(v.PriceLevel),
		v.Address,
		v.Location.Lat,
		v.Location.Lng,
		jsonArgs[0], // hours
		jsonArgs[1], // photos
		valStr(v.Website),
		valStr(v.Phone),
		jsonArgs[2], // features
		analysis,
	)
	if err != nil {
		return domain.Venue{}, err
	}
	got, err := r.GetVenues(ctx, []string{v.ID})
	if err != nil {
		return domain.Venue{}, err
	}
	if len(got) == 0 {
		return domain.Venue{}, fmt.Errorf("venue %s vanished after upsert", v.ID)
	}
	return got[0], nil
}

// GetVenues returns the cached venues among ids, in the order of ids.
func (r *Repo) GetVenues(ctx context.Context, ids []string) ([]domain.Venue, error) {
	if len(ids) == 0 {
		return []domain.Venue{}, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT`+venueColumns+`FROM venues WHERE id IN (`+marks+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[string]domain.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		byID[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Venue, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *Repo) ListVenues(ctx context.Context, afterID string, limit int) ([]domain.Venue, error) {
	rows, err := r.db.QueryContext(ctx, selectVenuesAfterSQL, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// decodeColumn unmarshals a JSON column into dst. NULL or empty input is a
// no-op; a decode failure is logged and reported as false.
func decodeColumn(id, column string, raw []byte, dst any) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Warn().Str("venue_id", id).Str("column", column).Err(err).Msg("undecodable venue column")
		return false
	}
	return true
}

func scanVenue(row rowScanner) (domain.Venue, error) {
	var v domain.Venue
	var (
		rating                            sql.NullFloat64
		reviews, price                    sql.NullInt64
		website, phone                    sql.NullString
		hours, photos, features, analysis []byte
	)
	if err := row.Scan(
		&v.ID, &v.Name, &v.Category,
		&rating, &reviews, &price,
		&v.Address, &v.Location.Lat, &v.Location.Lng,
		&hours, &photos, &website, &phone, &features, &analysis,
		&v.UpdatedAt,
	); err != nil {
		return domain.Venue{}, err
	}
	if rating.Valid {
		f := rating.Float64
		v.Rating = &f
	}
	if reviews.Valid {
		n := int(reviews.Int64)
		v.ReviewCount = &n
	}
	if price.Valid {
		n := int(price.Int64)
		v.PriceLevel = &n
	}
	if website.Valid {
		s := website.String
		v.Website = &s
	}
	if phone.Valid {
		s := phone.String
		v.Phone = &s
	}
	// a corrupt JSON column leaves that field empty; the row stays readable
	if !decodeColumn(v.ID, "hours", hours, &v.Hours) {
		v.Hours = nil
	}
	if !decodeColumn(v.ID, "photos", photos, &v.Photos) {
		v.Photos = nil
	}
	if !decodeColumn(v.ID, "features", features, &v.Features) {
		v.Features = nil
	}
	if len(analysis) > 0 {
		v.Analysis = &domain.VenueAnalysis{}
		if !decodeColumn(v.ID, "analysis", analysis, v.Analysis) {
			v.Analysis = nil
		}
	}
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}

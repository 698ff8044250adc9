package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"midway/internal/adapters/observability"
	"midway/internal/domain"
	"midway/internal/geo"
)

// AnyType searches without a place type.
const AnyType = "any"

// Ranking modes reported with every result.
const (
	RankByPreference     = "preference"
	RankByRating         = "rating"
	RankByRatingFallback = "rating_fallback"
)

type SearchDefaults struct {
	Type          string
	RadiusMeters  int
	MinRating     float64
	FallbackTypes []string // tried in order when a search for FallbackTypes[0] is empty
	Workers       int
	ScoreTimeout  time.Duration
}

// SearchRequest carries caller overrides; zero values fall back to the
// plan's filters, then to the service defaults.
type SearchRequest struct {
	PlanID       string
	Type         string
	RadiusMeters int
	MinRating    *float64
	PriceLevels  []int
}

type SearchResult struct {
	Venues     []domain.RankedVenue `json:"venues"`
	Type       string               `json:"type"`       // type that produced the candidates
	Fallback   bool                 `json:"fallback"`   // Type differs from the requested one
	Ranking    string               `json:"ranking"`    // one of the RankBy* modes
	Candidates int                  `json:"candidates"` // before filtering
}

type PlanReader interface {
	GetPlan(ctx context.Context, id string) (domain.Plan, error)
}

type VenueService struct {
	plans    PlanReader
	search   domain.PlaceSearcher
	cache    domain.VenueCache
	analyzer domain.VenueAnalyzer
	scorer   domain.PreferenceScorer
	def      SearchDefaults
}

func NewVenueService(p PlanReader, s domain.PlaceSearcher, c domain.VenueCache, a domain.VenueAnalyzer, sc domain.PreferenceScorer, def SearchDefaults) *VenueService {
	if def.Workers <= 0 {
		def.Workers = 8
	}
	if def.ScoreTimeout <= 0 {
		def.ScoreTimeout = 8 * time.Second
	}
	return &VenueService{plans: p, search: s, cache: c, analyzer: a, scorer: sc, def: def}
}

type searchParams struct {
	placeType string
	radius    int
	minRating float64
	prices    []int
}

// Search runs the ranking pipeline for a plan's midpoint. Each step consumes
// the complete output of the previous one.
func (s *VenueService) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	plan, err := s.plans.GetPlan(ctx, req.PlanID)
	if err != nil {
		return SearchResult{}, err
	}
	if plan.Midpoint == nil {
		return SearchResult{}, fmt.Errorf("%w: plan %s has no midpoint", domain.ErrPreconditionFailed, plan.ID)
	}
	params, err := s.resolve(req, plan.Filters)
	if err != nil {
		return SearchResult{}, err
	}

	// 1+2. primary search with fallback-on-empty
	candidates, usedType, err := s.searchWithFallback(ctx, *plan.Midpoint, params)
	if err != nil {
		return SearchResult{}, err
	}
	res := SearchResult{
		Venues:   []domain.RankedVenue{},
		Type:     usedType,
		Fallback: usedType != params.placeType,
		Ranking:  RankByRating,
	}
	if len(candidates) == 0 {
		return res, nil
	}

	// 3. cache upsert + analysis
	enriched, err := s.enrich(ctx, candidates)
	if err != nil {
		return SearchResult{}, err
	}
	res.Candidates = len(enriched)

	// 4. travel estimates
	ranked := attachTravel(enriched, plan.Participants)

	// 5. filters
	ranked = filterVenues(ranked, params.minRating, params.prices)

	// 6. ranking
	res.Ranking = s.rank(ctx, ranked, plan)
	res.Venues = ranked

	log.Debug().
		Str("plan", plan.ID).
		Str("type", usedType).
		Int("candidates", res.Candidates).
		Int("returned", len(ranked)).
		Str("ranking", res.Ranking).
		Msg("venue search")
	return res, nil
}

func (s *VenueService) resolve(req SearchRequest, f domain.VenueFilters) (searchParams, error) {
	p := searchParams{
		placeType: firstNonEmpty(strings.ToLower(strings.TrimSpace(req.Type)), f.Type, s.def.Type),
		radius:    firstPositive(req.RadiusMeters, f.RadiusMeters, s.def.RadiusMeters),
		minRating: s.def.MinRating,
		prices:    f.PriceLevels,
	}
	if p.placeType == AnyType {
		p.placeType = ""
	}
	switch {
	case req.MinRating != nil:
		p.minRating = *req.MinRating
	case f.MinRating != nil:
		p.minRating = *f.MinRating
	}
	if req.PriceLevels != nil {
		p.prices = req.PriceLevels
	}
	check := domain.VenueFilters{RadiusMeters: p.radius, MinRating: &p.minRating, PriceLevels: p.prices}
	if err := ValidateFilters(check); err != nil {
		return searchParams{}, err
	}
	if p.radius == 0 {
		return searchParams{}, fmt.Errorf("%w: radius is required", domain.ErrInvalidInput)
	}
	return p, nil
}

// searchWithFallback issues the primary search and, when it is empty and the
// requested type heads the fallback sequence, the remaining types in order.
// It returns the type whose search produced the venues.
func (s *VenueService) searchWithFallback(ctx context.Context, center domain.Coordinate, p searchParams) ([]domain.Venue, string, error) {
	types := []string{p.placeType}
	if seq := s.def.FallbackTypes; len(seq) > 1 && p.placeType == seq[0] {
		types = seq
	}
	for i, t := range types {
		if i > 0 {
			observability.ObserveFallback(t)
			log.Debug().Str("type", t).Str("after", types[i-1]).Msg("empty venue search, falling back")
		}
		vs, err := s.search.SearchNearby(ctx, center, p.radius, t)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			if !errors.Is(err, domain.ErrUpstreamUnavailable) {
				err = fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
			}
			return nil, "", fmt.Errorf("search %q: %w", t, err)
		}
		if len(vs) > 0 {
			return dedupe(vs), t, nil
		}
	}
	return nil, p.placeType, nil
}

// enrich upserts every venue and fills missing analyses, fanning out per
// venue. Cache and analysis failures are logged and the provider data is kept.
func (s *VenueService) enrich(ctx context.Context, vs []domain.Venue) ([]domain.Venue, error) {
	out := make([]domain.Venue, len(vs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.def.Workers)
	for i, v := range vs {
		i, v := i, v
		g.Go(func() error {
			out[i] = s.enrichOne(gctx, v)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *VenueService) enrichOne(ctx context.Context, v domain.Venue) domain.Venue {
	stored, err := s.cache.UpsertVenue(ctx, v)
	if err != nil {
		softFailure(ctx, "upsert", v.ID, err)
		stored = v
	}
	if stored.Analysis != nil || s.analyzer == nil {
		return stored
	}

	a, err := s.analyzer.Analyze(ctx, stored)
	if err != nil {
		softFailure(ctx, "analyze", v.ID, err)
		return stored
	}
	stored.Analysis = &a
	if saved, err := s.cache.UpsertVenue(ctx, stored); err != nil {
		softFailure(ctx, "upsert", v.ID, err)
	} else {
		stored = saved
	}
	return stored
}

// rank orders vs in place and returns the mode used.
func (s *VenueService) rank(ctx context.Context, vs []domain.RankedVenue, plan domain.Plan) string {
	if !plan.Preferences.HasQuery() || s.scorer == nil || len(vs) == 0 {
		sortByRating(vs)
		observability.ObserveRanking(RankByRating)
		return RankByRating
	}

	groupSize := plan.Preferences.GroupSize
	if groupSize == 0 {
		groupSize = len(plan.Participants)
	}
	results, err := s.score(ctx, venuesOf(vs), *plan.Preferences, groupSize)
	if err != nil {
		softFailure(ctx, "score", plan.ID, err)
		sortByRating(vs)
		observability.ObserveRanking(RankByRatingFallback)
		return RankByRatingFallback
	}

	byID := make(map[string]domain.MatchResult, len(results))
	for _, r := range results {
		byID[r.VenueID] = r
	}
	for i := range vs {
		if r, ok := byID[vs[i].ID]; ok {
			r := r
			vs[i].Match = &r
		}
	}
	sort.SliceStable(vs, func(i, j int) bool {
		si, sj := matchScore(vs[i]), matchScore(vs[j])
		if si != sj {
			return si > sj
		}
		return ratingOf(vs[i]) > ratingOf(vs[j])
	})
	observability.ObserveRanking(RankByPreference)
	return RankByPreference
}

type scoreOutcome struct {
	results []domain.MatchResult
	err     error
}

// score bounds the scorer by ScoreTimeout even if it ignores its context.
func (s *VenueService) score(ctx context.Context, vs []domain.Venue, p domain.PreferenceProfile, groupSize int) ([]domain.MatchResult, error) {
	sctx, cancel := context.WithTimeout(ctx, s.def.ScoreTimeout)
	defer cancel()

	ch := make(chan scoreOutcome, 1)
	go func() {
		r, err := s.scorer.Score(sctx, vs, p, groupSize)
		ch <- scoreOutcome{results: r, err: err}
	}()
	select {
	case out := <-ch:
		return out.results, out.err
	case <-sctx.Done():
		return nil, fmt.Errorf("scoring: %w", sctx.Err())
	}
}

func attachTravel(vs []domain.Venue, parts []domain.Participant) []domain.RankedVenue {
	out := make([]domain.RankedVenue, len(vs))
	for i, v := range vs {
		travel := make([]domain.TravelEstimate, 0, len(parts))
		for _, p := range parts {
			if p.Coord == nil {
				continue
			}
			travel = append(travel, geo.Estimate(p.ID, *p.Coord, v.Location))
		}
		out[i] = domain.RankedVenue{Venue: v, Travel: travel}
	}
	return out
}

// sortByRating is stable; unrated venues sort as rating 0.
func sortByRating(vs []domain.RankedVenue) {
	sort.SliceStable(vs, func(i, j int) bool { return ratingOf(vs[i]) > ratingOf(vs[j]) })
}

func ratingOf(v domain.RankedVenue) float64 {
	if v.Rating == nil {
		return 0
	}
	return *v.Rating
}

func matchScore(v domain.RankedVenue) float64 {
	if v.Match == nil {
		return 0
	}
	return v.Match.Score
}

func venuesOf(rs []domain.RankedVenue) []domain.Venue {
	out := make([]domain.Venue, len(rs))
	for i, r := range rs {
		out[i] = r.Venue
	}
	return out
}

func dedupe(vs []domain.Venue) []domain.Venue {
	seen := make(map[string]bool, len(vs))
	out := make([]domain.Venue, 0, len(vs))
	for _, v := range vs {
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		out = append(out, v)
	}
	return out
}

func softFailure(ctx context.Context, stage, id string, err error) {
	observability.ObserveSoftFailure(stage)
	if ctx.Err() != nil {
		log.Debug().Str("stage", stage).Str("id", id).Err(err).Msg("abandoned after cancellation")
		return
	}
	log.Warn().Str("stage", stage).Str("id", id).Err(err).Msg("degraded, continuing without it")
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func firstPositive(ns ...int) int {
	for _, n := range ns {
		if n > 0 {
			return n
		}
	}
	return 0
}

// Venues returns cached venues in the order of ids; unknown ids are skipped.
func (s *VenueService) Venues(ctx context.Context, ids []string) ([]domain.Venue, error) {
	if len(ids) == 0 {
		return []domain.Venue{}, nil
	}
	return s.cache.GetVenues(ctx, ids)
}

package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"midway/internal/adapters/observability"
	"midway/internal/domain"
)

type IndexStats struct {
	Scanned  int
	Analyzed int
	Failed   int
	Indexed  int
}

// IndexService walks the venue cache, backfills missing analyses and pushes
// every page to an optional secondary index.
type IndexService struct {
	venues   domain.VenueCache
	analyzer domain.VenueAnalyzer
	index    domain.VenueIndex // nil skips indexing
	workers  int
	pageSize int
}

func NewIndexService(v domain.VenueCache, a domain.VenueAnalyzer, idx domain.VenueIndex, workers, pageSize int) *IndexService {
	if workers <= 0 {
		workers = 4
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &IndexService{venues: v, analyzer: a, index: idx, workers: workers, pageSize: pageSize}
}

func (s *IndexService) Run(ctx context.Context) (IndexStats, error) {
	var st IndexStats
	after := ""
	for {
		page, err := s.venues.ListVenues(ctx, after, s.pageSize)
		if err != nil {
			return st, fmt.Errorf("list venues after %q: %w", after, err)
		}
		if len(page) == 0 {
			return st, nil
		}
		st.Scanned += len(page)

		analyzed, failed, err := s.backfill(ctx, page)
		st.Analyzed += analyzed
		st.Failed += failed
		if err != nil {
			return st, err
		}

		if s.index != nil {
			if err := s.index.IndexVenues(ctx, page); err != nil {
				return st, fmt.Errorf("index page after %q: %w", after, err)
			}
			st.Indexed += len(page)
		}
		log.Info().Int("scanned", st.Scanned).Int("analyzed", st.Analyzed).Msg("index page done")

		after = page[len(page)-1].ID
		if len(page) < s.pageSize {
			return st, nil
		}
	}
}

// backfill analyses the venues of page that lack one, in place.
func (s *IndexService) backfill(ctx context.Context, page []domain.Venue) (analyzed, failed int, err error) {
	if s.analyzer == nil {
		return 0, 0, nil
	}
	sem := semaphore.NewWeighted(int64(s.workers))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := range page {
		if page[i].Analysis != nil {
			continue
		}
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return analyzed, failed, err
		}
		wg.Add(1)
		go func(v *domain.Venue) {
			defer wg.Done()
			defer sem.Release(1)

			ok := s.analyzeOne(ctx, v)
			mu.Lock()
			if ok {
				analyzed++
			} else {
				failed++
			}
			mu.Unlock()
		}(&page[i])
	}
	wg.Wait()
	return analyzed, failed, ctx.Err()
}

func (s *IndexService) analyzeOne(ctx context.Context, v *domain.Venue) bool {
	a, err := s.analyzer.Analyze(ctx, *v)
	if err != nil {
		observability.ObserveSoftFailure("analyze")
		log.Warn().Str("id", v.ID).Err(err).Msg("analysis failed")
		return false
	}
	v.Analysis = &a
	saved, err := s.venues.UpsertVenue(ctx, *v)
	if err != nil {
		observability.ObserveSoftFailure("upsert")
		log.Warn().Str("id", v.ID).Err(err).Msg("storing analysis failed")
		return false
	}
	*v = saved
	return true
}

// Package elastic serves nearby venue searches from an Elasticsearch index
// populated from the venue cache, for deployments that run without a live
// place-search provider.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olivere/elastic/v7"
	"github.com/rs/zerolog/log"

	"midway/internal/adapters/observability"
	"midway/internal/domain"
)

const venueMapping = `{
  "settings": {"number_of_shards": 1},
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "name":        {"type": "text"},
      "category":    {"type": "keyword"},
      "features":    {"type": "keyword"},
      "rating":      {"type": "float"},
      "reviewCount": {"type": "integer"},
      "priceLevel":  {"type": "integer"},
      "address":     {"type": "text"},
      "location":    {"type": "geo_point"},
      "phone":       {"type": "keyword", "index": false},
      "website":     {"type": "keyword", "index": false},
      "photos":      {"type": "keyword", "index": false},
      "hours":       {"type": "keyword", "index": false},
      "updatedAt":   {"type": "date"}
    }
  }
}`

const maxHits = 60

type doc struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Features    []string         `json:"features,omitempty"`
	Rating      *float64         `json:"rating,omitempty"`
	ReviewCount *int             `json:"reviewCount,omitempty"`
	PriceLevel  *int             `json:"priceLevel,omitempty"`
	Address     string           `json:"address"`
	Location    elastic.GeoPoint `json:"location"`
	Phone       *string          `json:"phone,omitempty"`
	Website     *string          `json:"website,omitempty"`
	Photos      []string         `json:"photos,omitempty"`
	Hours       []string         `json:"hours,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type Store struct {
	c     *elastic.Client
	index string
}

func New(url, index string) (*Store, error) {
	c, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}
	return &Store{c: c, index: index}, nil
}

func (s *Store) Stop() { s.c.Stop() }

// EnsureIndex creates the venue index with its geo mapping when missing.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.c.IndexExists(s.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	if exists {
		return nil
	}
	res, err := s.c.CreateIndex(s.index).BodyString(venueMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if !res.Acknowledged {
		log.Warn().Str("index", s.index).Msg("create index was not acknowledged")
	}
	return nil
}

func (s *Store) SearchNearby(ctx context.Context, center domain.Coordinate, radiusMeters int, placeType string) ([]domain.Venue, error) {
	q := elastic.NewBoolQuery().Filter(
		elastic.NewGeoDistanceQuery("location").
			Lat(center.Lat).Lon(center.Lng).
			Distance(fmt.Sprintf("%dm", radiusMeters)),
	)
	if placeType != "" {
		q = q.Filter(elastic.NewBoolQuery().
			Should(elastic.NewTermQuery("category", placeType), elastic.NewTermQuery("features", placeType)).
			MinimumNumberShouldMatch(1))
	}

	start := time.Now()
	res, err := s.c.Search().
		Index(s.index).
		Query(q).
		SortBy(elastic.NewGeoDistanceSort("location").
			Point(center.Lat, center.Lng).
			Asc().
			Unit("m").
			DistanceType("arc").
			IgnoreUnmapped(true)).
		Size(maxHits).
		Do(ctx)
	status := 200
	if err != nil {
		status = 0
		if e, ok := err.(*elastic.Error); ok {
			status = e.Status
		}
	}
	observability.ObserveExternal("elastic", "search", status, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("elastic search: %v: %w", err, domain.ErrUpstreamUnavailable)
	}

	venues := make([]domain.Venue, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var d doc
		if err := json.Unmarshal(hit.Source, &d); err != nil {
			log.Warn().Err(err).Str("id", hit.Id).Msg("skipping undecodable venue document")
			continue
		}
		venues = append(venues, fromDoc(d))
	}
	return venues, nil
}

// IndexVenues bulk-indexes venues by provider id, replacing older documents.
func (s *Store) IndexVenues(ctx context.Context, vs []domain.Venue) error {
	if len(vs) == 0 {
		return nil
	}
	bulk := s.c.Bulk()
	for _, v := range vs {
		bulk.Add(elastic.NewBulkIndexRequest().Index(s.index).Id(v.ID).Doc(toDoc(v)))
	}
	res, err := bulk.Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	if res.Errors {
		failed := res.Failed()
		return fmt.Errorf("bulk index: %d of %d documents failed", len(failed), len(vs))
	}
	return nil
}

func toDoc(v domain.Venue) doc {
	return doc{
		ID: v.ID, Name: v.Name, Category: v.Category, Features: v.Features,
		Rating: v.Rating, ReviewCount: v.ReviewCount, PriceLevel: v.PriceLevel,
		Address:  v.Address,
		Location: elastic.GeoPoint{Lat: v.Location.Lat, Lon: v.Location.Lng},
		Phone:    v.Phone, Website: v.Website, Photos: v.Photos, Hours: v.Hours,
		UpdatedAt: v.UpdatedAt,
	}
}

func fromDoc(d doc) domain.Venue {
	return domain.Venue{
		ID: d.ID, Name: d.Name, Category: d.Category, Features: d.Features,
		Rating: d.Rating, ReviewCount: d.ReviewCount, PriceLevel: d.PriceLevel,
		Address:  d.Address,
		Location: domain.Coordinate{Lat: d.Location.Lat, Lng: d.Location.Lon},
		Phone:    d.Phone, Website: d.Website, Photos: d.Photos, Hours: d.Hours,
		UpdatedAt: d.UpdatedAt,
	}
}

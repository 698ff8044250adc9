package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"midway/internal/domain"
)

// CachedGeocoder is a read-through cache in front of a Geocoder.
// Only successful lookups are cached.
type CachedGeocoder struct {
	next  domain.Geocoder
	cache domain.Cache
	ttl   time.Duration
}

func NewCachedGeocoder(next domain.Geocoder, c domain.Cache, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: c, ttl: ttl}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	key := geocodeKey(address)
	var c domain.Coordinate
	if ok, _ := g.cache.Get(ctx, key, &c); ok {
		return c, nil
	}
	c, err := g.next.Geocode(ctx, address)
	if err != nil {
		return domain.Coordinate{}, err
	}
	_ = g.cache.Set(ctx, key, c, int(g.ttl.Seconds()))
	return c, nil
}

// geocodeKey hashes the case- and whitespace-normalised address.
func geocodeKey(address string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	sum := sha1.Sum([]byte(norm))
	return "geo:" + hex.EncodeToString(sum[:])
}

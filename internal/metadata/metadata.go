// Package metadata is the typed query interface + cache over third-party
// TV/movie databases (spec §1 "Third-party metadata APIs ... treated as a
// typed query interface with a cache"). Grounded on the shape of
// internal/http/tmdb/search.go's typed Movie/Episode/Season/Series structs
// and its adrg/strutil fuzzy-match ranking, generalized behind an interface
// so internal/preview never imports a concrete provider.
package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/cenkalti/backoff/v4"

	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("Metadata")

// Series is a TV show search result.
type Series struct {
	ExternalID string
	Name       string
}

// Episode is one episode's metadata as returned by the provider.
type Episode struct {
	EpisodeNumber int
	Name          string
	SeasonNumber  int
	RuntimeMin    *int
	Overview      *string
}

// Movie is a movie search result.
type Movie struct {
	ExternalID string
	Title      string
	Year       *int
}

// Provider is implemented by a concrete third-party client (TMDB-shaped or
// otherwise); swapping providers never touches internal/preview.
type Provider interface {
	SearchSeries(ctx context.Context, name string) ([]Series, error)
	SeasonEpisodes(ctx context.Context, seriesExternalID string, seasonNumber int) ([]Episode, error)
	SearchMovie(ctx context.Context, title string, year *int) ([]Movie, error)
}

// Client wraps a Provider with an in-memory TTL cache and retry/backoff on
// transient errors (spec §7: metadata lookups retried with
// cenkalti/backoff).
type Client struct {
	provider Provider
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

func New(provider Provider, ttl time.Duration) *Client {
	return &Client{provider: provider, ttl: ttl, cache: make(map[string]cacheEntry)}
}

// BestMatchingSeries fuzzy-ranks search results against name using
// Jaro-Winkler similarity, the same metric the teacher's TMDB client uses
// to rank ambiguous title matches.
func (c *Client) BestMatchingSeries(ctx context.Context, name string) (Series, bool, error) {
	key := "series:" + name
	if cached, ok := c.fromCache(key); ok {
		return cached.(Series), true, nil
	}

	var results []Series
	err := backoff.Retry(func() error {
		var err error
		results, err = c.provider.SearchSeries(ctx, name)
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3))
	if err != nil {
		return Series{}, false, fmt.Errorf("search series %q: %w", name, err)
	}
	if len(results) == 0 {
		return Series{}, false, nil
	}

	best := results[0]
	bestScore := similarity(name, best.Name)
	for _, r := range results[1:] {
		if score := similarity(name, r.Name); score > bestScore {
			best, bestScore = r, score
		}
	}

	c.toCache(key, best)
	return best, true, nil
}

func (c *Client) SeasonEpisodes(ctx context.Context, seriesExternalID string, seasonNumber int) ([]Episode, error) {
	key := fmt.Sprintf("episodes:%s:%d", seriesExternalID, seasonNumber)
	if cached, ok := c.fromCache(key); ok {
		return cached.([]Episode), nil
	}

	var episodes []Episode
	err := backoff.Retry(func() error {
		var err error
		episodes, err = c.provider.SeasonEpisodes(ctx, seriesExternalID, seasonNumber)
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3))
	if err != nil {
		return nil, fmt.Errorf("fetch season %d episodes for series %s: %w", seasonNumber, seriesExternalID, err)
	}

	c.toCache(key, episodes)
	return episodes, nil
}

// BestMatchingMovie mirrors BestMatchingSeries for the movie lookup path
// (spec §4.3 step 4 "look up title (+year if parseable)").
func (c *Client) BestMatchingMovie(ctx context.Context, title string, year *int) (Movie, bool, error) {
	key := fmt.Sprintf("movie:%s:%v", title, year)
	if cached, ok := c.fromCache(key); ok {
		return cached.(Movie), true, nil
	}

	var results []Movie
	err := backoff.Retry(func() error {
		var err error
		results, err = c.provider.SearchMovie(ctx, title, year)
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3))
	if err != nil {
		return Movie{}, false, fmt.Errorf("search movie %q: %w", title, err)
	}
	if len(results) == 0 {
		return Movie{}, false, nil
	}

	best := results[0]
	bestScore := similarity(title, best.Title)
	for _, r := range results[1:] {
		if score := similarity(title, r.Title); score > bestScore {
			best, bestScore = r, score
		}
	}

	c.toCache(key, best)
	return best, true, nil
}

func similarity(a, b string) float64 {
	return strutil.Similarity(a, b, metrics.NewJaroWinkler())
}

func (c *Client) fromCache(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.value, true
}

func (c *Client) toCache(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{value: value, expires: time.Now().Add(c.ttl)}
}

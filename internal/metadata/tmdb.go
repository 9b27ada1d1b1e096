package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const (
	tmdbBaseURL = "https://api.themoviedb.org/3"

	tmdbSearchSeriesPath = "%s/search/tv?query=%s&api_key=%s"
	tmdbSearchMoviePath  = "%s/search/movie?query=%s&api_key=%s"
	tmdbSeasonPath       = "%s/tv/%s/season/%d?api_key=%s"

	tmdbRequestTimeout = 10 * time.Second
)

// TMDBProvider is the default Provider, grounded on
// internal/http/tmdb/search.go's search/fetch shape and
// fuzzy-similarity disambiguation (same adrg/strutil Hamming metric).
type TMDBProvider struct {
	apiKey string
	client *http.Client
}

func NewTMDBProvider(apiKey string) *TMDBProvider {
	return &TMDBProvider{apiKey: apiKey, client: &http.Client{Timeout: tmdbRequestTimeout}}
}

type tmdbSearchResult struct {
	Results []tmdbSearchItem `json:"results"`
}

type tmdbSearchItem struct {
	ID           json.Number `json:"id"`
	Name         string      `json:"name"`
	Title        string      `json:"title"`
	FirstAirDate string      `json:"first_air_date"`
	ReleaseDate  string      `json:"release_date"`
}

func (p *TMDBProvider) SearchSeries(ctx context.Context, name string) ([]Series, error) {
	path := fmt.Sprintf(tmdbSearchSeriesPath, tmdbBaseURL, url.QueryEscape(name), p.apiKey)
	var result tmdbSearchResult
	if err := p.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}

	out := make([]Series, 0, len(result.Results))
	for _, item := range result.Results {
		out = append(out, Series{ExternalID: string(item.ID), Name: item.Name})
	}
	rankByNameSimilarity(out, name, func(s Series) string { return s.Name })
	return out, nil
}

func (p *TMDBProvider) SearchMovie(ctx context.Context, title string, year *int) ([]Movie, error) {
	path := fmt.Sprintf(tmdbSearchMoviePath, tmdbBaseURL, url.QueryEscape(title), p.apiKey)
	var result tmdbSearchResult
	if err := p.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}

	out := make([]Movie, 0, len(result.Results))
	for _, item := range result.Results {
		m := Movie{ExternalID: string(item.ID), Title: item.Title}
		if item.ReleaseDate != "" {
			if t, err := time.Parse(time.DateOnly, item.ReleaseDate); err == nil {
				y := t.Year()
				m.Year = &y
			}
		}
		if year == nil || m.Year == nil || *m.Year == *year {
			out = append(out, m)
		}
	}
	rankByNameSimilarity(out, title, func(m Movie) string { return m.Title })
	return out, nil
}

type tmdbSeason struct {
	Episodes []struct {
		EpisodeNumber int    `json:"episode_number"`
		Name          string `json:"name"`
		Overview      string `json:"overview"`
		Runtime       *int   `json:"runtime"`
	} `json:"episodes"`
}

func (p *TMDBProvider) SeasonEpisodes(ctx context.Context, seriesExternalID string, seasonNumber int) ([]Episode, error) {
	path := fmt.Sprintf(tmdbSeasonPath, tmdbBaseURL, seriesExternalID, seasonNumber, p.apiKey)
	var result tmdbSeason
	if err := p.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}

	out := make([]Episode, 0, len(result.Episodes))
	for _, e := range result.Episodes {
		out = append(out, Episode{
			EpisodeNumber: e.EpisodeNumber,
			Name:          e.Name,
			SeasonNumber:  seasonNumber,
			RuntimeMin:    e.Runtime,
			Overview:      &e.Overview,
		})
	}
	return out, nil
}

func (p *TMDBProvider) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tmdb returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}

// rankByNameSimilarity sorts results by Hamming similarity against query,
// same disambiguation metric the teacher uses when TMDB returns more than
// one plausible match.
func rankByNameSimilarity[T any](results []T, query string, nameOf func(T) string) {
	metric := &metrics.Hamming{CaseSensitive: false}
	sort.SliceStable(results, func(i, j int) bool {
		return strutil.Similarity(nameOf(results[i]), query, metric) > strutil.Similarity(nameOf(results[j]), query, metric)
	})
}

// NullProvider is used when no metadata API key is configured; every
// lookup returns no results rather than erroring, so preview generation
// still proceeds (spec §4.3: low-confidence matches fall back to manual
// operator classification rather than blocking the pipeline).
type NullProvider struct{}

func NewNullProvider() *NullProvider { return &NullProvider{} }

func (NullProvider) SearchSeries(context.Context, string) ([]Series, error)            { return nil, nil }
func (NullProvider) SeasonEpisodes(context.Context, string, int) ([]Episode, error)     { return nil, nil }
func (NullProvider) SearchMovie(context.Context, string, *int) ([]Movie, error)         { return nil, nil }

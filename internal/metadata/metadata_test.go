package metadata_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/metadata"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SearchSeries(ctx context.Context, name string) ([]metadata.Series, error) {
	args := m.Called(ctx, name)
	if v, ok := args.Get(0).([]metadata.Series); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) SeasonEpisodes(ctx context.Context, seriesExternalID string, seasonNumber int) ([]metadata.Episode, error) {
	args := m.Called(ctx, seriesExternalID, seasonNumber)
	if v, ok := args.Get(0).([]metadata.Episode); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) SearchMovie(ctx context.Context, title string, year *int) ([]metadata.Movie, error) {
	args := m.Called(ctx, title, year)
	if v, ok := args.Get(0).([]metadata.Movie); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestBestMatchingSeriesPicksHighestSimilarity(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SearchSeries", mock.Anything, "Breaking Bad").Return([]metadata.Series{
		{ExternalID: "1", Name: "Breaking Bad Reactions"},
		{ExternalID: "2", Name: "Breaking Bad"},
	}, nil)

	client := metadata.New(provider, time.Minute)
	best, found, err := client.BestMatchingSeries(context.Background(), "Breaking Bad")

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2", best.ExternalID)
	provider.AssertNumberOfCalls(t, "SearchSeries", 1)
}

func TestBestMatchingSeriesNoResultsIsNotAnError(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SearchSeries", mock.Anything, "Unknown Show").Return([]metadata.Series(nil), nil)

	client := metadata.New(provider, time.Minute)
	_, found, err := client.BestMatchingSeries(context.Background(), "Unknown Show")

	require.NoError(t, err)
	assert.False(t, found, "a miss is reported as not-found, not an error (spec §4.3)")
}

func TestBestMatchingSeriesCachesResult(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SearchSeries", mock.Anything, "Firefly").Return([]metadata.Series{
		{ExternalID: "1", Name: "Firefly"},
	}, nil).Once()

	client := metadata.New(provider, time.Minute)
	_, _, err := client.BestMatchingSeries(context.Background(), "Firefly")
	require.NoError(t, err)

	_, found, err := client.BestMatchingSeries(context.Background(), "Firefly")
	require.NoError(t, err)
	assert.True(t, found)
	provider.AssertNumberOfCalls(t, "SearchSeries", 1)
}

func TestBestMatchingMoviePicksHighestSimilarity(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SearchMovie", mock.Anything, "Dune", (*int)(nil)).Return([]metadata.Movie{
		{ExternalID: "10", Title: "Dune Part Two"},
		{ExternalID: "11", Title: "Dune"},
	}, nil)

	client := metadata.New(provider, time.Minute)
	best, found, err := client.BestMatchingMovie(context.Background(), "Dune", nil)

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "11", best.ExternalID)
}

func TestBestMatchingSeriesPropagatesProviderError(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SearchSeries", mock.Anything, "Flaky").Return([]metadata.Series(nil), errors.New("rate limited")).Times(4)

	client := metadata.New(provider, time.Minute)
	_, _, err := client.BestMatchingSeries(context.Background(), "Flaky")
	require.Error(t, err)
}

func TestNullProviderNeverErrors(t *testing.T) {
	provider := metadata.NewNullProvider()

	series, err := provider.SearchSeries(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, series)

	movies, err := provider.SearchMovie(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Nil(t, movies)

	episodes, err := provider.SeasonEpisodes(context.Background(), "ext-id", 1)
	require.NoError(t, err)
	assert.Nil(t, episodes)
}

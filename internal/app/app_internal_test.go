package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsServerClosedRecognizesHTTPServerClosed(t *testing.T) {
	assert.True(t, isServerClosed(http.ErrServerClosed))
	assert.True(t, isServerClosed(fmt.Errorf("wrapped: %w", http.ErrServerClosed)))
	assert.False(t, isServerClosed(errors.New("boom")))
}

func TestRunnableFuncSatisfiesRunnableService(t *testing.T) {
	var called bool
	var svc RunnableService = runnableFunc(func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.NoError(t, svc.Run(context.Background()))
	assert.True(t, called)
}

func TestSpawnServiceRecoversFromPanicAndReportsCrash(t *testing.T) {
	app := &App{}
	wg := &sync.WaitGroup{}
	wg.Add(1)

	var gotLabel string
	var gotErr error
	crashHandler := func(label string, err error) {
		gotLabel = label
		gotErr = err
	}

	app.spawnService(context.Background(), wg, runnableFunc(func(ctx context.Context) error {
		panic("boom")
	}), "TestService", crashHandler)
	wg.Wait()

	assert.Equal(t, "TestService", gotLabel)
	assert.ErrorContains(t, gotErr, "boom")
}

func TestSpawnServiceReportsReturnedError(t *testing.T) {
	app := &App{}
	wg := &sync.WaitGroup{}
	wg.Add(1)

	var gotErr error
	crashHandler := func(label string, err error) {
		gotErr = err
	}

	app.spawnService(context.Background(), wg, runnableFunc(func(ctx context.Context) error {
		return errors.New("service failed to start")
	}), "TestService", crashHandler)
	wg.Wait()

	assert.ErrorContains(t, gotErr, "service failed to start")
}

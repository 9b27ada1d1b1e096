package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/api"
	"github.com/ripcoord/ripcoord/internal/notify"
)

type recordingSink struct {
	events []notify.Event
}

func (r *recordingSink) Notify(e notify.Event) { r.events = append(r.events, e) }

func TestWebsocketRouteDegradesTo501ForNonHubSink(t *testing.T) {
	srv := api.New(api.Config{}, api.Deps{Sink: &recordingSink{}})

	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestWebsocketRouteUpgradesForHubSink(t *testing.T) {
	hub := notify.NewHub()
	srv := api.New(api.Config{}, api.Deps{Sink: hub})
	testSrv := httptest.NewServer(srv.Handler())
	defer testSrv.Close()

	wsURL := "ws" + testSrv.URL[len("http"):] + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

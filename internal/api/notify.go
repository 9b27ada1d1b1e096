package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripcoord/ripcoord/internal/notify"
)

// handleWebsocket upgrades an operator connection onto the notification
// hub (spec §4.8's notification sink). Only *notify.Hub implements the
// upgrade side of notify.Sink; a test double that merely records events
// has nothing to upgrade, so the route degrades to 501 rather than panic.
func (s *Server) handleWebsocket(c echo.Context) error {
	hub, ok := s.sink.(*notify.Hub)
	if !ok {
		return echo.NewHTTPError(http.StatusNotImplemented, "notification sink does not support live connections")
	}
	return hub.UpgradeAndRegister(c.Response(), c.Request())
}

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripcoord/ripcoord/internal/store"
)

// handleVLCPoll implements spec §4.7: an agent's poll atomically fetches
// and flips its pending commands to sent (single-poll delivery).
func (s *Server) handleVLCPoll(c echo.Context) error {
	commands, err := s.vlc.Poll(c.Param("agent_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"commands": commands})
}

type queuePreviewRequest struct {
	AgentID    string `json:"agent_id" validate:"required"`
	FilePath   string `json:"file_path" validate:"required"`
	Fullscreen bool   `json:"fullscreen"`
}

// handleVLCQueue implements spec §4.7's queue_preview(agent_id, path,
// fullscreen) operator action.
func (s *Server) handleVLCQueue(c echo.Context) error {
	var req queuePreviewRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}
	cmd, err := s.vlc.QueuePreview(req.AgentID, req.FilePath, req.Fullscreen)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cmd)
}

type vlcReportRequest struct {
	Status store.VLCCommandStatus `json:"status" validate:"required"`
	Error  *string                `json:"error,omitempty"`
}

// handleVLCReport implements the agent's report(completed|failed) half of
// spec §4.7.
func (s *Server) handleVLCReport(c echo.Context) error {
	var req vlcReportRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}
	if err := s.vlc.Report(c.Param("id"), req.Status, req.Error); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

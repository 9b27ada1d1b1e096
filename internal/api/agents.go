package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripcoord/ripcoord/internal/store"
)

type registerAgentRequest struct {
	AgentID      string                  `json:"agent_id" validate:"required"`
	Name         string                  `json:"name" validate:"required"`
	Capabilities store.AgentCapabilities `json:"capabilities"`
}

func (s *Server) handleRegisterAgent(c echo.Context) error {
	var req registerAgentRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	agent, err := s.agents.Register(store.Agent{
		ID:           req.AgentID,
		Name:         req.Name,
		Capabilities: req.Capabilities,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, agent)
}

func (s *Server) handleAgentHeartbeat(c echo.Context) error {
	id := c.Param("id")
	if err := s.agents.Heartbeat(id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

func (s *Server) handleAgentJobs(c echo.Context) error {
	id := c.Param("id")
	jobs, err := s.jobs.JobsForAgent(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"jobs": jobs})
}

type registerWorkerRequest struct {
	WorkerID     string                   `json:"worker_id" validate:"required"`
	Type         store.WorkerType         `json:"type" validate:"required"`
	Hostname     string                   `json:"hostname" validate:"required"`
	AgentID      *string                  `json:"agent_id,omitempty"`
	Capabilities store.WorkerCapabilities `json:"capabilities"`
	Priority     int                      `json:"priority"`
	Enabled      *bool                    `json:"enabled,omitempty"`
}

func (s *Server) handleRegisterWorker(c echo.Context) error {
	var req registerWorkerRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	worker, err := s.workers.Register(store.Worker{
		ID:           req.WorkerID,
		Type:         req.Type,
		Hostname:     req.Hostname,
		AgentID:      req.AgentID,
		Capabilities: req.Capabilities,
		Priority:     req.Priority,
		Enabled:      enabled,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, worker)
}

func (s *Server) handleWorkerHeartbeat(c echo.Context) error {
	id := c.Param("id")
	if err := s.workers.Heartbeat(id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

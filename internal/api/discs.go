package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripcoord/ripcoord/internal/season"
	"github.com/ripcoord/ripcoord/internal/store"
)

type titleInput struct {
	Index           int    `json:"index"`
	Name            string `json:"name"`
	DurationSeconds int    `json:"duration_seconds"`
	SizeBytes       int64  `json:"size_bytes"`
	Chapters        int    `json:"chapters"`
}

type discDetectedRequest struct {
	AgentID  string       `json:"agent_id" validate:"required"`
	Drive    string       `json:"drive" validate:"required"`
	DiscName string       `json:"disc_name" validate:"required"`
	DiscType string       `json:"disc_type"`
	Titles   []titleInput `json:"titles"`
}

// handleDiscDetected implements spec §4.3's entry point: create (or, on a
// re-insertion at the same drive, reuse) the disc row and its raw titles,
// then run the preview pipeline synchronously so the response already
// carries the proposed classification.
func (s *Server) handleDiscDetected(c echo.Context) error {
	var req discDetectedRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	discType := store.DiscType(req.DiscType)
	if discType == "" {
		discType = store.DiscUnknown
	}

	disc, err := s.discs.Create(store.Disc{
		AgentID: req.AgentID,
		Drive:   req.Drive,
		Name:    req.DiscName,
		Type:    discType,
	})
	if err != nil {
		return httpError(err)
	}

	titles := make([]store.Title, len(req.Titles))
	for i, t := range req.Titles {
		titles[i] = store.Title{
			Index:           t.Index,
			Name:            t.Name,
			DurationSeconds: t.DurationSeconds,
			SizeBytes:       t.SizeBytes,
			Chapters:        t.Chapters,
		}
	}
	if err := s.titles.ReplaceAll(disc.ID, titles); err != nil {
		return httpError(err)
	}

	updated, err := s.pipeline.Run(c.Request().Context(), disc.ID)
	if err != nil {
		log.Errorf("preview pipeline failed for disc %s: %v\n", disc.ID, err)
		return httpError(err)
	}

	withTitles, err := s.titles.ForDisc(updated.ID)
	if err == nil {
		updated.Titles = withTitles
	}
	return c.JSON(http.StatusOK, updated)
}

type discEjectedRequest struct {
	AgentID string `json:"agent_id" validate:"required"`
	Drive   string `json:"drive" validate:"required"`
}

func (s *Server) handleDiscEjected(c echo.Context) error {
	var req discEjectedRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	disc, err := s.discs.ByDrive(req.AgentID, req.Drive)
	if err != nil {
		return httpError(err)
	}
	if err := s.discs.SetStatus(disc.ID, store.DiscEjected); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

func (s *Server) loadDiscWithTitles(id string) (store.Disc, error) {
	disc, err := s.discs.Get(id)
	if err != nil {
		return store.Disc{}, err
	}
	titles, err := s.titles.ForDisc(id)
	if err != nil {
		return store.Disc{}, err
	}
	disc.Titles = titles
	return disc, nil
}

func (s *Server) handleGetDisc(c echo.Context) error {
	disc, err := s.loadDiscWithTitles(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, disc)
}

func (s *Server) handleRipStatus(c echo.Context) error {
	status, err := s.jobs.RipStatusForDisc(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, status)
}

type titleEditInput struct {
	Index            int     `json:"index" validate:"required"`
	ProposedFilename *string `json:"proposed_filename,omitempty"`
	ProposedPath     *string `json:"proposed_path,omitempty"`
	EpisodeNumber    *int    `json:"episode_number,omitempty"`
	EpisodeTitle     *string `json:"episode_title,omitempty"`
	IsExtra          *bool   `json:"is_extra,omitempty"`
	Selected         *bool   `json:"selected,omitempty"`
}

type approvePreviewRequest struct {
	TitleEdits []titleEditInput `json:"title_edits,omitempty"`
}

// handleApprovePreview implements spec §3's only legal preview_status
// transition into approved, applying any per-title edits first so the
// approved disc reflects the operator's corrections verbatim.
func (s *Server) handleApprovePreview(c echo.Context) error {
	id := c.Param("id")
	var req approvePreviewRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	for _, e := range req.TitleEdits {
		edit := store.TitleEdit{
			Index:            e.Index,
			ProposedFilename: e.ProposedFilename,
			ProposedPath:     e.ProposedPath,
			EpisodeNumber:    e.EpisodeNumber,
			EpisodeTitle:     e.EpisodeTitle,
			IsExtra:          e.IsExtra,
			Selected:         e.Selected,
		}
		if err := s.titles.ApplyEdit(id, e.Index, edit); err != nil {
			return httpError(err)
		}
	}

	disc, err := s.discs.ApprovePreview(id)
	if err != nil {
		return httpError(err)
	}
	if withTitles, err := s.titles.ForDisc(id); err == nil {
		disc.Titles = withTitles
	}
	return c.JSON(http.StatusOK, disc)
}

func (s *Server) handleRejectPreview(c echo.Context) error {
	disc, err := s.discs.RejectPreview(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, disc)
}

type updateSeasonRequest struct {
	SeasonNumber    int `json:"season_number" validate:"required"`
	StartingEpisode int `json:"starting_episode" validate:"required"`
}

// handleUpdateSeason implements the "edit season/starting-episode" path
// (spec §4.4): force the season's counter to the operator-supplied value,
// then re-run the preview pipeline so episode matching picks it up.
func (s *Server) handleUpdateSeason(c echo.Context) error {
	id := c.Param("id")
	var req updateSeasonRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	disc, err := s.discs.Get(id)
	if err != nil {
		return httpError(err)
	}
	if disc.TV.ShowName == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "disc has no TV classification to edit")
	}

	seasonID := season.NormalizeSeasonID(*disc.TV.ShowName, req.SeasonNumber)
	if err := s.seasons.EditStartingEpisode(seasonID, req.StartingEpisode); err != nil {
		return httpError(err)
	}

	updated, err := s.pipeline.Run(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if withTitles, err := s.titles.ForDisc(id); err == nil {
		updated.Titles = withTitles
	}
	return c.JSON(http.StatusOK, updated)
}

type requestRipRequest struct {
	TitleIndices []int `json:"title_indices,omitempty"`
}

// handleRequestRip creates one rip job per selected title, auto-assigned
// to the agent that owns the disc (spec §4.1, §6 "POST /api/discs/{id}/rip").
func (s *Server) handleRequestRip(c echo.Context) error {
	id := c.Param("id")
	var req requestRipRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	disc, err := s.discs.Get(id)
	if err != nil {
		return httpError(err)
	}
	if disc.PreviewStatus != store.PreviewApproved {
		return echo.NewHTTPError(http.StatusBadRequest, "disc preview is not approved")
	}

	titles, err := s.titles.ForDisc(id)
	if err != nil {
		return httpError(err)
	}

	indices := req.TitleIndices
	if len(indices) == 0 {
		for _, t := range titles {
			if t.Selected {
				indices = append(indices, t.Index)
			}
		}
	}

	byIndex := map[int]store.Title{}
	for _, t := range titles {
		byIndex[t.Index] = t
	}

	jobIDs := make([]string, 0, len(indices))
	for _, idx := range indices {
		title, ok := byIndex[idx]
		if !ok {
			continue
		}
		job, err := s.jobs.CreateRipJob(id, disc.AgentID, idx, title.Name, 50)
		if err != nil {
			return httpError(err)
		}
		jobIDs = append(jobIDs, job.ID)
	}

	if err := s.discs.SetStatus(id, store.DiscRipping); err != nil {
		log.Warnf("failed to mark disc %s ripping: %v\n", id, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"job_ids": jobIDs})
}

package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/ripcoord/ripcoord/internal/store"
)

var reSeasonDir = regexp.MustCompile(`(?i)Season \d+`)

// inferMediaType implements spec §4.8's "parse the uploaded filename to
// determine media type": a "Season NN" path component means TV, anything
// else is treated as a movie.
func inferMediaType(relativePath string) store.MediaType {
	if reSeasonDir.MatchString(relativePath) {
		return store.MediaTVShow
	}
	return store.MediaMovie
}

// handleUpload implements spec §6 "POST /api/files/upload multipart
// {file,name} -> {path,final_path,organized,metadata}": it stages the
// uploaded bytes, then hands the staged path to the organizer for the
// atomic library move. Organize failure is not fatal to the upload itself
// (spec §4.8 "failure to organize leaves the upload in its temporary
// location") — the response just reports organized=false.
func (s *Server) handleUpload(c echo.Context) error {
	name := c.FormValue("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing required form field \"name\"")
	}
	discID := c.FormValue("disc_id")
	jobID := c.FormValue("job_id")

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing required form file \"file\"")
	}

	if err := os.MkdirAll(s.stagingDir, os.ModePerm); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("create staging dir: %s", err))
	}
	stagedPath := filepath.Join(s.stagingDir, store.NewID()+filepath.Ext(name))

	if err := stageUploadedFile(fh, stagedPath); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("stage upload: %s", err))
	}

	mediaType := inferMediaType(name)
	finalPath, organizeErr := s.organizer.Place(c.Request().Context(), stagedPath, name, mediaType, discID, jobID)

	resp := map[string]any{
		"path":       stagedPath,
		"final_path": finalPath,
		"organized":  organizeErr == nil,
		"metadata": map[string]any{
			"media_type": mediaType,
			"disc_id":    discID,
			"job_id":     jobID,
		},
	}
	if organizeErr != nil {
		log.Warnf("organize failed for upload %q (job=%s): %v\n", name, jobID, organizeErr)
		resp["path"] = stagedPath
		resp["final_path"] = stagedPath
	}
	return c.JSON(http.StatusOK, resp)
}

func stageUploadedFile(fh *multipart.FileHeader, dest string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

func (s *Server) handleThumbnail(c echo.Context) error {
	owner := c.Param("owner")
	filename := c.Param("filename")

	path := filepath.Join(s.thumbnailsDir, owner, filepath.Base(filename))
	if _, err := os.Stat(path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "thumbnail not found")
	}
	return c.File(path)
}

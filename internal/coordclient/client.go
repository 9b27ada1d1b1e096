// Package coordclient is the agent and worker processes' HTTP client to
// the coordinator's REST API (spec §6 "Agent <-> Coordinator HTTP"). It is
// the only thing an agent/worker process knows about the coordinator's
// wire format; everything downstream (ripper, transcoder, organizer)
// operates purely on local inputs.
package coordclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ripcoord/ripcoord/internal/store"
)

// Config is the connection configuration shared by agent and worker
// processes, loaded from TOML with env overlay alongside the rest of
// their config.
type Config struct {
	BaseURL      string        `toml:"base_url" env:"COORDINATOR_URL" env-required:"true"`
	BearerToken  string        `toml:"bearer_token" env:"COORDINATOR_TOKEN"`
	RequestTimeout time.Duration `toml:"request_timeout" env-default:"30s"`
}

// Client wraps an *http.Client with the coordinator's base URL and bearer
// token; every method below is a thin JSON request/response mapping onto
// one spec §6 endpoint.
type Client struct {
	cfg Config
	hc  *http.Client
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg, hc: &http.Client{Timeout: cfg.RequestTimeout}}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("coordinator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError carries the coordinator's HTTP status code so callers can
// branch on spec §7's taxonomy (503 contention, 400 validation, ...).
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coordinator returned %d: %s", e.Code, e.Body)
}

func (c *Client) RegisterAgent(ctx context.Context, id, name string, caps store.AgentCapabilities) (store.Agent, error) {
	var agent store.Agent
	err := c.do(ctx, http.MethodPost, "/api/agents/register", map[string]any{
		"agent_id": id, "name": name, "capabilities": caps,
	}, &agent)
	return agent, err
}

func (c *Client) AgentHeartbeat(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/agents/"+id+"/heartbeat", nil, nil)
}

func (c *Client) AgentJobs(ctx context.Context, id string) ([]store.Job, error) {
	var resp struct {
		Jobs []store.Job `json:"jobs"`
	}
	err := c.do(ctx, http.MethodGet, "/api/agents/"+id+"/jobs", nil, &resp)
	return resp.Jobs, err
}

func (c *Client) RegisterWorker(ctx context.Context, w store.Worker) (store.Worker, error) {
	var worker store.Worker
	err := c.do(ctx, http.MethodPost, "/api/workers/register", map[string]any{
		"worker_id": w.ID, "type": w.Type, "hostname": w.Hostname, "agent_id": w.AgentID,
		"capabilities": w.Capabilities, "priority": w.Priority, "enabled": w.Enabled,
	}, &worker)
	return worker, err
}

func (c *Client) WorkerHeartbeat(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/workers/"+id+"/heartbeat", nil, nil)
}

// TitleInput is one ripped/probed title as reported by the disc detector.
type TitleInput struct {
	Index           int    `json:"index"`
	Name            string `json:"name"`
	DurationSeconds int    `json:"duration_seconds"`
	SizeBytes       int64  `json:"size_bytes"`
	Chapters        int    `json:"chapters"`
}

func (c *Client) DiscDetected(ctx context.Context, agentID, drive, discName string, discType store.DiscType, titles []TitleInput) (store.Disc, error) {
	var disc store.Disc
	err := c.do(ctx, http.MethodPost, "/api/discs/detected", map[string]any{
		"agent_id": agentID, "drive": drive, "disc_name": discName, "disc_type": discType, "titles": titles,
	}, &disc)
	return disc, err
}

func (c *Client) DiscEjected(ctx context.Context, agentID, drive string) error {
	return c.do(ctx, http.MethodPost, "/api/discs/ejected", map[string]any{"agent_id": agentID, "drive": drive}, nil)
}

func (c *Client) GetDisc(ctx context.Context, id string) (store.Disc, error) {
	var disc store.Disc
	err := c.do(ctx, http.MethodGet, "/api/discs/"+id, nil, &disc)
	return disc, err
}

type RipStatus struct {
	AllRipsComplete bool `json:"all_rips_complete"`
	Total           int  `json:"total"`
	Completed       int  `json:"completed"`
	Failed          int  `json:"failed"`
}

func (c *Client) RipStatus(ctx context.Context, discID string) (RipStatus, error) {
	var status RipStatus
	err := c.do(ctx, http.MethodGet, "/api/discs/"+discID+"/rip-status", nil, &status)
	return status, err
}

func (c *Client) RequestRip(ctx context.Context, discID string, titleIndices []int) ([]string, error) {
	var resp struct {
		JobIDs []string `json:"job_ids"`
	}
	err := c.do(ctx, http.MethodPost, "/api/discs/"+discID+"/rip", map[string]any{"title_indices": titleIndices}, &resp)
	return resp.JobIDs, err
}

func (c *Client) CreateTranscodeJob(ctx context.Context, inputFile, outputName, sourceDiscName string, inputFileSize int64, thumbnails []string, thumbnailTimestamps []int) (store.Job, error) {
	var job store.Job
	err := c.do(ctx, http.MethodPost, "/api/jobs", map[string]any{
		"input_file": inputFile, "output_name": outputName, "source_disc_name": sourceDiscName,
		"input_file_size": inputFileSize, "thumbnails": thumbnails, "thumbnail_timestamps": thumbnailTimestamps,
	}, &job)
	return job, err
}

// UpdateJob reports progress or a terminal outcome for a job (spec §4.1/
// §4.6). Any nil pointer field is simply omitted from the request.
func (c *Client) UpdateJob(ctx context.Context, id string, status store.JobStatus, progress *int, errMsg, outputFile, logTail *string) (store.Job, error) {
	var job store.Job
	body := map[string]any{"status": status}
	if progress != nil {
		body["progress"] = *progress
	}
	if errMsg != nil {
		body["error"] = *errMsg
	}
	if outputFile != nil {
		body["output_file"] = *outputFile
	}
	if logTail != nil {
		body["log_tail"] = *logTail
	}
	err := c.do(ctx, http.MethodPatch, "/api/jobs/"+id, body, &job)
	return job, err
}

func (c *Client) CancelJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+id+"/cancel", nil, nil)
}

func (c *Client) IsJobCancelled(ctx context.Context, id string) (bool, error) {
	var resp struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+id+"/is-cancelled", nil, &resp)
	return resp.Cancelled, err
}

// UploadFile streams localPath to the coordinator's upload endpoint,
// returning the decoded response body (path, final_path, organized,
// metadata) (spec §4.6 step 5 / §4.8).
func (c *Client) UploadFile(ctx context.Context, localPath, name, discID, jobID string) (map[string]any, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if err := w.WriteField("name", name); err != nil {
		return nil, err
	}
	if discID != "" {
		_ = w.WriteField("disc_id", discID)
	}
	if jobID != "" {
		_ = w.WriteField("job_id", jobID)
	}

	part, err := w.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return nil, err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if _, err := io.Copy(part, src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/files/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) VLCCommands(ctx context.Context, agentID string) ([]store.VLCCommand, error) {
	var resp struct {
		Commands []store.VLCCommand `json:"commands"`
	}
	err := c.do(ctx, http.MethodGet, "/api/vlc/commands/"+agentID, nil, &resp)
	return resp.Commands, err
}

func (c *Client) ReportVLCCommand(ctx context.Context, id string, status store.VLCCommandStatus, errMsg *string) error {
	return c.do(ctx, http.MethodPost, "/api/vlc/commands/"+id+"/report", map[string]any{"status": status, "error": errMsg}, nil)
}

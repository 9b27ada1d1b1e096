// Package store is the durable state layer: the single source of truth for
// agents, workers, discs, titles, jobs, TV seasons/episodes and VLC preview
// commands. It owns the database connection, embedded SQL migrations, and
// every atomic status transition described by the coordinator's invariants.
//
// Treat this package the way the teacher treats its queue store: the
// schema lives in migrations/, Go types here mirror it field-for-field, and
// every multi-row mutation goes through WrapTx so partial-write states are
// never observable to a concurrent reader.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentStatus enumerates the lifecycle of a registered agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentBusy    AgentStatus = "busy"
	AgentOffline AgentStatus = "offline"
)

// WorkerType distinguishes a transcode worker colocated with an agent from
// a standalone remote/server worker.
type WorkerType string

const (
	WorkerTypeAgent  WorkerType = "agent"
	WorkerTypeRemote WorkerType = "remote"
	WorkerTypeServer WorkerType = "server"
)

// WorkerStatus enumerates the lifecycle of a registered worker.
type WorkerStatus string

const (
	WorkerAvailable WorkerStatus = "available"
	WorkerBusy      WorkerStatus = "busy"
	WorkerOffline   WorkerStatus = "offline"
)

// DiscType is the physical medium kind reported by the agent's drive probe.
type DiscType string

const (
	DiscDVD     DiscType = "DVD"
	DiscBluRay  DiscType = "Blu-ray"
	DiscUnknown DiscType = "Unknown"
)

// DiscStatus tracks a disc through detection, ripping and ejection.
type DiscStatus string

const (
	DiscDetected  DiscStatus = "detected"
	DiscRipping   DiscStatus = "ripping"
	DiscCompleted DiscStatus = "completed"
	DiscEjected   DiscStatus = "ejected"
)

// MediaType is the preview pipeline's classification of a disc's content.
type MediaType string

const (
	MediaMovie   MediaType = "movie"
	MediaTVShow  MediaType = "tv_show"
	MediaUnknown MediaType = "unknown"
)

// PreviewStatus gates whether a disc may be ripped.
type PreviewStatus string

const (
	PreviewPending  PreviewStatus = "pending"
	PreviewApproved PreviewStatus = "approved"
	PreviewRejected PreviewStatus = "rejected"
)

// JobType distinguishes the three pipeline stages a Job can represent.
type JobType string

const (
	JobRip       JobType = "rip"
	JobTranscode JobType = "transcode"
	JobOrganize  JobType = "organize"
)

// JobStatus is the legal state-machine position of a Job (spec.md P2).
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobQueued    JobStatus = "queued"
	JobAssigned  JobStatus = "assigned"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition out of this status is
// legal (P2: "no completed -> *, no cancelled -> *").
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// AgentCapabilities declares what a registered agent can do.
type AgentCapabilities struct {
	CanRip       bool `json:"can_rip" db:"can_rip"`
	CanTranscode bool `json:"can_transcode" db:"can_transcode"`
}

// Agent is a per-host process owning one or more optical drives.
type Agent struct {
	ID              string            `db:"id" json:"id"`
	Name            string            `db:"name" json:"name"`
	Capabilities    AgentCapabilities `db:"capabilities" json:"capabilities"`
	Status          AgentStatus       `db:"status" json:"status"`
	CurrentJobID    *string           `db:"current_job_id" json:"current_job_id,omitempty"`
	LastHeartbeat   time.Time         `db:"last_heartbeat" json:"last_heartbeat"`
	RegisteredAt    time.Time         `db:"registered_at" json:"registered_at"`
}

// WorkerCapabilities declares hardware/codec support and concurrency budget.
type WorkerCapabilities struct {
	HWEncoders    []string `json:"hw_encoders"`
	MaxConcurrent int      `json:"max_concurrent"`
	CodecSupport  []string `json:"codec_support"`
}

// Scan/Value let WorkerCapabilities round-trip through a jsonb column.
func (c WorkerCapabilities) Value() (driver.Value, error) { return json.Marshal(c) }

func (c *WorkerCapabilities) Scan(src any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("WorkerCapabilities.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, c)
}

// WorkerStats is a rolling summary of a worker's completed transcode history,
// consulted by the fastest-first assignment strategy.
type WorkerStats struct {
	TotalCompleted int      `json:"total_completed"`
	AvgDurationS   *float64 `json:"avg_duration_s,omitempty"`
}

func (s WorkerStats) Value() (driver.Value, error) { return json.Marshal(s) }

func (s *WorkerStats) Scan(src any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("WorkerStats.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, s)
}

// Worker consumes transcode jobs; it may be colocated with an agent
// (Type=agent) or stand alone (Type=remote/server).
type Worker struct {
	ID            string             `db:"id" json:"id"`
	Type          WorkerType         `db:"type" json:"type"`
	Hostname      string             `db:"hostname" json:"hostname"`
	AgentID       *string            `db:"agent_id" json:"agent_id,omitempty"`
	Capabilities  WorkerCapabilities `db:"capabilities" json:"capabilities"`
	Priority      int                `db:"priority" json:"priority"`
	Enabled       bool               `db:"enabled" json:"enabled"`
	Status        WorkerStatus       `db:"status" json:"status"`
	CurrentJobs   StringSlice        `db:"current_jobs" json:"current_jobs"`
	Stats         WorkerStats        `db:"stats" json:"stats"`
	LastHeartbeat time.Time          `db:"last_heartbeat" json:"last_heartbeat"`
}

// StringSlice is a []string that round-trips through a jsonb column.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) { return json.Marshal([]string(s)) }

func (s *StringSlice) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("StringSlice.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, s)
}

// TVPreview carries the preview pipeline's TV-path classification for a Disc.
type TVPreview struct {
	ShowName               *string `json:"show_name,omitempty"`
	SeasonNumber           *int    `json:"season_number,omitempty"`
	SeasonID               *string `json:"season_id,omitempty"`
	SeriesExternalID       *string `json:"series_external_id,omitempty"`
	StartingEpisodeNumber  *int    `json:"starting_episode_number,omitempty"`
}

func (t TVPreview) Value() (driver.Value, error) { return json.Marshal(t) }

func (t *TVPreview) Scan(src any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("TVPreview.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, t)
}

// MoviePreview carries the preview pipeline's movie-path classification.
type MoviePreview struct {
	Title      *string `json:"title,omitempty"`
	Year       *int    `json:"year,omitempty"`
	IMDbID     *string `json:"imdb_id,omitempty"`
	Confidence float64 `json:"confidence"`
}

func (m MoviePreview) Value() (driver.Value, error) { return json.Marshal(m) }

func (m *MoviePreview) Scan(src any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("MoviePreview.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, m)
}

// Disc is a physical optical medium at a specific drive on a specific agent.
type Disc struct {
	ID            string        `db:"id" json:"id"`
	AgentID       string        `db:"agent_id" json:"agent_id"`
	Drive         string        `db:"drive" json:"drive"`
	Name          string        `db:"name" json:"name"`
	Type          DiscType      `db:"type" json:"type"`
	DetectedAt    time.Time     `db:"detected_at" json:"detected_at"`
	Status        DiscStatus    `db:"status" json:"status"`
	MediaType     MediaType     `db:"media_type" json:"media_type"`
	PreviewStatus PreviewStatus `db:"preview_status" json:"preview_status"`
	TV            TVPreview     `db:"tv" json:"tv"`
	Movie         MoviePreview  `db:"movie" json:"movie"`

	Titles []Title `db:"-" json:"titles"`
}

// Title is one selectable stream on a Disc (movie, episode, or extra).
type Title struct {
	ID                   string   `db:"id" json:"-"`
	DiscID               string   `db:"disc_id" json:"-"`
	Index                int      `db:"index" json:"index"`
	Name                 string   `db:"name" json:"name"`
	DurationSeconds      int      `db:"duration_seconds" json:"duration_seconds"`
	SizeBytes            int64    `db:"size_bytes" json:"size_bytes"`
	Chapters             int      `db:"chapters" json:"chapters"`
	Selected             bool     `db:"selected" json:"selected"`
	IsExtra              bool     `db:"is_extra" json:"is_extra"`
	ProposedFilename     *string  `db:"proposed_filename" json:"proposed_filename,omitempty"`
	ProposedPath         *string  `db:"proposed_path" json:"proposed_path,omitempty"`
	EpisodeNumber        *int     `db:"episode_number" json:"episode_number,omitempty"`
	EpisodeTitle         *string  `db:"episode_title" json:"episode_title,omitempty"`
	Confidence           float64  `db:"confidence" json:"confidence"`
	Thumbnails           StringSlice `db:"thumbnails" json:"thumbnails"`
	ThumbnailTimestamps  IntSlice    `db:"thumbnail_timestamps" json:"thumbnail_timestamps"`
}

// IntSlice is a []int that round-trips through a jsonb column.
type IntSlice []int

func (s IntSlice) Value() (driver.Value, error) { return json.Marshal([]int(s)) }

func (s *IntSlice) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("IntSlice.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, s)
}

// Job is a unit of work flowing through rip -> transcode -> organize.
type Job struct {
	ID                string     `db:"id" json:"id"`
	Type              JobType    `db:"type" json:"type"`
	Status            JobStatus  `db:"status" json:"status"`
	Priority          int        `db:"priority" json:"priority"`
	DiscID            *string    `db:"disc_id" json:"disc_id,omitempty"`
	TitleIndex        *int       `db:"title_index" json:"title_index,omitempty"`
	InputFile         *string    `db:"input_file" json:"input_file,omitempty"`
	OutputName        *string    `db:"output_name" json:"output_name,omitempty"`
	OutputFile        *string    `db:"output_file" json:"output_file,omitempty"`
	Preset            *string    `db:"preset" json:"preset,omitempty"`
	AssignedAgentID   *string    `db:"assigned_agent_id" json:"assigned_agent_id,omitempty"`
	AssignedAt        *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	RequiresApproval  bool       `db:"requires_approval" json:"requires_approval"`
	SourceDiscName    *string    `db:"source_disc_name" json:"source_disc_name,omitempty"`
	InputFileSize     *int64     `db:"input_file_size" json:"input_file_size,omitempty"`
	Progress          int        `db:"progress" json:"progress"`
	Error             *string    `db:"error" json:"error,omitempty"`
	LogTail           *string    `db:"log_tail" json:"log_tail,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	StartedAt         *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Thumbnails        StringSlice `db:"thumbnails" json:"thumbnails"`
	ThumbnailTimestamps IntSlice  `db:"thumbnail_timestamps" json:"thumbnail_timestamps"`
}

// TVEpisode is a single episode's metadata as resolved from the metadata
// provider, cached inside its parent TVSeason.
type TVEpisode struct {
	EpisodeNumber int     `json:"episode_number"`
	Name          string  `json:"name"`
	SeasonNumber  int     `json:"season_number"`
	RuntimeMin    *int    `json:"runtime_minutes,omitempty"`
	Overview      *string `json:"overview,omitempty"`
}

// TVSeason is the single source of truth for episode numbering across
// multiple discs of one season (spec.md §4.4).
type TVSeason struct {
	SeasonID             string      `db:"season_id" json:"season_id"`
	ShowName             string      `db:"show_name" json:"show_name"`
	SeasonNumber         int         `db:"season_number" json:"season_number"`
	SeriesExternalID     *string     `db:"series_external_id" json:"series_external_id,omitempty"`
	Episodes             []TVEpisode `db:"episodes" json:"episodes"`
	LastEpisodeAssigned  int         `db:"last_episode_assigned" json:"last_episode_assigned"`
	DiscIDs              StringSlice `db:"disc_ids" json:"disc_ids"`
	LastDiscName         *string     `db:"last_disc_name" json:"last_disc_name,omitempty"`
}

// TVEpisodeSlice lets []TVEpisode round-trip through a jsonb column.
type TVEpisodeSlice []TVEpisode

func (e TVEpisodeSlice) Value() (driver.Value, error) { return json.Marshal([]TVEpisode(e)) }

func (e *TVEpisodeSlice) Scan(src any) error {
	if src == nil {
		*e = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("TVEpisodeSlice.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, e)
}

// VLCCommandStatus tracks the single-poll-delivery lifecycle of a preview
// playback request.
type VLCCommandStatus string

const (
	VLCPending   VLCCommandStatus = "pending"
	VLCSent      VLCCommandStatus = "sent"
	VLCCompleted VLCCommandStatus = "completed"
	VLCFailed    VLCCommandStatus = "failed"
)

// VLCCommand requests that an agent preview-play a file over VLC.
type VLCCommand struct {
	ID         string           `db:"id" json:"id"`
	AgentID    string           `db:"agent_id" json:"agent_id"`
	FilePath   string           `db:"file_path" json:"file_path"`
	Fullscreen bool             `db:"fullscreen" json:"fullscreen"`
	Status     VLCCommandStatus `db:"status" json:"status"`
	Error      *string          `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	SentAt     *time.Time       `db:"sent_at" json:"sent_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// NewID mints a fresh random identifier, used for every entity except
// worker/agent ids (which may be hostname-derived per spec.md §6).
func NewID() string { return uuid.New().String() }

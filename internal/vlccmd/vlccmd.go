// Package vlccmd is the VLC preview-playback command channel (spec §4.7):
// a one-poll-delivery queue independent of the job queue, carrying no retry
// beyond an operator re-issuing the request.
package vlccmd

import "github.com/ripcoord/ripcoord/internal/store"

// Channel wraps store.VLCStore with the three operations the coordinator
// API and agent poll loop need.
type Channel struct {
	store *store.VLCStore
}

func New(s *store.VLCStore) *Channel {
	return &Channel{store: s}
}

// QueuePreview enqueues a playback request for an agent's next poll.
func (c *Channel) QueuePreview(agentID, filePath string, fullscreen bool) (store.VLCCommand, error) {
	return c.store.Queue(agentID, filePath, fullscreen)
}

// Poll atomically delivers and marks sent every pending command for an
// agent, satisfying the single-poll-delivery guarantee.
func (c *Channel) Poll(agentID string) ([]store.VLCCommand, error) {
	return c.store.FetchAndMarkSent(agentID)
}

// Report records the agent's playback outcome.
func (c *Channel) Report(id string, status store.VLCCommandStatus, errMsg *string) error {
	return c.store.Report(id, status, errMsg)
}

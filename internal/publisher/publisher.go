// Package publisher defines the event publishing interface used to announce
// finished crawl runs.
package publisher

import "context"

// Publisher pushes completion events to Pub/Sub (or an in-memory sink).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RunEvent is the payload published after every crawl run.
type RunEvent struct {
	Trigger     string `json:"trigger"`
	Outcome     string `json:"outcome"`
	StartedAt   string `json:"started_at"`
	DurationSec int64  `json:"duration_sec"`
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	Error       string `json:"error,omitempty"`
}

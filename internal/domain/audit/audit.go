// Package audit defines the validation rejection trail: every request a
// validator turns away can be recorded for operators to inspect.
package audit

import (
	"context"
	"time"
)

// Entry is one recorded validation rejection.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// Time is when the rejection happened.
	Time time.Time `json:"time"`

	// Action is the registered action name, when known.
	Action string `json:"action"`

	// Method and Path identify the rejected request.
	Method string `json:"method"`
	Path   string `json:"path"`

	// Status is the status code rendered to the client.
	Status int `json:"status"`

	// Errors is the changeset's field error map.
	Errors map[string][]string `json:"errors"`
}

// Store persists rejection entries.
// Interface owned by the domain; implementations handle batching.
type Store interface {
	// Append stores entries. Implementations must tolerate batches.
	Append(ctx context.Context, entries ...Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Close releases resources.
	Close() error
}

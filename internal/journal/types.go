package journal

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("journal disabled")

// Config configures the journal.
//
// If Driver is empty or "none", the journal is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeMissing Outcome = "missing"
)

// Entry is one dispatch attempt. Keep it compact and schema-stable.
type Entry struct {
	RunID    string    `json:"run_id"`
	At       time.Time `json:"at"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Schedule string    `json:"schedule"`
	Outcome  Outcome   `json:"outcome"`
	Error    string    `json:"error,omitempty"`
}

// Recorder is what the dispatcher needs.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store is a Recorder that owns resources.
type Store interface {
	Recorder
	Close() error
}

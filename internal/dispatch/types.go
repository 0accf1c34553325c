package dispatch

import (
	"context"
	"time"

	"zapsender/internal/journal"
	logx "zapsender/pkg/logx"
)

// Config is read once at startup and handed to the engine.
type Config struct {
	PacingDelay time.Duration
	SourcePath  string
	Headless    bool
	Template    string
}

type State int32

const (
	StateIdle State = iota
	StateLoading
	StateSending
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSending:
		return "sending"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Tally counts attempted sends. Missing (lookup-miss) contacts are reported
// separately and never count as sent or failed.
type Tally struct {
	Sent    int
	Failed  int
	Missing int
	// Total is the number of contacts the loop reached.
	Total int
	// Loaded is the size of the deduplicated contact set.
	Loaded             int
	RejectedNoPhone    int
	RejectedNoSchedule int
}

type Option func(*Engine)

func WithLogger(log logx.Logger) Option { return func(e *Engine) { e.log = log } }

// WithJournal records every per-contact outcome. Journal errors never affect the run.
func WithJournal(r journal.Recorder) Option { return func(e *Engine) { e.journal = r } }

func WithRunID(id string) Option { return func(e *Engine) { e.runID = id } }

// WithSleep replaces the pacing wait (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

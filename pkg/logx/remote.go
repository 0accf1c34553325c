package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	remoteQueueSize = 256
	remoteMaxRunes  = 3500
	remoteValueMax  = 600
	remoteTimeout   = 10 * time.Second
)

// remoteSink forwards records at or above min to a Sender from one background
// goroutine. Logging never blocks on it: over-rate and queue-full records are
// dropped.
type remoteSink struct {
	sender  Sender
	min     Level
	limiter *rate.Limiter
	queue   chan string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newRemoteSink(sender Sender, floor Level, perSec int) *remoteSink {
	perSec = max(1, perSec)
	r := &remoteSink{
		sender:  sender,
		min:     floor,
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		queue:   make(chan string, remoteQueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *remoteSink) Write(p []byte) (int, error) { return r.WriteLevel(zerolog.NoLevel, p) }

func (r *remoteSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < r.min || !r.limiter.Allow() {
		return len(p), nil
	}
	if msg := renderRemote(p); msg != "" {
		select {
		case r.queue <- msg:
		default:
		}
	}
	return len(p), nil
}

func (r *remoteSink) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case msg := <-r.queue:
			r.deliver(context.Background(), msg)
		}
	}
}

func (r *remoteSink) deliver(ctx context.Context, msg string) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()
	_ = r.sender.SendText(ctx, msg)
}

// close stops the worker, then sends what is still queued until ctx ends.
func (r *remoteSink) close(ctx context.Context) {
	r.stopOnce.Do(func() { close(r.stop) })
	select {
	case <-r.done:
	case <-ctx.Done():
		return
	}
	for ctx.Err() == nil {
		select {
		case msg := <-r.queue:
			r.deliver(ctx, msg)
		default:
			return
		}
	}
}

// renderRemote turns a zerolog JSON line into a chat message:
//
//	[WARN] message
//	- key=value
//
// Keys are sorted. Non-JSON input is passed through clipped.
func renderRemote(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var rec map[string]any
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return clip(raw, remoteMaxRunes)
	}

	var b strings.Builder
	if lvl, _ := rec[zerolog.LevelFieldName].(string); lvl != "" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(lvl))
	}
	msg, _ := rec[zerolog.MessageFieldName].(string)
	b.WriteString(msg)
	for _, k := range slices.Sorted(maps.Keys(rec)) {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName:
			continue
		}
		fmt.Fprintf(&b, "\n- %s=%s", k, clip(fmt.Sprint(rec[k]), remoteValueMax))
	}
	return clip(b.String(), remoteMaxRunes)
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n < 4 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

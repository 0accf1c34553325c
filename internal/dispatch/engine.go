// Package dispatch drives one paced, strictly sequential send run.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"zapsender/internal/contacts"
	"zapsender/internal/journal"
	"zapsender/internal/message"
	"zapsender/internal/phone"
	"zapsender/internal/transport"
	logx "zapsender/pkg/logx"
)

var ErrAlreadyRun = errors.New("dispatch: engine already ran")

// Engine runs Idle -> Loading -> Sending -> Done exactly once.
type Engine struct {
	cfg     Config
	tr      transport.Transport
	src     contacts.Source
	loader  *contacts.Loader
	log     logx.Logger
	journal journal.Recorder
	runID   string
	sleep   func(ctx context.Context, d time.Duration) error

	started atomic.Bool
	state   atomic.Int32
}

func New(cfg Config, tr transport.Transport, src contacts.Source, loader *contacts.Loader, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, tr: tr, src: src, loader: loader, sleep: sleepCtx}
	for _, o := range opts {
		o(e)
	}
	if e.log.IsZero() {
		e.log = logx.Nop()
	}
	if e.loader == nil {
		e.loader = contacts.NewLoader(contacts.DefaultSchema(), e.log)
	}
	if e.cfg.Template == "" {
		e.cfg.Template = message.DefaultTemplate
	}
	return e
}

func (e *Engine) State() State { return State(e.state.Load()) }

// Run waits for the transport, loads contacts and sends to each one in order.
// Per-contact failures are counted; only readiness and loading errors (or ctx
// cancellation) end the run early.
func (e *Engine) Run(ctx context.Context) (Tally, error) {
	var tally Tally
	if !e.started.CompareAndSwap(false, true) {
		return tally, ErrAlreadyRun
	}

	if err := e.tr.AwaitReady(ctx); err != nil {
		e.state.Store(int32(StateDone))
		return tally, fmt.Errorf("await transport: %w", err)
	}
	e.state.Store(int32(StateLoading))
	e.log.Info("transport ready; loading contacts", logx.String("source", e.cfg.SourcePath))

	rows, err := e.src.Rows(ctx)
	if err != nil {
		e.state.Store(int32(StateDone))
		return tally, fmt.Errorf("load contacts: %w", err)
	}
	res := e.loader.Load(rows)
	tally.Loaded = len(res.Contacts)
	tally.RejectedNoPhone = res.RejectedNoPhone
	tally.RejectedNoSchedule = res.RejectedNoSchedule

	e.state.Store(int32(StateSending))
	e.log.Info("starting dispatch", logx.Int("contacts", len(res.Contacts)), logx.Duration("pacing", e.cfg.PacingDelay))

	for i, c := range res.Contacts {
		if err := ctx.Err(); err != nil {
			e.state.Store(int32(StateDone))
			return tally, err
		}
		e.dispatchOne(ctx, c, &tally)
		tally.Total++

		if i == len(res.Contacts)-1 {
			break
		}
		if err := e.sleep(ctx, e.cfg.PacingDelay); err != nil {
			e.state.Store(int32(StateDone))
			return tally, err
		}
	}

	e.state.Store(int32(StateDone))
	e.log.Info("dispatch finished",
		logx.Int("sent", tally.Sent),
		logx.Int("failed", tally.Failed),
		logx.Int("missing", tally.Missing),
	)
	return tally, nil
}

func (e *Engine) dispatchOne(ctx context.Context, c contacts.Contact, tally *Tally) {
	text := message.Render(e.cfg.Template, c.Name, c.Schedule)
	log := e.log.With(logx.String("name", c.Name), logx.String("phone", c.Phone))

	to, ok, err := e.tr.Lookup(ctx, phone.Digits(c.Phone))
	switch {
	case err != nil:
		tally.Failed++
		log.Warn("lookup failed", logx.Err(err))
		e.record(ctx, c, journal.OutcomeFailed, err)
		return
	case !ok:
		tally.Missing++
		log.Warn("number is not on WhatsApp")
		e.record(ctx, c, journal.OutcomeMissing, nil)
		return
	}

	if err := e.tr.Send(ctx, to, text); err != nil {
		tally.Failed++
		log.Warn("send failed", logx.Err(err))
		e.record(ctx, c, journal.OutcomeFailed, err)
		return
	}
	tally.Sent++
	log.Info("message sent", logx.String("schedule", c.Schedule))
	e.record(ctx, c, journal.OutcomeSent, nil)
}

func (e *Engine) record(ctx context.Context, c contacts.Contact, outcome journal.Outcome, cause error) {
	if e.journal == nil {
		return
	}
	entry := journal.Entry{
		RunID:    e.runID,
		At:       time.Now(),
		Name:     c.Name,
		Phone:    c.Phone,
		Schedule: c.Schedule,
		Outcome:  outcome,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := e.journal.Record(ctx, entry); err != nil {
		e.log.Warn("journal write failed", logx.String("phone", c.Phone), logx.Err(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

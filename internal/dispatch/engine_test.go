package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"zapsender/internal/contacts"
	"zapsender/internal/journal"
	"zapsender/internal/transport"
	logx "zapsender/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	op     string
	number string
	text   string
	at     time.Time
}

type fakeTransport struct {
	readyErr error
	missing  map[string]bool
	lookErr  map[string]error
	sendErr  map[string]error

	inflight atomic.Int32
	overlap  atomic.Bool

	mu    sync.Mutex
	calls []call
}

func (f *fakeTransport) enter() func() {
	if f.inflight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	return func() { f.inflight.Add(-1) }
}

func (f *fakeTransport) log(c call) {
	c.at = time.Now()
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeTransport) AwaitReady(ctx context.Context) error { return f.readyErr }

func (f *fakeTransport) Lookup(ctx context.Context, number string) (transport.Recipient, bool, error) {
	defer f.enter()()
	f.log(call{op: "lookup", number: number})
	if err := f.lookErr[number]; err != nil {
		return transport.Recipient{}, false, err
	}
	if f.missing[number] {
		return transport.Recipient{}, false, nil
	}
	return transport.Recipient{ID: number + "@c.us"}, true, nil
}

func (f *fakeTransport) Send(ctx context.Context, to transport.Recipient, text string) error {
	defer f.enter()()
	f.log(call{op: "send", number: to.ID, text: text})
	return f.sendErr[to.ID]
}

func (f *fakeTransport) Events() <-chan transport.Event   { return nil }
func (f *fakeTransport) Close(ctx context.Context) error { return nil }

func (f *fakeTransport) lookups() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == "lookup" {
			out = append(out, c)
		}
	}
	return out
}

type staticSource struct {
	rows []contacts.Row
	err  error
}

func (s staticSource) Rows(ctx context.Context) ([]contacts.Row, error) { return s.rows, s.err }

func threeRows() []contacts.Row {
	return []contacts.Row{
		{"name": "Ana", "Whatsapp": "54999990001", "horario": "9h"},
		{"name": "Bia", "Whatsapp": "54999990002", "horario": "10h"},
		{"name": "Caio", "Whatsapp": "54999990003", "horario": "11h"},
	}
}

type recorder struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (r *recorder) Record(ctx context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestRunIsolatesSendFailure(t *testing.T) {
	tr := &fakeTransport{sendErr: map[string]error{"5554999990002@c.us": errors.New("boom")}}
	e := New(Config{Template: "Oi {name}, {horario}"}, tr, staticSource{rows: threeRows()}, nil, WithSleep(noSleep))

	tally, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if tally.Sent != 2 || tally.Failed != 1 || tally.Missing != 0 || tally.Total != 3 {
		t.Fatalf("tally = %+v, want sent=2 failed=1", tally)
	}

	var sends []string
	for _, c := range tr.calls {
		if c.op == "send" {
			sends = append(sends, c.number+"|"+c.text)
		}
	}
	want := []string{
		"5554999990001@c.us|Oi Ana, 9h",
		"5554999990002@c.us|Oi Bia, 10h",
		"5554999990003@c.us|Oi Caio, 11h",
	}
	if diff := cmp.Diff(want, sends); diff != "" {
		t.Fatalf("sends mismatch (-want +got):\n%s", diff)
	}
	if e.State() != StateDone {
		t.Fatalf("State = %v, want done", e.State())
	}
	if tr.overlap.Load() {
		t.Fatal("transport calls overlapped")
	}
}

func TestRunLookupMissAndLookupError(t *testing.T) {
	tr := &fakeTransport{
		missing: map[string]bool{"5554999990001": true},
		lookErr: map[string]error{"5554999990003": errors.New("gateway down")},
	}
	var sleeps atomic.Int32
	rec := &recorder{err: errors.New("disk full")}
	e := New(Config{}, tr, staticSource{rows: threeRows()}, nil,
		WithRunID("run-x"),
		WithJournal(rec),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps.Add(1)
			return nil
		}),
	)

	tally, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if tally.Sent != 1 || tally.Failed != 1 || tally.Missing != 1 {
		t.Fatalf("tally = %+v", tally)
	}
	if got := sleeps.Load(); got != 2 {
		t.Fatalf("pacing waits = %d, want 2 (between every adjacent pair)", got)
	}

	var outcomes []journal.Outcome
	for _, en := range rec.entries {
		if en.RunID != "run-x" {
			t.Fatalf("entry run id = %q", en.RunID)
		}
		outcomes = append(outcomes, en.Outcome)
	}
	want := []journal.Outcome{journal.OutcomeMissing, journal.OutcomeSent, journal.OutcomeFailed}
	if diff := cmp.Diff(want, outcomes); diff != "" {
		t.Fatalf("journal outcomes mismatch (-want +got):\n%s", diff)
	}
	if rec.entries[2].Error != "gateway down" {
		t.Fatalf("journal error = %q", rec.entries[2].Error)
	}
}

func TestRunPacingIncludesLookupMiss(t *testing.T) {
	const delay = 40 * time.Millisecond
	tr := &fakeTransport{missing: map[string]bool{"5554999990001": true}}
	e := New(Config{PacingDelay: delay}, tr, staticSource{rows: threeRows()}, nil)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	lk := tr.lookups()
	if len(lk) != 3 {
		t.Fatalf("lookups = %d, want 3", len(lk))
	}
	for i := 1; i < len(lk); i++ {
		if gap := lk[i].at.Sub(lk[i-1].at); gap < delay {
			t.Fatalf("gap between contact %d and %d = %v, want >= %v", i-1, i, gap, delay)
		}
	}
}

func TestRunLoadFailureIsFatal(t *testing.T) {
	tr := &fakeTransport{}
	e := New(Config{}, tr, contacts.CSVFile{Path: t.TempDir() + "/missing.csv"}, nil, WithSleep(noSleep))
	_, err := e.Run(context.Background())
	if !errors.Is(err, contacts.ErrSourceNotFound) {
		t.Fatalf("Run error = %v, want ErrSourceNotFound", err)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("no transport calls expected, got %d", len(tr.calls))
	}
}

func TestRunReadyFailure(t *testing.T) {
	tr := &fakeTransport{readyErr: transport.ErrAuthFailure}
	e := New(Config{}, tr, staticSource{rows: threeRows()}, nil)
	if _, err := e.Run(context.Background()); !errors.Is(err, transport.ErrAuthFailure) {
		t.Fatalf("Run error = %v, want ErrAuthFailure", err)
	}
}

func TestRunOnce(t *testing.T) {
	e := New(Config{}, &fakeTransport{}, staticSource{}, nil)
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	if _, err := e.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Fatalf("second Run error = %v, want ErrAlreadyRun", err)
	}
}

func TestRunReportsLoaderCounters(t *testing.T) {
	rows := append(threeRows(),
		contacts.Row{"name": "no phone", "horario": "9h"},
		contacts.Row{"name": "no schedule", "phone": "54999990009"},
		contacts.Row{"name": "dup", "phone": "+5554999990001", "horario": "9h"},
	)
	e := New(Config{}, &fakeTransport{}, staticSource{rows: rows}, contacts.NewLoader(contacts.DefaultSchema(), logx.Nop()), WithSleep(noSleep))
	tally, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	want := Tally{Sent: 3, Total: 3, Loaded: 3, RejectedNoPhone: 1, RejectedNoSchedule: 1}
	if diff := cmp.Diff(want, tally); diff != "" {
		t.Fatalf("tally mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTransport{}
	e := New(Config{PacingDelay: time.Hour}, tr, staticSource{rows: threeRows()}, nil,
		WithSleep(func(c context.Context, d time.Duration) error {
			cancel()
			return sleepCtx(c, d)
		}),
	)
	tally, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want canceled", err)
	}
	if tally.Sent != 1 {
		t.Fatalf("tally = %+v, want one send before cancel", tally)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateIdle: "idle", StateLoading: "loading", StateSending: "sending", StateDone: "done", State(9): "unknown"} {
		if s.String() != want {
			t.Fatalf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"zapsender/internal/transport"
	logx "zapsender/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"), goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"))
}

type fakeGateway struct {
	mu       sync.Mutex
	states   []statusReply
	polls    int
	headless *bool
	auth     string
	sent     []map[string]string
}

func (g *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions/s1/start", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Headless bool `json:"headless"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		g.mu.Lock()
		g.headless = &in.Headless
		g.auth = r.Header.Get("Authorization")
		g.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /sessions/s1/status", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		i := g.polls
		if i >= len(g.states) {
			i = len(g.states) - 1
		}
		g.polls++
		st := g.states[i]
		g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("POST /sessions/s1/lookup", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Number string `json:"number"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Number == "5554000000000" {
			_, _ = w.Write([]byte(`{"exists":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"exists":true,"id":"` + in.Number + `@c.us"}`))
	})
	mux.HandleFunc("POST /sessions/s1/messages", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["to"] == "fail@c.us" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"session closed"}`))
			return
		}
		g.mu.Lock()
		g.sent = append(g.sent, in)
		g.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func newTestTransport(t *testing.T, g *fakeGateway) *Transport {
	t.Helper()
	srv := httptest.NewServer(g.handler())
	t.Cleanup(srv.Close)
	tr, err := New(Config{
		BaseURL:      srv.URL + "/",
		Token:        "secret",
		Session:      "s1",
		Headless:     true,
		PollInterval: 5 * time.Millisecond,
		RatePerSec:   1000,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close(context.Background()) })
	return tr
}

func TestAwaitReadyEmitsQROnce(t *testing.T) {
	g := &fakeGateway{states: []statusReply{
		{State: "starting"},
		{State: "qr", QR: "code-1"},
		{State: "qr", QR: "code-1"},
		{State: "qr", QR: "code-2"},
		{State: "ready"},
	}}
	tr := newTestTransport(t, g)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.AwaitReady(ctx); err != nil {
		t.Fatalf("AwaitReady error: %v", err)
	}

	var qrs []string
	for len(tr.Events()) > 0 {
		ev := <-tr.Events()
		if ev.Kind == transport.EventQR {
			qrs = append(qrs, ev.Detail)
		}
	}
	if len(qrs) != 2 || qrs[0] != "code-1" || qrs[1] != "code-2" {
		t.Fatalf("qr events = %v", qrs)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.headless == nil || !*g.headless {
		t.Fatal("expected headless=true in start request")
	}
	if g.auth != "Bearer secret" {
		t.Fatalf("Authorization = %q", g.auth)
	}
}

func TestAwaitReadyAuthFailure(t *testing.T) {
	g := &fakeGateway{states: []statusReply{{State: "auth_failure"}}}
	tr := newTestTransport(t, g)
	err := tr.AwaitReady(context.Background())
	if !errors.Is(err, transport.ErrAuthFailure) {
		t.Fatalf("AwaitReady error = %v, want ErrAuthFailure", err)
	}
	ev := <-tr.Events()
	if ev.Kind != transport.EventAuthFailure {
		t.Fatalf("event = %+v", ev)
	}
}

func TestAwaitReadyHonorsContext(t *testing.T) {
	g := &fakeGateway{states: []statusReply{{State: "starting"}}}
	tr := newTestTransport(t, g)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := tr.AwaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("AwaitReady error = %v, want deadline exceeded", err)
	}
}

func TestLookupAndSend(t *testing.T) {
	g := &fakeGateway{states: []statusReply{{State: "ready"}}}
	tr := newTestTransport(t, g)
	ctx := context.Background()

	if _, ok, err := tr.Lookup(ctx, "5554000000000"); err != nil || ok {
		t.Fatalf("Lookup(miss) = %v, %v", ok, err)
	}
	to, ok, err := tr.Lookup(ctx, "5554999999999")
	if err != nil || !ok || to.ID != "5554999999999@c.us" {
		t.Fatalf("Lookup = %+v, %v, %v", to, ok, err)
	}
	if err := tr.Send(ctx, to, "oi"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	err = tr.Send(ctx, transport.Recipient{ID: "fail@c.us"}, "oi")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway || se.Message != "session closed" {
		t.Fatalf("Send error = %v, want StatusError 502", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) != 1 || g.sent[0]["text"] != "oi" {
		t.Fatalf("sent = %v", g.sent)
	}
}

func TestWatchReportsDisconnect(t *testing.T) {
	g := &fakeGateway{states: []statusReply{{State: "ready"}, {State: "disconnected"}}}
	srv := httptest.NewServer(g.handler())
	defer srv.Close()
	tr, err := New(Config{BaseURL: srv.URL, Session: "s1", PollInterval: time.Millisecond, WatchInterval: 5 * time.Millisecond, RatePerSec: 1000}, logx.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer func() { _ = tr.Close(context.Background()) }()

	if err := tr.AwaitReady(context.Background()); err != nil {
		t.Fatalf("AwaitReady error: %v", err)
	}
	select {
	case ev := <-tr.Events():
		if ev.Kind != transport.EventDisconnected || ev.Detail != "disconnected" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect event")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "not a url"}, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}

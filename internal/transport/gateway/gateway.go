// Package gateway drives a WhatsApp session gateway over HTTP+JSON.
//
// The gateway owns the browser session (QR login, persistence, delivery).
// This package only starts the session, waits for it to become ready, resolves
// numbers and posts messages.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"zapsender/internal/runtime/supervisor"
	"zapsender/internal/transport"
	logx "zapsender/pkg/logx"
)

const (
	stateReady       = "ready"
	stateAuthFailure = "auth_failure"
)

type Config struct {
	BaseURL  string
	Token    string
	Session  string
	Headless bool

	PollInterval   time.Duration // readiness polling; default 2s
	WatchInterval  time.Duration // post-ready status checks; 0 disables
	RequestTimeout time.Duration // per request; default 15s
	RatePerSec     int           // request burst guard; default 5
}

// StatusError is a non-2xx reply from the gateway.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: http %d", e.Code)
	}
	return fmt.Sprintf("gateway: http %d: %s", e.Code, e.Message)
}

type Transport struct {
	cfg     Config
	log     logx.Logger
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	events  chan transport.Event

	mu     sync.Mutex
	sup    *supervisor.Supervisor
	lastQR string
}

var _ transport.Transport = (*Transport)(nil)

func New(cfg Config, log logx.Logger) (*Transport, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base url %q", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.Session) == "" {
		cfg.Session = "zap-sender"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Transport{
		cfg:     cfg,
		log:     log,
		base:    base,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		events:  make(chan transport.Event, 16),
	}, nil
}

type statusReply struct {
	State string `json:"state"`
	QR    string `json:"qr,omitempty"`
}

func (t *Transport) AwaitReady(ctx context.Context) error {
	start := struct {
		Headless bool `json:"headless"`
	}{Headless: t.cfg.Headless}
	if err := t.do(ctx, http.MethodPost, "start", start, nil); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	for {
		st, err := t.status(ctx)
		if err != nil {
			return fmt.Errorf("session status: %w", err)
		}
		switch st.State {
		case stateReady:
			t.log.Info("session ready", logx.String("session", t.cfg.Session))
			t.startWatch()
			return nil
		case stateAuthFailure:
			t.emit(transport.Event{Kind: transport.EventAuthFailure, Detail: st.QR})
			return transport.ErrAuthFailure
		}
		if st.QR != "" && t.swapQR(st.QR) {
			t.emit(transport.Event{Kind: transport.EventQR, Detail: st.QR})
		}

		tmr := time.NewTimer(t.cfg.PollInterval)
		select {
		case <-ctx.Done():
			tmr.Stop()
			return ctx.Err()
		case <-tmr.C:
		}
	}
}

func (t *Transport) Lookup(ctx context.Context, number string) (transport.Recipient, bool, error) {
	var out struct {
		Exists bool   `json:"exists"`
		ID     string `json:"id"`
	}
	in := struct {
		Number string `json:"number"`
	}{Number: number}
	if err := t.do(ctx, http.MethodPost, "lookup", in, &out); err != nil {
		return transport.Recipient{}, false, err
	}
	if !out.Exists || out.ID == "" {
		return transport.Recipient{}, false, nil
	}
	return transport.Recipient{ID: out.ID}, true, nil
}

func (t *Transport) Send(ctx context.Context, to transport.Recipient, text string) error {
	in := struct {
		To   string `json:"to"`
		Text string `json:"text"`
	}{To: to.ID, Text: text}
	return t.do(ctx, http.MethodPost, "messages", in, nil)
}

func (t *Transport) Events() <-chan transport.Event { return t.events }

func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	sup := t.sup
	t.sup = nil
	t.mu.Unlock()
	defer t.http.CloseIdleConnections()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.log.Warn("gateway watcher stop timed out", logx.Err(err))
		return nil
	}
	return err
}

func (t *Transport) status(ctx context.Context) (statusReply, error) {
	var st statusReply
	err := t.do(ctx, http.MethodGet, "status", nil, &st)
	return st, err
}

func (t *Transport) swapQR(qr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if qr == t.lastQR {
		return false
	}
	t.lastQR = qr
	return true
}

// startWatch polls the session after readiness and reports drops as events.
func (t *Transport) startWatch() {
	if t.cfg.WatchInterval <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sup != nil {
		return
	}
	t.sup = supervisor.New(context.Background(), supervisor.WithLogger(t.log.With(logx.String("comp", "gateway.watch"))))
	t.sup.Go0("gateway.watch", func(ctx context.Context) {
		ticker := time.NewTicker(t.cfg.WatchInterval)
		defer ticker.Stop()
		down := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			st, err := t.status(ctx)
			if ctx.Err() != nil {
				return
			}
			ok := err == nil && st.State == stateReady
			if !ok && !down {
				detail := st.State
				if err != nil {
					detail = err.Error()
				}
				t.emit(transport.Event{Kind: transport.EventDisconnected, Detail: detail})
			}
			down = !ok
		}
	})
}

func (t *Transport) emit(ev transport.Event) {
	select {
	case t.events <- ev:
	default:
		t.log.Debug("gateway event dropped (channel full)", logx.String("kind", string(ev.Kind)))
	}
}

func (t *Transport) do(ctx context.Context, method, action string, in, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	u := t.base.JoinPath("sessions", t.cfg.Session, action)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway: decode %s reply: %w", action, err)
	}
	return nil
}

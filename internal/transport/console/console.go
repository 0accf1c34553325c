// Package console is a dry-run transport: every number resolves and every
// message is logged instead of sent.
package console

import (
	"context"
	"strings"

	"zapsender/internal/transport"
	logx "zapsender/pkg/logx"
)

type Transport struct {
	log    logx.Logger
	events chan transport.Event
}

func New(log logx.Logger) *Transport {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Transport{log: log, events: make(chan transport.Event)}
}

func (t *Transport) AwaitReady(ctx context.Context) error { return ctx.Err() }

func (t *Transport) Lookup(ctx context.Context, number string) (transport.Recipient, bool, error) {
	if err := ctx.Err(); err != nil {
		return transport.Recipient{}, false, err
	}
	if strings.TrimSpace(number) == "" {
		return transport.Recipient{}, false, nil
	}
	return transport.Recipient{ID: number + "@c.us"}, true, nil
}

func (t *Transport) Send(ctx context.Context, to transport.Recipient, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.log.Info("dry-run message", logx.String("to", to.ID), logx.String("text", text))
	return nil
}

func (t *Transport) Events() <-chan transport.Event { return t.events }

func (t *Transport) Close(ctx context.Context) error { return nil }

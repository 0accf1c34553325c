package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"zapsender/internal/config"
	"zapsender/internal/contacts"
	"zapsender/internal/dispatch"
	"zapsender/internal/journal"
	"zapsender/internal/notify/telegram"
	"zapsender/internal/runtime/supervisor"
	"zapsender/internal/transport"
	"zapsender/internal/transport/console"
	"zapsender/internal/transport/gateway"
	logx "zapsender/pkg/logx"
)

// Options adjust how New wires components.
type Options struct {
	// DryRun forces the console transport regardless of config.
	DryRun bool
	// Transport and Notifier replace the configured ones when set.
	Transport transport.Transport
	Notifier  logx.Sender
}

type App struct {
	cfg   *config.Config
	runID string

	log  logx.Logger
	logs *logx.Service

	notifier logx.Sender
	tr       transport.Transport
	store    journal.Store
	engine   *dispatch.Engine

	sup *supervisor.Supervisor
}

func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	dcfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}

	notifier := opts.Notifier
	if notifier == nil && cfg.Telegram.Token != "" {
		n, err := telegram.New(telegram.Config{
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			ThreadID: cfg.Telegram.ThreadID,
		})
		if err != nil {
			return nil, err
		}
		notifier = n
	}

	logSvc, log := logx.New(mapLogConfig(cfg), notifier)
	runID := uuid.NewString()
	log = log.With(logx.String("run", runID))

	a := &App{cfg: cfg, runID: runID, log: log.With(logx.String("comp", "app")), logs: logSvc, notifier: notifier}

	if jc, enabled, err := mapJournalConfig(cfg); err != nil {
		a.closeQuiet()
		return nil, err
	} else if enabled {
		st, err := journal.Open(jc, log.With(logx.String("comp", "journal")))
		if err != nil {
			a.closeQuiet()
			return nil, err
		}
		a.store = st
		a.log.Info("journal enabled", logx.String("driver", jc.Driver), logx.String("path", jc.Path))
	}

	tr, err := a.buildTransport(opts)
	if err != nil {
		a.closeQuiet()
		return nil, err
	}
	a.tr = tr

	engineOpts := []dispatch.Option{
		dispatch.WithLogger(log.With(logx.String("comp", "dispatch"))),
		dispatch.WithRunID(runID),
	}
	if a.store != nil {
		engineOpts = append(engineOpts, dispatch.WithJournal(a.store))
	}
	loader := contacts.NewLoader(mapSchema(cfg), log.With(logx.String("comp", "contacts")))
	a.engine = dispatch.New(dcfg, tr, contacts.CSVFile{Path: dcfg.SourcePath}, loader, engineOpts...)
	return a, nil
}

func (a *App) buildTransport(opts Options) (transport.Transport, error) {
	if opts.Transport != nil {
		return opts.Transport, nil
	}
	tlog := a.log.With(logx.String("comp", "transport"))
	if opts.DryRun || a.cfg.Transport.Driver == "console" {
		a.log.Info("dry run: messages will be logged, not sent")
		return console.New(tlog), nil
	}
	gc, err := mapGatewayConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	return gateway.New(gc, tlog)
}

func (a *App) RunID() string { return a.runID }

// Logger returns the app's root logger (for main's final messages).
func (a *App) Logger() logx.Logger { return a.log }

// Run performs one dispatch and sends the run report.
func (a *App) Run(ctx context.Context) (dispatch.Tally, error) {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.sup.Go0("transport.events", a.watchEvents)

	start := time.Now()
	tally, err := a.engine.Run(ctx)
	a.report(tally, err, time.Since(start))
	return tally, err
}

func (a *App) watchEvents(ctx context.Context) {
	events := a.tr.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case transport.EventQR:
				a.log.Info("scan the QR code shown by the gateway with WhatsApp", logx.String("qr", ev.Detail))
			case transport.EventAuthFailure:
				a.log.Error("authentication failed", logx.String("detail", ev.Detail))
			case transport.EventDisconnected:
				a.log.Warn("transport disconnected", logx.String("detail", ev.Detail))
			default:
				a.log.Debug("transport event", logx.String("kind", string(ev.Kind)), logx.String("detail", ev.Detail))
			}
		}
	}
}

func (a *App) report(tally dispatch.Tally, runErr error, took time.Duration) {
	if a.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.notifier.SendText(ctx, FormatReport(a.runID, tally, runErr, took)); err != nil {
		a.log.Warn("run report not delivered", logx.Err(err))
	}
}

// Close releases everything New and Run acquired. Safe to call once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if a.tr != nil {
		if err := a.tr.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logs != nil {
		if err := a.logs.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) closeQuiet() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close(context.Background())
	}
}

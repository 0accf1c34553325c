package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zapsender/internal/app"
	"zapsender/internal/config"
	logx "zapsender/pkg/logx"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath string
		envPath string
		dryRun  bool
	)
	flag.StringVar(&cfgPath, "config", "", "optional path to config json/yaml")
	flag.StringVar(&envPath, "env", ".env", "path to .env file (ignored if missing)")
	flag.BoolVar(&dryRun, "dry-run", false, "log messages instead of sending them")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boot := logx.NewConsole("info")
	cfg, err := config.Load(cfgPath, envPath, os.LookupEnv)
	if err != nil {
		boot.Error("load config", logx.Err(err))
		return 1
	}

	a, err := app.New(cfg, app.Options{DryRun: dryRun})
	if err != nil {
		boot.Error("init", logx.Err(err))
		return 1
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = a.Close(sctx)
	}()

	tally, err := a.Run(ctx)
	if err != nil {
		a.Logger().Error("run failed", logx.Err(err))
		return 1
	}
	fmt.Printf("Done. Sent: %d | Failed: %d\n", tally.Sent, tally.Failed)
	return 0
}

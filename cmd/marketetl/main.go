package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"MarketETL/internal/config"
	"MarketETL/internal/events"
	"MarketETL/internal/logging"
	"MarketETL/internal/notifier"
	"MarketETL/internal/pipeline"
	"MarketETL/internal/scheduler"
	"MarketETL/internal/store"
)

const usage = `usage: marketetl [-config path] <command> [flags]

commands:
  fetch      download daily prices into the staging CSV
  load       upsert the staging CSV into the price store (-dry-run to skip writes)
  analyze    compute returns, volatility and reports from the store
  run        run fetch, load and analyze as separate processes
  schedule   run the pipeline on the configured cron schedule
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("marketetl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	cfgPath := fs.String("config", defaultCfg, "path to YAML config")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	command, cmdArgs := fs.Arg(0), fs.Args()[1:]

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config validation: %v\n", err)
		return 1
	}

	runID := logging.RunID()
	log, err := logging.New(cfg.Logging, runID)
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &app{cfg: cfg, cfgPath: *cfgPath, runID: runID, log: log, sink: events.NewZapSink(log), stdout: stdout}
	switch command {
	case pipeline.StageFetch:
		err = app.fetch(ctx)
	case pipeline.StageLoad:
		err = app.load(ctx, cmdArgs)
	case pipeline.StageAnalyze:
		err = app.analyze(ctx)
	case "run":
		err = app.runAll(ctx)
	case "schedule":
		err = app.schedule(ctx)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		fs.Usage()
		return 2
	}
	if err != nil {
		log.Error("command failed", zap.String("command", command), zap.Error(err))
		return 1
	}
	return 0
}

type app struct {
	cfg     *config.Config
	cfgPath string
	runID   string
	log     *zap.Logger
	sink    events.Sink
	stdout  io.Writer
}

func (a *app) fetch(ctx context.Context) error {
	fetcher, err := pipeline.NewFetcher(a.cfg)
	if err != nil {
		return err
	}
	a.log.Info("data source", zap.String("provider", fetcher.Name()), zap.Strings("tickers", a.cfg.Fetch.Tickers))
	res, err := pipeline.Fetch(ctx, a.cfg, fetcher, a.sink)
	pipeline.PrintFetchSummary(a.stdout, res)
	return err
}

func (a *app) load(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "validate and normalize without writing to the store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var st store.Store = store.NewNoopStore()
	target := "dry-run store"
	if !*dryRun {
		opened, err := pipeline.OpenStore(ctx, a.cfg, a.log, false)
		if err != nil {
			return err
		}
		defer opened.Close()
		st = opened
		target = a.cfg.Database.Driver
		if a.cfg.Database.Driver == config.DriverSQLite {
			target = a.cfg.Database.SQLitePath
		}
	}
	res, err := pipeline.Load(ctx, a.cfg, st, a.sink)
	if err != nil {
		return err
	}
	pipeline.PrintLoadSummary(a.stdout, res, target)
	return nil
}

func (a *app) analyze(ctx context.Context) error {
	st, err := pipeline.OpenStore(ctx, a.cfg, a.log, true)
	if err != nil {
		return err
	}
	defer st.Close()
	res, err := pipeline.Analyze(ctx, a.cfg, st, a.sink)
	if err != nil {
		return err
	}
	pipeline.PrintAnalyzeSummary(a.stdout, res, a.cfg.Analysis.Window)
	return nil
}

func (a *app) orchestrator(runID string) (*pipeline.Orchestrator, error) {
	o, err := pipeline.NewOrchestrator([]string{"-config", a.cfgPath}, runID, a.log)
	if err != nil {
		return nil, err
	}
	o.Outputs = pipeline.OutputPaths(a.cfg)
	if a.cfg.TelegramEnabled() {
		o.Notifier = notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy)
	}
	return o, nil
}

func (a *app) runAll(ctx context.Context) error {
	o, err := a.orchestrator(a.runID)
	if err != nil {
		return err
	}
	rep, err := o.Run(ctx)
	pipeline.PrintRunSummary(a.stdout, rep)
	return err
}

func (a *app) schedule(ctx context.Context) error {
	job := func(ctx context.Context) error {
		runID := logging.NewRunID()
		o, err := a.orchestrator(runID)
		if err != nil {
			return err
		}
		rep, err := o.Run(ctx)
		pipeline.PrintRunSummary(a.stdout, rep)
		var se *pipeline.StageError
		if errors.As(err, &se) {
			return fmt.Errorf("run %s: %w", runID, se)
		}
		return err
	}

	sched := scheduler.NewScheduler(ctx, job, a.log)
	if err := sched.Register(a.cfg.Schedule.Cron); err != nil {
		return err
	}
	sched.Start()

	if a.cfg.Schedule.RunOnStart || os.Getenv("RUN_ON_START") == "true" {
		a.log.Info("run_on_start enabled, executing pipeline now")
		go sched.RunNow()
	}

	a.log.Info("MarketETL scheduler is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	a.log.Info("shutdown signal received, stopping...")
	sched.Stop()
	return nil
}

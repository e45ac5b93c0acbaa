package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"MarketETL/internal/logging"
	"MarketETL/internal/model"
	"MarketETL/internal/notifier"
)

// StageError reports a stage process that exited unsuccessfully.
type StageError struct {
	Stage    string
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("stage %s could not run: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s exited with status %d", e.Stage, e.ExitCode)
}

func (e *StageError) Unwrap() error { return e.Err }

// Orchestrator runs each stage as its own process, in order, and stops at the first failure.
type Orchestrator struct {
	// Executable is re-invoked as `Executable Args... <stage>`.
	Executable string
	Args       []string
	Stages     []string
	// Env is appended to the parent environment of every stage.
	Env    []string
	RunID  string
	Stdout io.Writer
	Stderr io.Writer
	// Outputs are listed in the run report when every stage succeeds.
	Outputs  []string
	Notifier notifier.Sender
	Log      *zap.Logger
}

// NewOrchestrator re-executes the running binary for each stage.
func NewOrchestrator(args []string, runID string, log *zap.Logger) (*Orchestrator, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &Orchestrator{
		Executable: exe,
		Args:       args,
		Stages:     Stages,
		RunID:      runID,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Log:        log,
	}, nil
}

// Run executes the stages and returns the run report. The error is a *StageError
// when a stage failed.
func (o *Orchestrator) Run(ctx context.Context) (model.RunReport, error) {
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	rep := model.RunReport{RunID: o.RunID, Started: time.Now()}

	var runErr error
	for _, stage := range o.Stages {
		log.Info("stage starting", zap.String("stage", stage))
		began := time.Now()
		code, err := o.runStage(ctx, stage)
		outcome := model.StageOutcome{Name: stage, ExitCode: code, Elapsed: time.Since(began)}
		rep.Stages = append(rep.Stages, outcome)

		if err != nil {
			rep.FailedStage = stage
			rep.ExitCode = code
			runErr = &StageError{Stage: stage, ExitCode: code, Err: err}
			log.Error("stage failed", zap.String("stage", stage), zap.Int("exit_code", code), zap.Error(err))
			break
		}
		log.Info("stage finished", zap.String("stage", stage), zap.Duration("elapsed", outcome.Elapsed))
	}

	rep.Elapsed = time.Since(rep.Started)
	if runErr == nil {
		rep.Outputs = o.Outputs
	}
	o.notify(ctx, rep, log)
	return rep, runErr
}

func (o *Orchestrator) runStage(ctx context.Context, stage string) (int, error) {
	args := append(append([]string(nil), o.Args...), stage)
	cmd := exec.CommandContext(ctx, o.Executable, args...)
	cmd.Env = append(append(os.Environ(), o.Env...), logging.RunIDEnv+"="+o.RunID)
	cmd.Stdout = o.Stdout
	cmd.Stderr = o.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}

func (o *Orchestrator) notify(ctx context.Context, rep model.RunReport, log *zap.Logger) {
	if o.Notifier == nil {
		return
	}
	if err := o.Notifier.Send(ctx, notifier.FormatRunSummary(rep)); err != nil {
		log.Warn("run summary notification failed", zap.Error(err))
	}
}

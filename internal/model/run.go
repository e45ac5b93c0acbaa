package model

import "time"

// StageOutcome records how one pipeline stage process ended.
type StageOutcome struct {
	Name     string
	ExitCode int
	Elapsed  time.Duration
}

// RunReport summarises one orchestrated pipeline run.
type RunReport struct {
	RunID       string
	Started     time.Time
	Elapsed     time.Duration
	Stages      []StageOutcome
	FailedStage string
	ExitCode    int
	Outputs     []string
}

// Ok reports whether every stage succeeded.
func (r RunReport) Ok() bool { return r.FailedStage == "" }

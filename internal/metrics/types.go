package metrics

import (
	"time"
)

// StageSample records how one pipeline stage went
type StageSample struct {
	Stage    string  `json:"stage"`
	Seconds  float64 `json:"seconds"`
	Result   string  `json:"result"`
	Error    string  `json:"error,omitempty"`
	Warnings int     `json:"warnings,omitempty"`
}

// RunRecord is one line of the run history log
type RunRecord struct {
	Timestamp  time.Time     `json:"ts"`
	RunID      string        `json:"run_id"`
	Version    string        `json:"version"`
	NPURelease string        `json:"npu_release"`
	DryRun     bool          `json:"dry_run,omitempty"`
	Result     string        `json:"result"`
	Stages     []StageSample `json:"stages"`
}

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

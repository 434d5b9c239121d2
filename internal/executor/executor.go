// Package executor defines how user code gets run.
//
// The service layer only sees the Executor interface. Two backends exist:
// piston (the hosted Piston API, the default) and docker (local containers
// with a pre-warmed pool, for self-hosting a subset of languages).
package executor

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupportedLanguage is returned by a backend that cannot run the
// requested language.
var ErrUnsupportedLanguage = errors.New("executor: unsupported language")

// ExecutionRequest names the runtime by its Piston language id and version.
// Backends that manage their own toolchains may ignore Version.
type ExecutionRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Code     string `json:"code"`
}

// ExecutionResult holds the outcome of one run. A non-zero ExitCode is a
// normal result, not an error; errors are reserved for failing to run at all.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// TimeoutExitCode is reported when a run is cut off, as the unix timeout
// command does.
const TimeoutExitCode = 124

package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/Mirai3103/remote-grader/internal/config"
)

type Type string

const (
	DirectSandbox Type = "direct" // runs children directly on the host, no isolation
)

// RunRequest describes one child process to execute.
type RunRequest struct {
	SubmissionID     string            // student the run belongs to, for logging
	TestCaseID       string            // case the run belongs to, for logging
	Command          string            // executable name or path
	Args             []string          // arguments, not including the executable
	Env              map[string]string // merged over the host environment
	WorkingDirectory string            // empty inherits the grader's directory
	Input            string            // written to the child's stdin
	Timeout          time.Duration     // zero waits without bound
}

// ExecuteResult is the raw result of a finished or killed child.
// Stdout is not decoded; callers decide how to interpret it.
type ExecuteResult struct {
	TimedOut bool
	Stdout   []byte
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Executor runs a prepared command. Errors mean the child could not be
// started or observed; a slow or failing child is reported in the result.
type Executor interface {
	Execute(ctx context.Context, req RunRequest) (*ExecuteResult, error)
	ID() string
}

func NewExecutor(rc config.RunnerConfig) (Executor, error) {
	switch Type(rc.SandboxType) {
	case DirectSandbox, "":
		return &directExecutor{killGrace: rc.KillGrace}, nil
	default:
		return nil, fmt.Errorf("unsupported sandbox type %q", rc.SandboxType)
	}
}

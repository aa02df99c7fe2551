package core

import (
	"context"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Mirai3103/remote-grader/internal/core/sandbox"
	"github.com/Mirai3103/remote-grader/internal/logger"
	"github.com/Mirai3103/remote-grader/internal/models"
)

// Invocation is one (submission, test case) run.
type Invocation struct {
	Student        string
	Case           string
	Command        string
	Args           []string
	Env            map[string]string
	Input          string
	ExpectedOutput string
	Timeout        time.Duration // zero waits without bound
}

// ProcessRunner executes an invocation and classifies the result.
//
// Output is compared exactly, byte for byte. Trailing newlines and
// whitespace are significant: a program printing "3\n" fails a fixture
// expecting "3". Fixture authors must write .out files accordingly.
type ProcessRunner struct {
	executor sandbox.Executor
}

func NewProcessRunner(executor sandbox.Executor) *ProcessRunner {
	return &ProcessRunner{executor: executor}
}

// Run never fails: spawn and I/O problems become RunError outcomes.
func (p *ProcessRunner) Run(ctx context.Context, inv Invocation) models.Outcome {
	res, err := p.executor.Execute(ctx, sandbox.RunRequest{
		SubmissionID: inv.Student,
		TestCaseID:   inv.Case,
		Command:      inv.Command,
		Args:         inv.Args,
		Env:          inv.Env,
		Input:        inv.Input,
		Timeout:      inv.Timeout,
	})
	if err != nil {
		logger.Warn(ctx, "run failed", zap.Error(err))
		return models.RunFailed(err.Error())
	}
	if res.TimedOut {
		return models.TimedOut()
	}
	if !utf8.Valid(res.Stdout) {
		return models.RunFailed("program output is not valid UTF-8")
	}
	if string(res.Stdout) == inv.ExpectedOutput {
		return models.Passed()
	}
	return models.Failed()
}

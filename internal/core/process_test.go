package core

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/Mirai3103/remote-grader/internal/config"
	"github.com/Mirai3103/remote-grader/internal/core/sandbox"
	"github.com/Mirai3103/remote-grader/internal/models"
)

type fakeExecutor struct {
	run func(req sandbox.RunRequest) (*sandbox.ExecuteResult, error)
}

func (f *fakeExecutor) Execute(_ context.Context, req sandbox.RunRequest) (*sandbox.ExecuteResult, error) {
	return f.run(req)
}

func (f *fakeExecutor) ID() string { return "fake" }

func stdout(s []byte) *fakeExecutor {
	return &fakeExecutor{run: func(sandbox.RunRequest) (*sandbox.ExecuteResult, error) {
		return &sandbox.ExecuteResult{Stdout: s}, nil
	}}
}

func TestProcessRunnerClassification(t *testing.T) {
	cases := []struct {
		name     string
		executor *fakeExecutor
		expected string
		want     models.TestcaseStatus
	}{
		{"exact match", stdout([]byte("3\n")), "3\n", models.Success},
		{"trailing newline is significant", stdout([]byte("3\n")), "3", models.Failure},
		{"different output", stdout([]byte("4\n")), "3\n", models.Failure},
		{"invalid utf8", stdout([]byte{0xff, 0xfe}), "", models.RunError},
		{"timed out", &fakeExecutor{run: func(sandbox.RunRequest) (*sandbox.ExecuteResult, error) {
			return &sandbox.ExecuteResult{TimedOut: true, Stdout: []byte("3\n")}, nil
		}}, "3\n", models.Timeout},
		{"spawn failure", &fakeExecutor{run: func(sandbox.RunRequest) (*sandbox.ExecuteResult, error) {
			return nil, errors.New("no such file")
		}}, "", models.RunError},
		{"non-zero exit still compared", &fakeExecutor{run: func(sandbox.RunRequest) (*sandbox.ExecuteResult, error) {
			return &sandbox.ExecuteResult{Stdout: []byte("ok"), ExitCode: 3}, nil
		}}, "ok", models.Success},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewProcessRunner(tc.executor).Run(context.Background(), Invocation{ExpectedOutput: tc.expected})
			if got.Status != tc.want {
				t.Fatalf("expected %s, got %s (%s)", tc.want, got.Status, got.Message)
			}
		})
	}
}

func TestProcessRunnerForwardsInvocation(t *testing.T) {
	var seen sandbox.RunRequest
	fake := &fakeExecutor{run: func(req sandbox.RunRequest) (*sandbox.ExecuteResult, error) {
		seen = req
		return &sandbox.ExecuteResult{Stdout: []byte(req.Input)}, nil
	}}
	inv := Invocation{
		Student:        "alice",
		Case:           "add",
		Command:        "python3",
		Args:           []string{"main.py"},
		Env:            map[string]string{"A": "1"},
		Input:          "1 2",
		ExpectedOutput: "1 2",
		Timeout:        time.Second,
	}
	if got := NewProcessRunner(fake).Run(context.Background(), inv); got.Status != models.Success {
		t.Fatalf("expected success, got %+v", got)
	}
	if seen.SubmissionID != "alice" || seen.TestCaseID != "add" || seen.Command != "python3" ||
		seen.Env["A"] != "1" || seen.Timeout != time.Second || len(seen.Args) != 1 {
		t.Fatalf("request not forwarded: %+v", seen)
	}
}

func TestProcessRunnerWithDirectExecutor(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	executor, err := sandbox.NewExecutor(config.RunnerConfig{SandboxType: "direct", KillGrace: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	runner := NewProcessRunner(executor)
	ctx := context.Background()

	echo := runner.Run(ctx, Invocation{Command: "cat", Input: "hello\n", ExpectedOutput: "hello\n", Timeout: 5 * time.Second})
	if echo.Status != models.Success {
		t.Fatalf("expected success, got %+v", echo)
	}

	start := time.Now()
	slow := runner.Run(ctx, Invocation{Command: "sh", Args: []string{"-c", "sleep 10"}, Timeout: 100 * time.Millisecond})
	if slow.Status != models.Timeout {
		t.Fatalf("expected timeout, got %+v", slow)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout took too long: %v", time.Since(start))
	}

	missing := runner.Run(ctx, Invocation{Command: "/definitely/not/here"})
	if missing.Status != models.RunError || missing.Message == "" {
		t.Fatalf("expected run error with message, got %+v", missing)
	}
}

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-grader/internal/logger"
)

const defaultKillGrace = 2 * time.Second

// directExecutor runs commands directly on the host.
// WARNING: submitted code is not isolated in any way.
type directExecutor struct {
	// killGrace bounds how long Wait keeps draining pipes after the child is
	// gone, in case a descendant inherited them.
	killGrace time.Duration
}

func (e *directExecutor) ID() string {
	return "direct_executor_v2"
}

// Execute starts the child, feeds stdin and drains stdout/stderr concurrently
// with the wait, and kills the whole process tree when the timeout fires.
func (e *directExecutor) Execute(ctx context.Context, req RunRequest) (*ExecuteResult, error) {
	log := logger.WithContext(ctx).With(zap.String("executor", e.ID()))

	cmd := exec.Command(req.Command, req.Args...)
	cmd.Dir = req.WorkingDirectory
	cmd.Env = mergeEnv(os.Environ(), req.Env)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = strings.NewReader(req.Input)
	cmd.WaitDelay = e.killGrace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultKillGrace
	}
	setProcessGroup(cmd)

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &Error{
			Type:    ErrCmdStart,
			Message: fmt.Sprintf("failed to start %q", req.Command),
			Cause:   err,
		}
	}
	pid := cmd.Process.Pid
	log.Debug("process started", zap.Int("pid", pid), zap.String("command", req.Command), zap.Strings("args", req.Args))

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-errChan:
		result := &ExecuteResult{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.String(),
			Duration: time.Since(startTime),
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return nil, &Error{
					Type:    ErrCmdWait,
					Message: "waiting for the process failed",
					Cause:   err,
				}
			}
			result.ExitCode = exitErr.ExitCode()
		}
		log.Debug("process exited", zap.Int("pid", pid), zap.Int("exit_code", result.ExitCode), zap.Duration("took", result.Duration))
		return result, nil

	case <-timeout:
		e.kill(log, pid, cmd.Process)
		waitErr := <-errChan
		log.Debug("process killed after timeout", zap.Int("pid", pid), zap.Duration("timeout", req.Timeout), zap.NamedError("wait", waitErr))
		return &ExecuteResult{TimedOut: true, ExitCode: -1, Duration: time.Since(startTime)}, nil

	case <-ctx.Done():
		e.kill(log, pid, cmd.Process)
		<-errChan
		return nil, &Error{
			Type:    ErrCanceled,
			Message: "execution canceled",
			Cause:   ctx.Err(),
		}
	}
}

// kill terminates the child and every descendant it spawned. The caller
// still reaps the child through Wait.
func (e *directExecutor) kill(log *zap.Logger, pid int, proc *os.Process) {
	if p, err := process.NewProcess(int32(pid)); err == nil {
		killDescendants(p)
	}
	killProcessGroup(pid)
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("failed to kill process", zap.Int("pid", pid), zap.Error(err))
	}
}

func killDescendants(p *process.Process) {
	children, err := p.Children()
	if err != nil {
		return
	}
	for _, child := range children {
		killDescendants(child)
		_ = child.Kill()
	}
}

// mergeEnv overrides host variables with extra, keeping the host order.
func mergeEnv(host []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return host
	}
	env := make([]string, 0, len(host)+len(extra))
	for _, kv := range host {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

type ErrorType string

const (
	ErrCmdStart ErrorType = "COMMAND_START_ERROR"
	ErrCmdWait  ErrorType = "COMMAND_WAIT_ERROR"
	ErrCanceled ErrorType = "COMMAND_CANCELED"
)

type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (se *Error) Error() string {
	if se.Cause != nil {
		return fmt.Sprintf("%s: %s (type: %s)", se.Message, se.Cause.Error(), se.Type)
	}
	return fmt.Sprintf("%s (type: %s)", se.Message, se.Type)
}

func (se *Error) Unwrap() error {
	return se.Cause
}

package backend

import (
	"context"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/Mirai3103/remote-grader/internal/logger"
)

// runSetup executes one setup command and reports whether it exited with status zero.
// Standard input is closed; combined output is only logged.
func runSetup(ctx context.Context, timeout time.Duration, dir, name string, args ...string) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	start := time.Now()
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.Info(ctx, "setup failed",
			zap.String("command", name),
			zap.Strings("args", args),
			zap.Error(err),
			zap.ByteString("output", output),
		)
		return false
	}
	logger.Debug(ctx, "setup succeeded",
		zap.String("command", name),
		zap.Duration("took", time.Since(start)),
	)
	return true
}

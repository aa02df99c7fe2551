package worker

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Mirai3103/remote-grader/internal/logger"
)

// Limiter bounds how many child processes (setup steps and case runs) are
// alive at once across the whole grading run, and optionally how fast new
// ones are started.
type Limiter struct {
	slots   *semaphore.Weighted
	size    int
	spawner *rate.Limiter
}

// NewLimiter creates a limiter with maxJobs slots. maxJobs <= 0 falls back
// to the number of CPUs; spawnRate <= 0 disables rate limiting.
func NewLimiter(maxJobs int, spawnRate float64) *Limiter {
	if maxJobs <= 0 {
		maxJobs = runtime.NumCPU()
	}
	l := &Limiter{
		slots: semaphore.NewWeighted(int64(maxJobs)),
		size:  maxJobs,
	}
	if spawnRate > 0 {
		burst := int(spawnRate)
		if burst < 1 {
			burst = 1
		}
		l.spawner = rate.NewLimiter(rate.Limit(spawnRate), burst)
	}
	return l
}

// Size is the number of slots.
func (l *Limiter) Size() int {
	return l.size
}

// Acquire blocks until a slot is free and the spawn rate allows a new process.
// On success the caller must call the returned release exactly once.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	now := time.Now()
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if l.spawner != nil {
		if err := l.spawner.Wait(ctx); err != nil {
			l.slots.Release(1)
			return nil, err
		}
	}
	if waited := time.Since(now); waited > time.Second {
		logger.Debug(ctx, "process slot acquired after waiting", zap.Duration("waited", waited), zap.Int("slots", l.size))
	}
	return func() { l.slots.Release(1) }, nil
}

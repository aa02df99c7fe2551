package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-grader/internal/backend"
	"github.com/Mirai3103/remote-grader/internal/core/sandbox"
	"github.com/Mirai3103/remote-grader/internal/fixture"
	"github.com/Mirai3103/remote-grader/internal/logger"
	"github.com/Mirai3103/remote-grader/internal/models"
	"github.com/Mirai3103/remote-grader/internal/worker"
)

// ResultPublisher receives each student's results as soon as they are complete.
type ResultPublisher interface {
	PublishStudentResult(ctx context.Context, report models.StudentReport) error
}

// TargetError means the submissions directory itself could not be listed.
type TargetError struct {
	Dir string
	Err error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("list submissions in %s: %v", e.Dir, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

// Grader drives one grading run: load fixtures, discover submissions, set
// each one up and run it against every case.
type Grader struct {
	cfg       backend.RunnerConfig
	fs        afero.Fs
	runner    *ProcessRunner
	limiter   *worker.Limiter
	publisher ResultPublisher
	runID     string
}

type Option func(*Grader)

// WithFs sets the filesystem used for fixtures and submission discovery.
func WithFs(fs afero.Fs) Option {
	return func(g *Grader) { g.fs = fs }
}

// WithLimiter shares a process limiter with the grader.
func WithLimiter(l *worker.Limiter) Option {
	return func(g *Grader) { g.limiter = l }
}

func WithPublisher(p ResultPublisher) Option {
	return func(g *Grader) { g.publisher = p }
}

func WithRunID(id string) Option {
	return func(g *Grader) { g.runID = id }
}

func NewGrader(cfg backend.RunnerConfig, executor sandbox.Executor, opts ...Option) *Grader {
	g := &Grader{
		cfg:    cfg,
		runner: NewProcessRunner(executor),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.fs == nil {
		g.fs = afero.NewOsFs()
	}
	if g.limiter == nil {
		g.limiter = worker.NewLimiter(0, 0)
	}
	return g
}

type graded struct {
	student string
	result  models.StudentResult
}

// Grade returns one StudentResult per submission directory, each holding
// exactly one outcome per fixture case. Only fixture and target directory
// failures abort the run; everything else is recorded as an outcome.
func (g *Grader) Grade(ctx context.Context) (models.ClassResult, error) {
	if g.runID != "" {
		ctx = logger.WithRunID(ctx, g.runID)
	}
	start := time.Now()

	cases, err := fixture.NewRepository(g.fs, g.cfg.FixtureDirectory()).Load(ctx)
	if err != nil {
		return nil, err
	}
	submissions, err := g.discover()
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "grading started",
		zap.String("suite", g.cfg.Name()),
		zap.String("backend", string(g.cfg.Kind())),
		zap.Int("submissions", len(submissions)),
		zap.Int("cases", len(cases)),
		zap.Int("slots", g.limiter.Size()),
	)

	p := pool.NewWithResults[graded]().WithMaxGoroutines(g.limiter.Size())
	for _, sub := range submissions {
		sub := sub
		p.Go(func() graded {
			return g.gradeIsolated(ctx, sub, cases)
		})
	}

	class := make(models.ClassResult, len(submissions))
	for _, res := range p.Wait() {
		class[res.student] = res.result
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info(ctx, "grading finished", zap.Duration("took", time.Since(start)))
	return class, nil
}

func (g *Grader) discover() ([]models.Submission, error) {
	dir := g.cfg.TargetDirectory()
	entries, err := afero.ReadDir(g.fs, dir)
	if err != nil {
		return nil, &TargetError{Dir: dir, Err: err}
	}
	var subs []models.Submission
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subs = append(subs, models.Submission{
			StudentName:   entry.Name(),
			DirectoryPath: filepath.Join(dir, entry.Name()),
		})
	}
	return subs, nil
}

// gradeIsolated turns a panic while grading one student into RunError
// outcomes for that student only.
func (g *Grader) gradeIsolated(ctx context.Context, sub models.Submission, cases map[string]models.TestCase) graded {
	ctx = logger.WithStudent(ctx, sub.StudentName)

	var result models.StudentResult
	var pc panics.Catcher
	pc.Try(func() {
		result = g.gradeSubmission(ctx, sub, cases)
	})
	if r := pc.Recovered(); r != nil {
		logger.Error(ctx, "grading panicked", zap.String("panic", r.String()))
		result = uniform(cases, models.RunFailed(fmt.Sprintf("internal error: %v", r.Value)))
	}

	g.publish(ctx, sub.StudentName, result)
	return graded{student: sub.StudentName, result: result}
}

func (g *Grader) gradeSubmission(ctx context.Context, sub models.Submission, cases map[string]models.TestCase) models.StudentResult {
	release, err := g.limiter.Acquire(ctx)
	if err != nil {
		return uniform(cases, models.RunFailed(err.Error()))
	}
	ok := g.cfg.PerformSetup(ctx, sub.DirectoryPath)
	release()
	if !ok {
		logger.Info(ctx, "setup failed, every case marked as compile error")
		return uniform(cases, models.CompileFailed())
	}

	command, args := g.cfg.BuildCommand(sub.DirectoryPath)
	env := g.cfg.Environment(sub.DirectoryPath)
	timeout, _ := g.cfg.CaseTimeout()

	names := make([]string, 0, len(cases))
	for name := range cases {
		names = append(names, name)
	}
	sort.Strings(names)

	outcomes := make([]models.Outcome, len(names))
	p := pool.New().WithMaxGoroutines(g.limiter.Size())
	for i, name := range names {
		i, name := i, name
		tc := cases[name]
		p.Go(func() {
			outcomes[i] = g.runCase(logger.WithCase(ctx, name), Invocation{
				Student:        sub.StudentName,
				Case:           name,
				Command:        command,
				Args:           args,
				Env:            env,
				Input:          tc.Input,
				ExpectedOutput: tc.ExpectedOutput,
				Timeout:        timeout,
			})
		})
	}
	p.Wait()

	result := make(models.StudentResult, len(names))
	for i, name := range names {
		result[name] = outcomes[i]
	}
	logger.Info(ctx, "submission graded", zap.Int("passed", result.Passed()), zap.Int("total", len(result)))
	return result
}

func (g *Grader) runCase(ctx context.Context, inv Invocation) models.Outcome {
	release, err := g.limiter.Acquire(ctx)
	if err != nil {
		return models.RunFailed(err.Error())
	}
	defer release()
	outcome := g.runner.Run(ctx, inv)
	logger.Debug(ctx, "case finished", zap.String("status", string(outcome.Status)))
	return outcome
}

func (g *Grader) publish(ctx context.Context, student string, result models.StudentResult) {
	if g.publisher == nil {
		return
	}
	report := models.StudentReport{
		RunID:   g.runID,
		Suite:   g.cfg.Name(),
		Student: student,
		Passed:  result.Passed(),
		Total:   len(result),
		Results: result,
	}
	if err := g.publisher.PublishStudentResult(ctx, report); err != nil {
		logger.Warn(ctx, "publishing student result failed", zap.Error(err))
	}
}

func uniform(cases map[string]models.TestCase, outcome models.Outcome) models.StudentResult {
	result := make(models.StudentResult, len(cases))
	for name := range cases {
		result[name] = outcome
	}
	return result
}

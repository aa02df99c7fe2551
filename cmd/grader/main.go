package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-grader/internal/backend"
	appConfig "github.com/Mirai3103/remote-grader/internal/config"
	"github.com/Mirai3103/remote-grader/internal/core"
	"github.com/Mirai3103/remote-grader/internal/core/sandbox"
	"github.com/Mirai3103/remote-grader/internal/logger"
	"github.com/Mirai3103/remote-grader/internal/models"
	natsClient "github.com/Mirai3103/remote-grader/internal/nats"
	"github.com/Mirai3103/remote-grader/internal/report"
	"github.com/Mirai3103/remote-grader/internal/worker"
)

const (
	exitOK      = 0
	exitFailure = 1 // grading could not complete
	exitUsage   = 2 // bad flags, settings or grading document
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("grader", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	settings := flags.String("settings", "", "harness settings file (default: grader.yaml in ./configs, . or /etc/grader)")
	flags.StringP("output", "o", "table", "report format: "+strings.Join(report.Names(), ", "))
	flags.IntP("workers", "j", 0, "maximum concurrent child processes, 0 for the number of CPUs")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("log-format", "console", "console or json")
	flags.String("nats-url", "", "publish each student's result to this NATS server")
	serve := flags.Bool("serve", false, "grade documents requested over NATS instead of a single document")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: grader [flags] <grading-document>")
		fmt.Fprintln(stderr, "       grader --serve --nats-url <url> [flags]")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if (*serve && flags.NArg() != 0) || (!*serve && flags.NArg() != 1) {
		flags.Usage()
		return exitUsage
	}

	cfg, err := appConfig.LoadConfig(flags, *settings)
	if err != nil {
		fmt.Fprintf(stderr, "grader: %v\n", err)
		return exitUsage
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(stderr, "grader: %v\n", err)
		return exitUsage
	}
	defer logger.Sync()
	if undo, err := maxprocs.Set(maxprocs.Logger(logger.L().Sugar().Debugf)); err == nil {
		defer undo()
	}
	if cfg.Source != "" {
		logger.Debug(ctx, "settings loaded", zap.String("file", cfg.Source))
	}

	renderer, err := report.Get(cfg.Output)
	if err != nil {
		fmt.Fprintf(stderr, "grader: %v\n", err)
		return exitUsage
	}
	executor, err := sandbox.NewExecutor(cfg.Runner)
	if err != nil {
		fmt.Fprintf(stderr, "grader: %v\n", err)
		return exitUsage
	}

	svc := &service{
		executor: executor,
		limiter:  worker.NewLimiter(cfg.Runner.Concurrency(), cfg.Runner.SpawnRate),
		opts: backend.Options{
			PythonInterpreter: cfg.Backend.PythonInterpreter,
			JavaCompiler:      cfg.Backend.JavaCompiler,
			JavaLauncher:      cfg.Backend.JavaLauncher,
			CompileTimeout:    cfg.Runner.CompilationTimeout(),
		},
	}

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = connectNATS(ctx, cfg.NATS.URL)
		if err != nil {
			fmt.Fprintf(stderr, "grader: connect to NATS: %v\n", err)
			return exitFailure
		}
		defer func() {
			if err := nc.FlushTimeout(5 * time.Second); err != nil {
				logger.Warn(ctx, "flush NATS connection", zap.Error(err))
			}
			nc.Close()
		}()
		svc.publisher = natsClient.NewPublisher(nc, cfg.NATS.ResultSubject)
	}

	if *serve {
		if nc == nil {
			fmt.Fprintln(stderr, "grader: --serve requires a NATS url")
			return exitUsage
		}
		return svc.serve(ctx, nc, cfg.NATS)
	}
	return svc.gradeDocument(ctx, flags.Arg(0), renderer, stdout, stderr)
}

// service grades documents with one executor and one process limiter, so
// concurrent requests in serve mode share the same bound.
type service struct {
	executor  sandbox.Executor
	limiter   *worker.Limiter
	opts      backend.Options
	publisher core.ResultPublisher
}

func (s *service) grade(ctx context.Context, rc backend.RunnerConfig, runID string) (models.ClassResult, error) {
	opts := []core.Option{core.WithLimiter(s.limiter), core.WithRunID(runID)}
	if s.publisher != nil {
		opts = append(opts, core.WithPublisher(s.publisher))
	}
	return core.NewGrader(rc, s.executor, opts...).Grade(ctx)
}

func (s *service) gradeDocument(ctx context.Context, path string, renderer report.Renderer, stdout, stderr io.Writer) int {
	rc, err := backend.Load(path, s.opts)
	if err != nil {
		fmt.Fprintf(stderr, "grader: %v\n", err)
		return exitUsage
	}
	runID := uuid.NewString()
	results, err := s.grade(ctx, rc, runID)
	if err != nil {
		logger.Error(logger.WithRunID(ctx, runID), "grading failed", zap.Error(err))
		fmt.Fprintf(stderr, "grader: %v\n", err)
		return exitFailure
	}
	if err := renderer.Render(stdout, results); err != nil {
		fmt.Fprintf(stderr, "grader: write report: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func (s *service) HandleGradeRequest(ctx context.Context, req natsClient.GradeRequest) natsClient.GradeReply {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	rc, err := backend.Load(req.Document, s.opts)
	if err != nil {
		logger.Warn(ctx, "rejected grade request", zap.String("document", req.Document), zap.Error(err))
		return natsClient.GradeReply{RunID: runID, Error: err.Error()}
	}
	results, err := s.grade(ctx, rc, runID)
	if err != nil {
		logger.Error(ctx, "grading failed", zap.Error(err))
		return natsClient.GradeReply{RunID: runID, Error: err.Error()}
	}
	return natsClient.GradeReply{RunID: runID, Results: results}
}

func (s *service) serve(ctx context.Context, nc *nats.Conn, cfg appConfig.NATSConfig) int {
	sub, err := natsClient.NewSubscriber(nc, cfg.RequestSubject, cfg.QueueGroup, s).Subscribe(ctx)
	if err != nil {
		return exitFailure
	}
	<-ctx.Done()

	logger.Info(ctx, "shutting down")
	if err := sub.Unsubscribe(); err != nil {
		logger.Warn(ctx, "unsubscribe", zap.Error(err))
	}
	return exitOK
}

func connectNATS(ctx context.Context, url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("grader"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn(ctx, "NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(ctx, "NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug(ctx, "NATS connection closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}

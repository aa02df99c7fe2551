package backend

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-grader/internal/logger"
)

// Java compiles every top-level *.java file of a submission and runs the configured main class.
type Java struct {
	common
	mainClass      string
	compiler       string
	launcher       string
	fs             afero.Fs
	compileTimeout time.Duration
}

func newJava(s section, opts Options) (RunnerConfig, error) {
	c, err := parseCommon(s)
	if err != nil {
		return nil, err
	}
	mainClass, err := s.requireString("main_class")
	if err != nil {
		return nil, err
	}
	return &Java{
		common:         c,
		mainClass:      mainClass,
		compiler:       opts.JavaCompiler,
		launcher:       opts.JavaLauncher,
		fs:             opts.Fs,
		compileTimeout: opts.CompileTimeout,
	}, nil
}

func (j *Java) Kind() Kind { return JavaBackend }

func (j *Java) BuildCommand(string) (string, []string) {
	args := make([]string, 0, len(j.args)+1)
	args = append(args, j.mainClass)
	args = append(args, j.args...)
	return j.launcher, args
}

// Environment points CLASSPATH at the submission so compiled classes resolve.
func (j *Java) Environment(submissionDir string) map[string]string {
	return map[string]string{"CLASSPATH": submissionDir}
}

// PerformSetup succeeds iff the compiler exits with status zero. An empty
// source list is passed through unchanged.
func (j *Java) PerformSetup(ctx context.Context, submissionDir string) bool {
	entries, err := afero.ReadDir(j.fs, submissionDir)
	if err != nil {
		logger.Warn(ctx, "list java sources failed", zap.String("dir", submissionDir), zap.Error(err))
		return false
	}
	var sources []string
	for _, entry := range entries {
		if entry.Mode().IsRegular() && strings.HasSuffix(entry.Name(), ".java") {
			sources = append(sources, filepath.Join(submissionDir, entry.Name()))
		}
	}
	return runSetup(ctx, j.compileTimeout, "", j.compiler, sources...)
}

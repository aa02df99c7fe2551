// Package backend defines the per-language contract used to set up and run
// submissions, and builds it from a grading document.
package backend

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/afero"
)

type Kind string

const (
	JavaBackend    Kind = "java"
	PythonBackend  Kind = "python"
	CommandBackend Kind = "command"
)

// DefaultTimeout applies when the document omits "timeout" or sets it to true.
const DefaultTimeout = 5 * time.Second

// RunnerConfig is the capability set every backend implements. Values are
// immutable once built and safe for concurrent use.
type RunnerConfig interface {
	Name() string
	Kind() Kind
	FixtureDirectory() string
	// CaseTimeout reports the per-case wall-clock limit; ok is false when unbounded.
	CaseTimeout() (timeout time.Duration, ok bool)
	TargetDirectory() string
	// BuildCommand returns the executable and a freshly allocated argument list.
	BuildCommand(submissionDir string) (string, []string)
	// Environment returns extra variables for the child on top of the host environment.
	Environment(submissionDir string) map[string]string
	// PerformSetup runs pre-run steps such as compilation and reports whether
	// the submission can be run.
	PerformSetup(ctx context.Context, submissionDir string) bool
}

// Options carries construction-time defaults that depend on the host.
type Options struct {
	Fs                afero.Fs
	PythonInterpreter string
	JavaCompiler      string
	JavaLauncher      string
	// CompileTimeout bounds setup steps. Zero means unbounded.
	CompileTimeout time.Duration
}

// DefaultPythonInterpreter picks the interpreter binary for a host OS.
func DefaultPythonInterpreter(goos string) string {
	if goos == "windows" {
		return "python"
	}
	return "python3"
}

// DefaultOptions resolves Options for the running host.
func DefaultOptions() Options {
	return Options{
		Fs:                afero.NewOsFs(),
		PythonInterpreter: DefaultPythonInterpreter(runtime.GOOS),
		JavaCompiler:      "javac",
		JavaLauncher:      "java",
		CompileTimeout:    30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Fs == nil {
		o.Fs = d.Fs
	}
	if o.PythonInterpreter == "" {
		o.PythonInterpreter = d.PythonInterpreter
	}
	if o.JavaCompiler == "" {
		o.JavaCompiler = d.JavaCompiler
	}
	if o.JavaLauncher == "" {
		o.JavaLauncher = d.JavaLauncher
	}
	return o
}

// common holds the fields shared by every backend.
type common struct {
	name       string
	fixtureDir string
	targetDir  string
	timeout    time.Duration
	hasTimeout bool
	args       []string
}

func (c *common) Name() string             { return c.name }
func (c *common) FixtureDirectory() string { return c.fixtureDir }
func (c *common) TargetDirectory() string  { return c.targetDir }

func (c *common) CaseTimeout() (time.Duration, bool) {
	return c.timeout, c.hasTimeout
}

func parseCommon(s section) (common, error) {
	var c common
	var err error
	if c.name, err = s.requireString("name"); err != nil {
		return c, err
	}
	if c.fixtureDir, err = s.requireString("tests_dir"); err != nil {
		return c, err
	}
	if c.targetDir, err = s.requireString("target_dir"); err != nil {
		return c, err
	}
	if c.timeout, c.hasTimeout, err = s.timeout(); err != nil {
		return c, err
	}
	if c.args, err = s.args(); err != nil {
		return c, err
	}
	return c, nil
}

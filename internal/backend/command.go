package backend

import (
	"context"
	"strings"
	"time"

	"github.com/google/shlex"
)

// SubmissionDirPlaceholder is replaced by the submission directory in command
// templates and environment values.
const SubmissionDirPlaceholder = "{submission_dir}"

// Command runs an arbitrary executable, with an optional setup command, for
// languages that have no dedicated backend.
type Command struct {
	common
	run            []string
	setup          []string
	env            map[string]string
	compileTimeout time.Duration
}

func newCommand(s section, opts Options) (RunnerConfig, error) {
	c, err := parseCommon(s)
	if err != nil {
		return nil, err
	}
	run, err := s.commandLine("run", true)
	if err != nil {
		return nil, err
	}
	setup, err := s.commandLine("setup", false)
	if err != nil {
		return nil, err
	}
	env, err := s.stringMap("env")
	if err != nil {
		return nil, err
	}
	return &Command{
		common:         c,
		run:            run,
		setup:          setup,
		env:            env,
		compileTimeout: opts.CompileTimeout,
	}, nil
}

func (s section) commandLine(key string, required bool) ([]string, error) {
	if _, ok := s.values[key]; !ok && !required {
		return nil, nil
	}
	line, err := s.requireString(key)
	if err != nil {
		return nil, err
	}
	parts, err := shlex.Split(line)
	if err != nil {
		return nil, s.fieldError(key, "cannot be split: %v", err)
	}
	if len(parts) == 0 {
		return nil, s.fieldError(key, "must name an executable")
	}
	return parts, nil
}

func (c *Command) Kind() Kind { return CommandBackend }

func (c *Command) BuildCommand(submissionDir string) (string, []string) {
	args := make([]string, 0, len(c.run)-1+len(c.args))
	for _, part := range c.run[1:] {
		args = append(args, expand(part, submissionDir))
	}
	args = append(args, c.args...)
	return expand(c.run[0], submissionDir), args
}

func (c *Command) Environment(submissionDir string) map[string]string {
	env := make(map[string]string, len(c.env))
	for k, v := range c.env {
		env[k] = expand(v, submissionDir)
	}
	return env
}

// PerformSetup runs the setup command from inside the submission directory.
func (c *Command) PerformSetup(ctx context.Context, submissionDir string) bool {
	if len(c.setup) == 0 {
		return true
	}
	args := make([]string, 0, len(c.setup)-1)
	for _, part := range c.setup[1:] {
		args = append(args, expand(part, submissionDir))
	}
	return runSetup(ctx, c.compileTimeout, submissionDir, expand(c.setup[0], submissionDir), args...)
}

func expand(s, submissionDir string) string {
	return strings.ReplaceAll(s, SubmissionDirPlaceholder, submissionDir)
}

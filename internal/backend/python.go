package backend

import (
	"context"
	"path/filepath"
)

// Python runs a script found inside each submission with the configured interpreter.
type Python struct {
	common
	interpreter string
	file        string
}

func newPython(s section, opts Options) (RunnerConfig, error) {
	c, err := parseCommon(s)
	if err != nil {
		return nil, err
	}
	interpreter, err := s.optionalString("version", opts.PythonInterpreter)
	if err != nil {
		return nil, err
	}
	file, err := s.requireString("file")
	if err != nil {
		return nil, err
	}
	return &Python{common: c, interpreter: interpreter, file: file}, nil
}

func (p *Python) Kind() Kind { return PythonBackend }

func (p *Python) BuildCommand(submissionDir string) (string, []string) {
	args := make([]string, 0, len(p.args)+1)
	args = append(args, filepath.Join(submissionDir, p.file))
	args = append(args, p.args...)
	return p.interpreter, args
}

func (p *Python) Environment(string) map[string]string {
	return map[string]string{}
}

func (p *Python) PerformSetup(context.Context, string) bool {
	return true
}

// Package fixture loads the input/expected-output battery shared by every submission.
package fixture

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-grader/internal/logger"
	"github.com/Mirai3103/remote-grader/internal/models"
)

const (
	InputExt  = ".in"
	OutputExt = ".out"
)

// LoadError aborts a grading run: fixtures are ground truth for every student.
type LoadError struct {
	Dir string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load fixtures from %s: %v", e.Dir, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Repository reads test cases from one fixture directory.
type Repository struct {
	fs  afero.Fs
	dir string
}

func NewRepository(fs afero.Fs, dir string) *Repository {
	return &Repository{fs: fs, dir: dir}
}

// Load returns every case found in the directory, keyed by name. Each case
// is the basename of a file with its final extension stripped, and must have
// both a .in and a .out file. Any missing, unreadable or non-UTF-8 file fails
// the whole load.
func (r *Repository) Load(ctx context.Context) (map[string]models.TestCase, error) {
	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		return nil, &LoadError{Dir: r.dir, Err: err}
	}

	names := make(map[string]struct{})
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		if name, ok := caseName(entry.Name()); ok {
			names[name] = struct{}{}
		}
	}

	cases := make(map[string]models.TestCase, len(names))
	var errs error
	for name := range names {
		input, inErr := r.readText(name + InputExt)
		output, outErr := r.readText(name + OutputExt)
		if inErr != nil || outErr != nil {
			errs = multierr.Append(errs, multierr.Combine(inErr, outErr))
			continue
		}
		cases[name] = models.TestCase{Name: name, Input: input, ExpectedOutput: output}
	}
	if errs != nil {
		return nil, &LoadError{Dir: r.dir, Err: errs}
	}

	logger.Info(ctx, "fixtures loaded", zap.String("dir", r.dir), zap.Int("cases", len(cases)))
	return cases, nil
}

// caseName strips the final extension. Hidden and extensionless files are not cases.
func caseName(file string) (string, bool) {
	if strings.HasPrefix(file, ".") {
		return "", false
	}
	ext := filepath.Ext(file)
	if ext == "" {
		return "", false
	}
	return strings.TrimSuffix(file, ext), true
}

func (r *Repository) readText(file string) (string, error) {
	data, err := afero.ReadFile(r.fs, filepath.Join(r.dir, file))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read %s: content is not valid UTF-8", file)
	}
	return string(data), nil
}

// Package report renders a ClassResult for people and spreadsheets.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Mirai3103/remote-grader/internal/models"
)

// Renderer writes a whole class result to w.
type Renderer interface {
	Render(w io.Writer, results models.ClassResult) error
}

type RendererFunc func(w io.Writer, results models.ClassResult) error

func (f RendererFunc) Render(w io.Writer, results models.ClassResult) error {
	return f(w, results)
}

var renderers = map[string]Renderer{
	"table": RendererFunc(Table),
	"csv":   RendererFunc(CSV),
	"plain": RendererFunc(Plain),
}

// Get returns the renderer registered under name.
func Get(name string) (Renderer, error) {
	r, ok := renderers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown output %q (expected one of %s)", name, strings.Join(Names(), ", "))
	}
	return r, nil
}

func Names() []string {
	names := make([]string, 0, len(renderers))
	for name := range renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// summaryRow is the per-student row shared by the tabular renderers:
// name, passed, total, then one marker per case in column order.
func summaryRow(student string, res models.StudentResult, cases []string) []string {
	row := make([]string, 0, len(cases)+3)
	row = append(row, student, strconv.Itoa(res.Passed()), strconv.Itoa(len(cases)))
	for _, name := range cases {
		row = append(row, res[name].Marker())
	}
	return row
}

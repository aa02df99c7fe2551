package report

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Mirai3103/remote-grader/internal/models"
)

// Table draws a boxed grid: one row per student, one column per case.
//
//	+-----------+--------+-------+--------+
//	|           | Passed | Total | Case 1 |
//	+-----------+--------+-------+--------+
//	| Student B | 0      | 1     | F      |
//	+-----------+--------+-------+--------+
func Table(w io.Writer, results models.ClassResult) error {
	cases := results.CaseNames()
	rows := [][]string{append([]string{"", "Passed", "Total"}, cases...)}
	for _, student := range results.Students() {
		rows = append(rows, summaryRow(student, results[student], cases))
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sep strings.Builder
	sep.WriteByte('+')
	for _, width := range widths {
		sep.WriteString(strings.Repeat("-", width+2))
		sep.WriteByte('+')
	}
	sep.WriteByte('\n')

	bw := bufio.NewWriter(w)
	bw.WriteString(sep.String())
	for _, row := range rows {
		bw.WriteByte('|')
		for i, cell := range row {
			bw.WriteByte(' ')
			bw.WriteString(cell)
			bw.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+1))
			bw.WriteByte('|')
		}
		bw.WriteByte('\n')
		bw.WriteString(sep.String())
	}
	return bw.Flush()
}

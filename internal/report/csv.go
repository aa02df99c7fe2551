package report

import (
	"encoding/csv"
	"io"

	"github.com/Mirai3103/remote-grader/internal/models"
)

// CSV writes a header "Name,Passed,Total,<cases...>" and one record per
// student. Fields are quoted where CSV requires it, including the " "
// success marker.
func CSV(w io.Writer, results models.ClassResult) error {
	cases := results.CaseNames()
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Name", "Passed", "Total"}, cases...)); err != nil {
		return err
	}
	for _, student := range results.Students() {
		if err := cw.Write(summaryRow(student, results[student], cases)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

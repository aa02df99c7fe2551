package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/Mirai3103/remote-grader/internal/models"
)

// Plain lists every outcome on its own line, with the message when there is one.
func Plain(w io.Writer, results models.ClassResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, student := range results.Students() {
		res := results[student]
		names := make([]string, 0, len(res))
		for name := range res {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			o := res[name]
			if o.Message != "" {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", student, name, o.Status, o.Message)
			} else {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", student, name, o.Status)
			}
		}
		fmt.Fprintf(tw, "%s\tpassed %d/%d\t\n", student, res.Passed(), len(res))
	}
	return tw.Flush()
}

// Package report renders batch import results as terminal tables and XLSX
// workbooks.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/tcsync/internal/model"
)

// Summary counts batch results by outcome.
type Summary struct {
	Total    int
	Success  int
	Warnings int
	Failed   int
}

// Summarize tallies results by outcome.
func Summarize(results []model.RecordResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome() {
		case model.OutcomeSuccess:
			s.Success++
		case model.OutcomeWarnings:
			s.Warnings++
		default:
			s.Failed++
		}
	}
	return s
}

// WriteTable writes one row per record followed by failed items and a
// summary line.
func WriteTable(out io.Writer, results []model.RecordResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RECORD\tTRACKING\tOUTCOME\tKEY\tLINKED\tFAILED\tERROR")
	_, _ = fmt.Fprintln(w, "------\t--------\t-------\t---\t------\t------\t-----")

	for _, r := range results {
		linked, failed := itemCounts(r)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RecordID,
			r.Tracking,
			r.Outcome(),
			deref(r.Key),
			linked,
			failed,
			truncate(deref(r.Error), 60),
		)
	}
	_ = w.Flush()

	for _, r := range results {
		if r.Progress == nil || len(r.Progress.FailedItems) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s failures:\n", r.RecordID)
		for _, f := range r.Progress.FailedItems {
			_, _ = fmt.Fprintf(out, "  - %s: %s\n", f.Label, f.Error)
		}
		if v := r.Progress.Validation; v != nil && v.HasDrift() {
			_, _ = fmt.Fprintf(out, "  drift: %s\n", strings.Join(DriftLines(*v), "; "))
		}
	}

	s := Summarize(results)
	_, _ = fmt.Fprintf(out, "\n%d records: %d succeeded, %d with warnings, %d failed\n",
		s.Total, s.Success, s.Warnings, s.Failed)
}

// WriteProgress writes a one-line rendering of a progress snapshot.
func WriteProgress(out io.Writer, p model.ProgressState) {
	label := ""
	if p.CurrentIndex >= 0 && p.CurrentIndex < len(p.Steps) {
		label = p.Steps[p.CurrentIndex].Label
	}
	_, _ = fmt.Fprintf(out, "[%s] %3.0f%% %s %s\n", p.RecordID, p.Percent()*100, p.Phase, label)
}

// DriftLines describes every missing link and a folder mismatch.
func DriftLines(v model.ValidationResult) []string {
	var lines []string
	for _, c := range []struct {
		name string
		cv   model.CategoryValidation
	}{
		{"plans", v.Plans},
		{"executions", v.Executions},
		{"sets", v.Sets},
		{"preconditions", v.Preconditions},
	} {
		if len(c.cv.Missing) > 0 {
			lines = append(lines, fmt.Sprintf("missing %s %s", c.name, strings.Join(c.cv.Missing, ", ")))
		}
	}
	if !v.Folder.Valid {
		lines = append(lines, fmt.Sprintf("folder %q found %q", v.Folder.Expected, v.Folder.Found))
	}
	return lines
}

func itemCounts(r model.RecordResult) (linked, failed int) {
	if r.Progress == nil {
		return 0, 0
	}
	return len(r.Progress.LinkedItems), len(r.Progress.FailedItems)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

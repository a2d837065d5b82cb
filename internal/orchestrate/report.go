package orchestrate

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// WriteSummary prints the human-facing end-of-run summary.
func (rep *Report) WriteSummary(w io.Writer) {
	status := "completed"
	if rep.Canceled {
		status = "canceled"
	}
	fmt.Fprintf(w, "Generation %s in %s\n", status, rep.Duration.Round(time.Second))
	fmt.Fprintf(w, "  images:        %d of %d expected (%d on disk)\n", rep.Generated, rep.Expected, rep.Images)
	fmt.Fprintf(w, "  rendered:      %d (%d after substitution, %d from fallback words)\n",
		rep.Stats.Rendered, rep.Stats.Recovered, rep.Stats.Fallbacks)
	fmt.Fprintf(w, "  placeholders:  %d\n", rep.Stats.Placeholders)
	if n := rep.Stats.Failed + rep.Stats.SaveErrors; n > 0 {
		fmt.Fprintf(w, "  failed items:  %d (%d save errors)\n", n, rep.Stats.SaveErrors)
	}
	if rep.Stats.Skipped > 0 {
		fmt.Fprintf(w, "  skipped items: %d\n", rep.Stats.Skipped)
	}
	if len(rep.Rejected) > 0 {
		fmt.Fprintf(w, "  fonts rejected during sampling: %d (%d replacements)\n", len(rep.Rejected), len(rep.Replacements))
		for _, r := range rep.Rejected {
			fmt.Fprintf(w, "    %s: %s\n", r.Font.FileName(), r.Verdict.Reason)
		}
	}
	if len(rep.Shortfalls) > 0 {
		fmt.Fprintln(w, "  fonts with missing images:")
		for _, s := range rep.Shortfalls {
			fmt.Fprintf(w, "    %s: %d of %d\n", s.Font, s.Actual, s.Expected)
		}
	}
	if len(rep.FailedFonts) > 0 {
		fmt.Fprintf(w, "  failed fonts (%d): %s\n", len(rep.FailedFonts), strings.Join(rep.FailedFonts, ", "))
	}
	for _, c := range rep.Crashed {
		fmt.Fprintf(w, "  worker %d crashed: %s\n", c.Worker, c.Error)
		if c.LogTail != "" {
			for line := range strings.SplitSeq(c.LogTail, "\n") {
				fmt.Fprintf(w, "    | %s\n", line)
			}
		}
	}
	if len(rep.MissingResults) > 0 {
		fmt.Fprintf(w, "  workers without a result file: %v\n", rep.MissingResults)
	}
}

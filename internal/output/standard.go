package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/driftgate/driftgate/internal/models"
)

// StandardFormatter prints findings and correlations for humans
type StandardFormatter struct {
	Color bool
}

func (f *StandardFormatter) Format(report *models.Report, w io.Writer) error {
	fmt.Fprintf(w, "Drift analysis %s\n", report.RunID)
	if report.BaseRef != "" || report.HeadRef != "" {
		fmt.Fprintf(w, "Comparing %s...%s\n", report.BaseRef, report.HeadRef)
	}
	fmt.Fprintf(w, "\n")

	if len(report.Findings) == 0 {
		fmt.Fprintf(w, "No drift detected.\n")
		return nil
	}

	fmt.Fprintf(w, "Findings:\n")
	for i, finding := range report.Findings {
		fmt.Fprintf(w, "%d. %s [%s] %s\n", i+1, f.severityMark(finding.Severity), finding.Type, finding.File)
		for _, change := range finding.Changes {
			fmt.Fprintf(w, "     %s\n", change)
		}
		for _, reason := range finding.Reasoning {
			fmt.Fprintf(w, "     → %s\n", reason)
		}
		if finding.Correlation != nil {
			fmt.Fprintf(w, "     correlations: %d hard, %d soft, cascade %d\n",
				finding.Correlation.Hard, finding.Correlation.Soft, finding.Correlation.Cascade)
		}
	}
	fmt.Fprintf(w, "\n")

	if len(report.Correlations) > 0 {
		fmt.Fprintf(w, "Cross-layer correlations:\n")
		for _, corr := range report.Correlations {
			marker := ""
			if corr.UserDefined {
				marker = " (user rule)"
			}
			fmt.Fprintf(w, "- %s <-> %s  %.2f  %s%s\n",
				corr.SourceID, corr.TargetID, corr.FinalScore, corr.Relationship, marker)
			for _, ev := range corr.Evidence {
				loc := ""
				if ev.File != "" {
					loc = " [" + ev.File
					if ev.Line > 0 {
						loc += fmt.Sprintf(":%d", ev.Line)
					}
					loc += "]"
				}
				fmt.Fprintf(w, "    %s%s\n", ev.Reason, loc)
			}
		}
		fmt.Fprintf(w, "\n")
	}

	s := report.Summary
	fmt.Fprintf(w, "Summary: %d high, %d medium, %d low\n", s.High, s.Medium, s.Low)
	switch {
	case s.Blocked:
		fmt.Fprintf(w, "%s\n", f.colorize("Merge blocked by high-severity drift.", "\033[31m"))
	case s.OverrideApplied && report.Override != nil:
		fmt.Fprintf(w, "Merge allowed by override: %s\n", report.Override.Reason)
	default:
		fmt.Fprintf(w, "%s\n", f.colorize("Merge allowed.", "\033[32m"))
	}
	return nil
}

func (f *StandardFormatter) severityMark(severity models.Severity) string {
	mark := strings.ToUpper(string(severity))
	if !f.Color {
		return mark
	}
	switch severity {
	case models.SeverityHigh:
		return "\033[31m" + mark + "\033[0m"
	case models.SeverityMedium:
		return "\033[33m" + mark + "\033[0m"
	default:
		return "\033[36m" + mark + "\033[0m"
	}
}

func (f *StandardFormatter) colorize(s, code string) string {
	if !f.Color {
		return s
	}
	return code + s + "\033[0m"
}

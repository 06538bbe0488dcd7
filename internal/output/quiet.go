package output

import (
	"fmt"
	"io"

	"github.com/driftgate/driftgate/internal/models"
)

// QuietFormatter outputs a one-line summary, suitable for pre-commit hooks
type QuietFormatter struct{}

func (f *QuietFormatter) Format(report *models.Report, w io.Writer) error {
	s := report.Summary
	if s.Blocked {
		fmt.Fprintf(w, "✗ merge blocked: %d high, %d medium, %d low drift findings\n", s.High, s.Medium, s.Low)
		fmt.Fprintf(w, "Run 'driftgate check' for details\n")
		return nil
	}
	if s.OverrideApplied {
		fmt.Fprintf(w, "⚠ %d high findings overridden, merge allowed\n", s.High)
		return nil
	}
	if s.High+s.Medium+s.Low == 0 {
		fmt.Fprintf(w, "✓ no drift detected\n")
		return nil
	}
	fmt.Fprintf(w, "✓ merge allowed: %d medium, %d low drift findings\n", s.Medium, s.Low)
	return nil
}

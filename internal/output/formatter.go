// Package output renders analysis reports for terminals, hooks and machines.
package output

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/driftgate/driftgate/internal/models"
)

// Formatter renders a report to a writer
type Formatter interface {
	Format(report *models.Report, w io.Writer) error
}

// VerbosityLevel determines output detail
type VerbosityLevel int

const (
	VerbosityQuiet    VerbosityLevel = iota // one-line summary for hooks
	VerbosityStandard                       // findings + correlations
	VerbosityJSON                           // machine-readable report
)

// NewFormatter creates the formatter for a verbosity level
func NewFormatter(level VerbosityLevel) Formatter {
	switch level {
	case VerbosityQuiet:
		return &QuietFormatter{}
	case VerbosityJSON:
		return &JSONFormatter{}
	default:
		return &StandardFormatter{Color: isTerminal(os.Stdout)}
	}
}

// GetDefaultVerbosity picks a default based on the environment
func GetDefaultVerbosity() VerbosityLevel {
	// pre-commit hook context
	if os.Getenv("GIT_AUTHOR_DATE") != "" {
		return VerbosityQuiet
	}
	if os.Getenv("CI") == "true" {
		return VerbosityStandard
	}
	if !isTerminal(os.Stdout) {
		return VerbosityJSON
	}
	return VerbosityStandard
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

package models

import (
	"context"
	"time"
)

// Severity represents the risk severity of a drift finding
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank returns a numeric ordering for severity comparisons (low=0, high=2)
func (s Severity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	default:
		return 0
	}
}

// Upgraded returns the next severity level up; high stays high
func (s Severity) Upgraded() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// FindingType identifies the layer an analyzer operates on
type FindingType string

const (
	FindingTypeAPI            FindingType = "api"
	FindingTypeDatabase       FindingType = "database"
	FindingTypeInfrastructure FindingType = "infrastructure"
	FindingTypeConfiguration  FindingType = "configuration"
)

// FileStatus is the change status of a file in a change set
type FileStatus string

const (
	StatusAdded    FileStatus = "added"
	StatusModified FileStatus = "modified"
	StatusRemoved  FileStatus = "removed"
)

// ChangedFile is a single entry in a change set
type ChangedFile struct {
	Path   string     `json:"path"`
	Status FileStatus `json:"status"`
}

// ChangeSet is the delta between two revisions of a repository
type ChangeSet struct {
	BaseRef string        `json:"base_ref"`
	HeadRef string        `json:"head_ref"`
	Files   []ChangedFile `json:"files"`
}

// Find returns the changed file with the given path, if present
func (cs *ChangeSet) Find(path string) (ChangedFile, bool) {
	for _, f := range cs.Files {
		if f.Path == path {
			return f, true
		}
	}
	return ChangedFile{}, false
}

// ByStatus returns all changed files with the given status
func (cs *ChangeSet) ByStatus(status FileStatus) []ChangedFile {
	var out []ChangedFile
	for _, f := range cs.Files {
		if f.Status == status {
			out = append(out, f)
		}
	}
	return out
}

// RenameInfo records a detected file or table rename
type RenameInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Metadata carries optional per-type finding extensions
type Metadata struct {
	CostImpact     float64     `json:"costImpact,omitempty"`
	Renamed        *RenameInfo `json:"renamed,omitempty"`
	TablesAnalyzed int         `json:"tablesAnalyzed,omitempty"`
}

// DriftFinding is the uniform record produced by every analyzer.
// Findings are immutable after creation except for the severity
// reassessment stage, which may upgrade Severity and attach
// CorrelationImpact.
type DriftFinding struct {
	Type        FindingType        `json:"type"`
	File        string             `json:"file"`
	Severity    Severity           `json:"severity"`
	Changes     []string           `json:"changes"`
	Reasoning   []string           `json:"reasoning,omitempty"`
	Entities    []string           `json:"entities,omitempty"`
	Endpoints   []string           `json:"endpoints,omitempty"`
	Metadata    *Metadata          `json:"metadata,omitempty"`
	ArtifactID  string             `json:"artifactId,omitempty"`
	Correlation *CorrelationImpact `json:"correlationImpact,omitempty"`
}

// EvidenceItem backs a correlation with a human-readable reason and an
// optional file location
type EvidenceItem struct {
	Reason string `json:"reason"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// Correlation is a discovered cross-layer relationship between two findings,
// addressed by artifact ID
type Correlation struct {
	SourceID     string             `json:"source_id"`
	TargetID     string             `json:"target_id"`
	Relationship string             `json:"relationship"`
	Scores       map[string]float64 `json:"scores"`
	Weights      map[string]float64 `json:"weights"`
	FinalScore   float64            `json:"finalScore"`
	Evidence     []EvidenceItem     `json:"evidence,omitempty"`
	UserDefined  bool               `json:"userDefined"`
}

// CorrelationImpact summarizes how correlations affected a finding during
// severity reassessment
type CorrelationImpact struct {
	Hard         int      `json:"hard"`
	Soft         int      `json:"soft"`
	Cascade      int      `json:"cascade"`
	Correlations []string `json:"correlations,omitempty"`
}

// Override records a manual severity override applied to a scoring result
type Override struct {
	Applied          bool      `json:"applied"`
	Reason           string    `json:"reason"`
	OriginalSeverity Severity  `json:"originalSeverity"`
	Timestamp        time.Time `json:"timestamp"`
}

// Summary aggregates finding counts and the merge gate decision
type Summary struct {
	High            int  `json:"high"`
	Medium          int  `json:"medium"`
	Low             int  `json:"low"`
	Blocked         bool `json:"blocked"`
	OverrideApplied bool `json:"overrideApplied"`
}

// Report is the final typed output of the drift analysis pipeline.
// Correlations reference findings by artifact ID rather than embedding
// them, so the structure stays acyclic.
type Report struct {
	RunID        string         `json:"run_id"`
	GeneratedAt  time.Time      `json:"generated_at"`
	BaseRef      string         `json:"base_ref"`
	HeadRef      string         `json:"head_ref"`
	Findings     []DriftFinding `json:"findings"`
	Correlations []Correlation  `json:"correlations"`
	Summary      Summary        `json:"summary"`
	Override     *Override      `json:"override,omitempty"`
}

// ContentFetcher retrieves file content at a given revision.
// A nil byte slice with a nil error means the file does not exist at that
// revision; that is a domain signal, not an error.
type ContentFetcher interface {
	Fetch(ctx context.Context, path, ref string) ([]byte, error)
}

package iac

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

// hclChecks is the regex-only fallback for raw .tf files when no plan JSON
// is available. Each hit becomes one change indicator.
var hclChecks = []struct {
	re    *regexp.Regexp
	token string
}{
	{regexp.MustCompile(`(?i)cidr_blocks\s*=\s*\[[^\]]*"0\.0\.0\.0/0"`), "OPEN_CIDR: cidr_blocks includes 0.0.0.0/0"},
	{regexp.MustCompile(`(?i)instance_type\s*=\s*"[^"]*(\d*x+large|metal)[^"]*"`), "LARGE_INSTANCE_TYPE: %s"},
	{regexp.MustCompile(`(?i)deletion_protection\s*=\s*false`), "DELETION_PROTECTION_DISABLED: deletion_protection = false"},
	{regexp.MustCompile(`(?i)encrypted\s*=\s*false`), "ENCRYPTION_DISABLED: encryption set to false"},
	{regexp.MustCompile(`(?i)publicly_accessible\s*=\s*true`), "PUBLIC_ACCESS: publicly_accessible set to true"},
	{regexp.MustCompile(`(?i)skip_final_snapshot\s*=\s*true`), "SKIP_FINAL_SNAPSHOT: skip_final_snapshot = true"},
}

var reResourceBlock = regexp.MustCompile(`(?m)^\s*resource\s+"([^"]+)"\s+"([^"]+)"`)

// analyzeHCL runs the regex fallback over a changed .tf file at head
func analyzeHCL(ctx context.Context, ac *analyzers.Context, path string) *models.DriftFinding {
	raw, err := ac.FetchHead(ctx, path)
	if err != nil {
		ac.Logger.Warn("failed to fetch HCL file, skipping", "file", path, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	content := string(raw)

	var changes []string
	for _, check := range hclChecks {
		for _, m := range check.re.FindAllString(content, -1) {
			token := check.token
			if strings.Contains(token, "%s") {
				token = fmt.Sprintf(check.token, strings.TrimSpace(m))
			}
			changes = append(changes, token)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var entities []string
	for _, m := range reResourceBlock.FindAllStringSubmatch(content, -1) {
		entities = append(entities, fmt.Sprintf("%s.%s", m[1], m[2]))
	}

	result := risk.Score(changes, "infrastructure")
	return &models.DriftFinding{
		Type:      models.FindingTypeInfrastructure,
		File:      artifact.NormalizePath(path),
		Severity:  result.Severity,
		Changes:   changes,
		Reasoning: result.Reasoning,
		Entities:  entities,
	}
}

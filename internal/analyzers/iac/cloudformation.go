package iac

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

// cfTemplate is the subset of a CloudFormation template we consume,
// keyed by logical resource ID
type cfTemplate struct {
	Resources map[string]cfResource `json:"Resources" yaml:"Resources"`
}

type cfResource struct {
	Type           string         `json:"Type" yaml:"Type"`
	DeletionPolicy string         `json:"DeletionPolicy" yaml:"DeletionPolicy"`
	Properties     map[string]any `json:"Properties" yaml:"Properties"`
}

// analyzeCloudFormation diffs a CloudFormation template between revisions
func analyzeCloudFormation(ctx context.Context, ac *analyzers.Context, path string) *models.DriftFinding {
	headRaw, err := ac.FetchHead(ctx, path)
	if err != nil {
		ac.Logger.Warn("failed to fetch template at head", "file", path, "error", err)
		return nil
	}
	baseRaw, err := ac.FetchBase(ctx, path)
	if err != nil {
		ac.Logger.Warn("failed to fetch template at base", "file", path, "error", err)
		baseRaw = nil
	}
	if headRaw == nil && baseRaw == nil {
		return nil
	}

	headTpl := parseTemplate(ac, path, headRaw)
	baseTpl := parseTemplate(ac, path, baseRaw)

	var changes []string
	var entities []string
	costImpact := 0.0

	for _, id := range sortedResourceIDs(headTpl) {
		res := headTpl[id]
		entities = append(entities, id)

		baseRes, existed := baseTpl[id]
		if !existed {
			if isSecurityGroupType(res.Type) {
				changes = append(changes, fmt.Sprintf("SECURITY_GROUP_ADDITION: %s", id))
			} else {
				changes = append(changes, fmt.Sprintf("RESOURCE_ADDITION: %s", id))
			}
			costImpact += monthlyCost(res.Type)
			continue
		}

		if baseRes.Type != res.Type {
			changes = append(changes, fmt.Sprintf("RESOURCE_TYPE_CHANGE: %s: %s → %s", id, baseRes.Type, res.Type))
		}
		if baseRes.DeletionPolicy != res.DeletionPolicy {
			changes = append(changes, fmt.Sprintf("DELETION_POLICY_CHANGE: %s: DeletionPolicy %s → %s",
				id, orDefault(baseRes.DeletionPolicy), orDefault(res.DeletionPolicy)))
		}

		props := CompareProperties(id, baseRes.Properties, res.Properties)
		securityTouched := false
		for _, pc := range props {
			changes = append(changes, pc.Token)
			if pc.Security {
				securityTouched = true
			}
		}
		if isSecurityGroupType(res.Type) && securityTouched {
			changes = append(changes, fmt.Sprintf("SECURITY_GROUP_CHANGE: %s", id))
		}
	}

	for _, id := range sortedResourceIDs(baseTpl) {
		if _, exists := headTpl[id]; !exists {
			entities = append(entities, id)
			if isSecurityGroupType(baseTpl[id].Type) {
				changes = append(changes, fmt.Sprintf("SECURITY_GROUP_DELETION: %s", id))
			} else {
				changes = append(changes, fmt.Sprintf("RESOURCE_DELETION: %s", id))
			}
		}
	}

	if costImpact > ac.Config.CostThreshold {
		changes = append(changes, fmt.Sprintf("COST_INCREASE: Estimated $%.0f/month", costImpact))
	}

	if len(changes) == 0 {
		return nil
	}
	result := risk.Score(changes, "infrastructure")
	finding := &models.DriftFinding{
		Type:      models.FindingTypeInfrastructure,
		File:      artifact.NormalizePath(path),
		Severity:  result.Severity,
		Changes:   changes,
		Reasoning: result.Reasoning,
		Entities:  entities,
	}
	if costImpact > 0 {
		finding.Metadata = &models.Metadata{CostImpact: costImpact}
	}
	return finding
}

// parseTemplate decodes a template as JSON or YAML; a parse failure yields
// no resources after a warning
func parseTemplate(ac *analyzers.Context, path string, raw []byte) map[string]cfResource {
	if raw == nil {
		return map[string]cfResource{}
	}
	var tpl cfTemplate
	trimmed := strings.TrimLeftFunc(string(raw), func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' })
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(raw, &tpl); err != nil {
			ac.Logger.Warn("failed to parse CloudFormation JSON", "file", path, "error", err)
			return map[string]cfResource{}
		}
	} else if err := yaml.Unmarshal(raw, &tpl); err != nil {
		ac.Logger.Warn("failed to parse CloudFormation YAML", "file", path, "error", err)
		return map[string]cfResource{}
	}
	if tpl.Resources == nil {
		return map[string]cfResource{}
	}
	return tpl.Resources
}

func orDefault(policy string) string {
	if policy == "" {
		return "(default)"
	}
	return policy
}

func sortedResourceIDs(m map[string]cfResource) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

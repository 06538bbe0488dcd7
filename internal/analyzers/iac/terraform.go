package iac

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

// tfPlan is the subset of the Terraform plan JSON format we consume
type tfPlan struct {
	ResourceChanges []tfResourceChange `json:"resource_changes"`
}

type tfResourceChange struct {
	Address string   `json:"address"`
	Type    string   `json:"type"`
	Change  tfChange `json:"change"`
}

type tfChange struct {
	Actions []string       `json:"actions"`
	Before  map[string]any `json:"before"`
	After   map[string]any `json:"after"`
}

// analyzeTerraformPlan diffs the base and head revisions of a Terraform
// plan JSON file. A missing base plan means every head resource is new.
func analyzeTerraformPlan(ctx context.Context, ac *analyzers.Context, path string) *models.DriftFinding {
	headRaw, err := ac.FetchHead(ctx, path)
	if err != nil {
		ac.Logger.Warn("failed to fetch terraform plan at head", "file", path, "error", err)
		return nil
	}
	if headRaw == nil {
		ac.Logger.Info("terraform plan absent at head", "file", path)
		return nil
	}
	baseRaw, err := ac.FetchBase(ctx, path)
	if err != nil {
		ac.Logger.Warn("failed to fetch terraform plan at base", "file", path, "error", err)
		baseRaw = nil
	}

	headPlan, err := parsePlan(headRaw)
	if err != nil {
		ac.Logger.Warn("failed to parse terraform plan, skipping", "file", path, "error", err)
		return nil
	}
	var basePlan *tfPlan
	if baseRaw != nil {
		if basePlan, err = parsePlan(baseRaw); err != nil {
			ac.Logger.Warn("failed to parse base terraform plan, treating as empty", "file", path, "error", err)
			basePlan = nil
		}
	}

	headRes := planResources(headPlan)
	baseRes := planResources(basePlan)

	var changes []string
	var entities []string
	costImpact := 0.0

	for _, addr := range sortedAddresses(headRes) {
		rc := headRes[addr]
		entities = append(entities, addr)

		if _, existed := baseRes[addr]; !existed {
			if isSecurityGroupType(rc.Type) {
				changes = append(changes, fmt.Sprintf("SECURITY_GROUP_ADDITION: %s", addr))
			} else {
				changes = append(changes, fmt.Sprintf("RESOURCE_ADDITION: %s", addr))
			}
			costImpact += monthlyCost(rc.Type)
			continue
		}

		if hasAction(rc.Change.Actions, "update", "modify") {
			props := CompareProperties(addr, rc.Change.Before, rc.Change.After)
			securityTouched := false
			for _, pc := range props {
				changes = append(changes, pc.Token)
				if pc.Security {
					securityTouched = true
				}
			}
			if isSecurityGroupType(rc.Type) && (securityTouched || len(props) > 0) {
				changes = append(changes, fmt.Sprintf("SECURITY_GROUP_CHANGE: %s", addr))
			}
		}
		if hasAction(rc.Change.Actions, "create") {
			costImpact += monthlyCost(rc.Type)
		}
	}

	for _, addr := range sortedAddresses(baseRes) {
		if _, exists := headRes[addr]; !exists {
			entities = append(entities, addr)
			if isSecurityGroupType(baseRes[addr].Type) {
				changes = append(changes, fmt.Sprintf("SECURITY_GROUP_DELETION: %s", addr))
			} else {
				changes = append(changes, fmt.Sprintf("RESOURCE_DELETION: %s", addr))
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

func parsePlan(raw []byte) (*tfPlan, error) {
	var plan tfPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func planResources(plan *tfPlan) map[string]tfResourceChange {
	out := map[string]tfResourceChange{}
	if plan == nil {
		return out
	}
	for _, rc := range plan.ResourceChanges {
		// no-op entries carry no drift
		if len(rc.Change.Actions) == 1 && rc.Change.Actions[0] == "no-op" {
			continue
		}
		out[rc.Address] = rc
	}
	return out
}

func hasAction(actions []string, wanted ...string) bool {
	for _, a := range actions {
		for _, w := range wanted {
			if a == w {
				return true
			}
		}
	}
	return false
}

func isSecurityGroupType(resourceType string) bool {
	return strings.Contains(strings.ToLower(resourceType), "security_group") ||
		strings.Contains(strings.ToLower(resourceType), "securitygroup")
}

func sortedAddresses(m map[string]tfResourceChange) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package correlation

import (
	"fmt"
	"path"
	"strings"

	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
)

// infraStrategy relates infrastructure resources to the API and
// configuration layers
type infraStrategy struct {
	meta
}

// apiInfraKeywords mark a resource address as API-serving infrastructure
var apiInfraKeywords = []string{"api", "gateway", "function", "lambda", "endpoint", "service"}

func (s *infraStrategy) Evaluate(pair Pair) []Signal {
	infra, ok := pair.side(models.FindingTypeInfrastructure)
	if !ok {
		return nil
	}
	address := strings.ToLower(primaryEntity(infra))
	if address == "" {
		return nil
	}
	other := pair.Source
	if other == infra {
		other = pair.Target
	}

	switch other.Type {
	case models.FindingTypeAPI:
		for _, kw := range apiInfraKeywords {
			if strings.Contains(address, kw) {
				return []Signal{{
					Relationship: "infra_hosts_api",
					Confidence:   0.75,
					Evidence: []models.EvidenceItem{{
						Reason: fmt.Sprintf("resource %s contains API infrastructure keyword %q", address, kw),
						File:   infra.File,
					}},
				}}
			}
		}
	case models.FindingTypeConfiguration:
		configName := strings.TrimSuffix(path.Base(other.File), path.Ext(other.File))
		if matched, score := artifact.NamesMatch(resourceName(address), configName); matched {
			return []Signal{{
				Relationship: "infra_affects_config",
				Confidence:   score * 0.8,
				Evidence: []models.EvidenceItem{{
					Reason: fmt.Sprintf("resource %s shares its name with configuration %s", address, other.File),
					File:   other.File,
				}},
			}}
		}
	case models.FindingTypeDatabase:
		table := primaryEntity(other)
		if matched, score := artifact.NamesMatch(resourceName(address), table); matched {
			return []Signal{{
				Relationship: "resource_dependency",
				Confidence:   score * 0.8,
				Evidence: []models.EvidenceItem{{
					Reason: fmt.Sprintf("resource %s shares its name with table %s", address, table),
					File:   infra.File,
				}},
			}}
		}
	}
	return nil
}

// resourceName extracts the instance name from a Terraform-style address
func resourceName(address string) string {
	if idx := strings.LastIndex(address, "."); idx >= 0 {
		return address[idx+1:]
	}
	return address
}

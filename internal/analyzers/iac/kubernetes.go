package iac

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

// k8sManifest is the subset of a Kubernetes manifest we inspect
type k8sManifest struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Spec k8sSpec `yaml:"spec"`
}

type k8sSpec struct {
	Type     string `yaml:"type"`
	Replicas *int   `yaml:"replicas"`
	Template struct {
		Spec k8sPodSpec `yaml:"spec"`
	} `yaml:"template"`
	// direct pod spec fields, for Kind: Pod
	k8sPodSpec `yaml:",inline"`
}

type k8sPodSpec struct {
	HostNetwork bool           `yaml:"hostNetwork"`
	Containers  []k8sContainer `yaml:"containers"`
}

type k8sContainer struct {
	Name            string         `yaml:"name"`
	Resources       map[string]any `yaml:"resources"`
	SecurityContext struct {
		Privileged bool `yaml:"privileged"`
	} `yaml:"securityContext"`
}

// analyzeKubernetes runs manifest checks over a changed YAML file at head.
// Returns nil when the file is not a Kubernetes manifest.
func analyzeKubernetes(ctx context.Context, ac *analyzers.Context, path string) *models.DriftFinding {
	raw, err := ac.FetchHead(ctx, path)
	if err != nil {
		ac.Logger.Warn("failed to fetch manifest, skipping", "file", path, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}

	var changes []string
	var entities []string

	for _, doc := range strings.Split(string(raw), "\n---") {
		var manifest k8sManifest
		if err := yaml.Unmarshal([]byte(doc), &manifest); err != nil {
			ac.Logger.Warn("failed to parse manifest document, skipping", "file", path, "error", err)
			continue
		}
		if manifest.Kind == "" || manifest.APIVersion == "" {
			continue
		}
		name := manifest.Metadata.Name
		entities = append(entities, fmt.Sprintf("%s/%s", strings.ToLower(manifest.Kind), name))

		if manifest.Kind == "Service" && manifest.Spec.Type == "LoadBalancer" {
			changes = append(changes, fmt.Sprintf("PUBLIC_SERVICE: %s exposes type LoadBalancer", name))
		}
		if manifest.Spec.Replicas != nil && *manifest.Spec.Replicas == 0 {
			changes = append(changes, fmt.Sprintf("ZERO_REPLICAS: %s scaled to 0 replicas", name))
		}

		podSpec := manifest.Spec.Template.Spec
		if len(podSpec.Containers) == 0 {
			podSpec = manifest.Spec.k8sPodSpec
		}
		if podSpec.HostNetwork {
			changes = append(changes, fmt.Sprintf("HOST_NETWORK: %s uses hostNetwork", name))
		}
		for _, c := range podSpec.Containers {
			if len(c.Resources) == 0 {
				changes = append(changes, fmt.Sprintf("NO_RESOURCE_LIMITS: container %s in %s", c.Name, name))
			}
			if c.SecurityContext.Privileged {
				changes = append(changes, fmt.Sprintf("PRIVILEGED_CONTAINER: container %s in %s", c.Name, name))
			}
		}
	}

	if len(changes) == 0 {
		return nil
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

package artifact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/driftgate/driftgate/internal/models"
)

var slashRuns = regexp.MustCompile(`/{2,}`)

// NormalizePath converts a path to canonical posix form: backslashes become
// forward slashes, runs of slashes collapse, trailing slashes and leading
// "./" are stripped. Idempotent.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = slashRuns.ReplaceAllString(p, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimSuffix(p, "/")
	return p
}

// EndpointID builds the canonical artifact ID for an API endpoint given a
// "METHOD:path" token or separate method and path.
func EndpointID(method, path string) string {
	return fmt.Sprintf("api:%s:%s", strings.ToUpper(method), strings.ToLower(path))
}

// TableID builds the canonical artifact ID for a database table
func TableID(table string) string {
	return "db:table:" + strings.ToLower(table)
}

// ResourceID builds the canonical artifact ID for an IaC resource address
func ResourceID(resourceType, address string) string {
	return fmt.Sprintf("iac:%s:%s", strings.ToLower(resourceType), strings.ToLower(address))
}

// ConfigID builds the canonical artifact ID for a configuration file
func ConfigID(path string) string {
	return "config:" + NormalizePath(path)
}

// ID derives the canonical artifact ID for a finding. Findings must be
// expanded (at most one endpoint / one entity) before calling this.
func ID(f *models.DriftFinding) string {
	switch f.Type {
	case models.FindingTypeAPI:
		if len(f.Endpoints) > 0 {
			method, path, ok := splitEndpoint(f.Endpoints[0])
			if ok {
				return EndpointID(method, path)
			}
		}
	case models.FindingTypeDatabase:
		if len(f.Entities) > 0 {
			return TableID(f.Entities[0])
		}
	case models.FindingTypeInfrastructure:
		if len(f.Entities) > 0 {
			return ResourceID(resourceTypeOf(f.Entities[0]), f.Entities[0])
		}
	case models.FindingTypeConfiguration:
		return ConfigID(f.File)
	}
	if f.File != "" {
		return "file:" + NormalizePath(f.File)
	}
	return string(f.Type) + ":unknown"
}

// splitEndpoint parses a "METHOD:path" endpoint token
func splitEndpoint(ep string) (method, path string, ok bool) {
	idx := strings.Index(ep, ":")
	if idx <= 0 || idx == len(ep)-1 {
		return "", "", false
	}
	return ep[:idx], ep[idx+1:], true
}

// resourceTypeOf extracts the resource type from a Terraform-style address
// such as "aws_security_group.web" or a module-qualified variant.
func resourceTypeOf(address string) string {
	addr := address
	if idx := strings.LastIndex(addr, "module."); idx >= 0 {
		rest := addr[idx+len("module."):]
		if dot := strings.Index(rest, "."); dot >= 0 {
			addr = rest[dot+1:]
		}
	}
	if dot := strings.Index(addr, "."); dot >= 0 {
		return addr[:dot]
	}
	return addr
}

// Expand splits multi-endpoint and multi-entity findings into atomic
// findings so each correlation references exactly one endpoint or table,
// then assigns artifact IDs. Every endpoint/entity of the input appears in
// exactly one output finding.
func Expand(findings []models.DriftFinding) []models.DriftFinding {
	var out []models.DriftFinding
	for _, f := range findings {
		switch {
		case len(f.Endpoints) > 1:
			for _, ep := range f.Endpoints {
				atomic := f
				atomic.Endpoints = []string{ep}
				atomic.ArtifactID = ID(&atomic)
				out = append(out, atomic)
			}
		case len(f.Entities) > 1:
			for _, ent := range f.Entities {
				atomic := f
				atomic.Entities = []string{ent}
				atomic.ArtifactID = ID(&atomic)
				out = append(out, atomic)
			}
		default:
			f.ArtifactID = ID(&f)
			out = append(out, f)
		}
	}
	return out
}

// PairKey returns the canonical undirected key for two artifact IDs
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "::" + b
}

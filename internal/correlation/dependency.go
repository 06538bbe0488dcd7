package correlation

import (
	"fmt"
	"strings"

	"github.com/driftgate/driftgate/internal/models"
)

// dependencyStrategy relates package dependency changes to the API and
// database layers through layer keyword sets
type dependencyStrategy struct {
	meta
}

var webFrameworks = []string{
	"express", "fastify", "koa", "hapi", "nest",
	"flask", "fastapi", "django",
	"gin", "echo", "fiber", "chi",
	"spring", "ktor",
}

var dbPackages = []string{
	"pg", "mysql", "mysql2", "sqlite3", "mssql", "oracledb",
	"mongoose", "mongodb", "redis",
	"prisma", "sequelize", "knex", "typeorm", "objection",
	"sqlalchemy", "psycopg2", "pymysql",
	"gorm", "sqlx",
	"hibernate", "jooq",
}

// dependencyTokenPrefixes are the change tokens that name a package
var dependencyTokenPrefixes = []string{
	"DEPENDENCY_ADDED:", "DEPENDENCY_REMOVED:",
	"MAJOR_VERSION_BUMP:", "MINOR_VERSION_BUMP:",
	"TRANSITIVE_MAJOR_BUMP:",
}

func (s *dependencyStrategy) Evaluate(pair Pair) []Signal {
	cfg, ok := pair.side(models.FindingTypeConfiguration)
	if !ok {
		return nil
	}
	other := pair.Source
	if other == cfg {
		other = pair.Target
	}

	var keywords []string
	var relationship string
	switch other.Type {
	case models.FindingTypeAPI:
		keywords, relationship = webFrameworks, "dependency_affects_api"
	case models.FindingTypeDatabase:
		keywords, relationship = dbPackages, "dependency_affects_db"
	default:
		return nil
	}

	for _, pkg := range changedPackages(cfg) {
		for _, kw := range keywords {
			if pkg == kw || strings.HasPrefix(pkg, kw+"-") || strings.HasPrefix(pkg, "@"+kw) {
				return []Signal{{
					Relationship: relationship,
					Confidence:   0.7,
					Evidence: []models.EvidenceItem{{
						Reason: fmt.Sprintf("dependency change to %s touches the %s layer", pkg, other.Type),
						File:   cfg.File,
					}},
				}}
			}
		}
	}
	return nil
}

// changedPackages extracts package names from dependency change tokens
func changedPackages(cfg *models.DriftFinding) []string {
	var out []string
	for _, change := range cfg.Changes {
		for _, prefix := range dependencyTokenPrefixes {
			if !strings.HasPrefix(change, prefix) {
				continue
			}
			rest := strings.TrimSpace(strings.TrimPrefix(change, prefix))
			// tokens look like "name@version" or "name from a -> b"
			if idx := strings.IndexAny(rest, "@ "); idx > 0 && !strings.HasPrefix(rest, "@") {
				rest = rest[:idx]
			} else if strings.HasPrefix(rest, "@") {
				// scoped package: keep the scope, cut at the version separator
				if idx := strings.LastIndex(rest, "@"); idx > 0 {
					rest = rest[:idx]
				}
				if idx := strings.Index(rest, " "); idx > 0 {
					rest = rest[:idx]
				}
			}
			out = append(out, strings.ToLower(rest))
		}
	}
	return out
}

// Package correlation discovers cross-layer relationships between drift
// findings. Strategies score candidate finding pairs independently; the
// engine selects candidates under a budget, aggregates the signals with
// weighted scoring, and applies user-defined rules.
package correlation

import (
	"strings"

	"github.com/driftgate/driftgate/internal/analyzers/codescan"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

// Signal is one strategy's assessment of a candidate pair
type Signal struct {
	Relationship string
	Confidence   float64
	Evidence     []models.EvidenceItem
}

// Pair is an unordered candidate pair of atomic findings
type Pair struct {
	Source *models.DriftFinding
	Target *models.DriftFinding
}

// Key returns the canonical undirected pair key
func (p Pair) Key() string {
	return artifact.PairKey(p.Source.ArtifactID, p.Target.ArtifactID)
}

// side returns the pair member with the given type, if present
func (p Pair) side(t models.FindingType) (*models.DriftFinding, bool) {
	if p.Source.Type == t {
		return p.Source, true
	}
	if p.Target.Type == t {
		return p.Target, true
	}
	return nil, false
}

// Strategy scores candidate pairs for one relationship class
type Strategy interface {
	Name() string

	// Budget declares evaluation cost: low runs on the full cross-product,
	// medium and high only on selected candidates
	Budget() string

	// Weight is the strategy's share in weighted aggregation
	Weight() float64

	// Evaluate returns zero or more signals for a pair
	Evaluate(pair Pair) []Signal
}

// meta carries the resolved name, budget and weight of a strategy
type meta struct {
	name   string
	budget string
	weight float64
}

func (m meta) Name() string    { return m.name }
func (m meta) Budget() string  { return m.budget }
func (m meta) Weight() float64 { return m.weight }

type strategyDefault struct {
	enabled bool
	budget  string
	weight  float64
}

var strategyDefaults = map[string]strategyDefault{
	"entity":         {enabled: true, budget: "low", weight: 1.0},
	"operation":      {enabled: true, budget: "low", weight: 0.5},
	"infrastructure": {enabled: true, budget: "low", weight: 0.8},
	"dependency":     {enabled: true, budget: "low", weight: 0.6},
	"temporal":       {enabled: false, budget: "low", weight: 0.2},
	"code":           {enabled: true, budget: "high", weight: 1.0},
}

// resolveMeta layers configuration over a strategy's defaults; the second
// return reports whether the strategy is enabled
func resolveMeta(name string, cfg config.CorrelationConfig) (meta, bool) {
	def := strategyDefaults[name]
	m := meta{name: name, budget: def.budget, weight: def.weight}
	sc, ok := cfg.Strategies[name]
	if !ok {
		return m, def.enabled
	}
	if sc.Budget != "" {
		m.budget = sc.Budget
	}
	if sc.Weight > 0 {
		m.weight = sc.Weight
	}
	return m, sc.IsEnabled(def.enabled)
}

// NewStrategies builds the enabled strategy set. The code strategy needs the
// code analyzer's extraction result; a nil analysis disables it.
func NewStrategies(cfg config.CorrelationConfig, analysis *codescan.Analysis) []Strategy {
	var out []Strategy
	add := func(name string, build func(meta) Strategy) {
		if m, enabled := resolveMeta(name, cfg); enabled {
			out = append(out, build(m))
		}
	}
	add("entity", func(m meta) Strategy { return &entityStrategy{meta: m} })
	add("operation", func(m meta) Strategy { return &operationStrategy{meta: m} })
	add("infrastructure", func(m meta) Strategy { return &infraStrategy{meta: m} })
	add("dependency", func(m meta) Strategy { return &dependencyStrategy{meta: m} })
	add("temporal", func(m meta) Strategy { return &temporalStrategy{meta: m} })
	if analysis != nil {
		add("code", func(m meta) Strategy { return &codeStrategy{meta: m, analysis: analysis} })
	}
	return out
}

// primaryEntity returns the single entity of an expanded finding, or ""
func primaryEntity(f *models.DriftFinding) string {
	if len(f.Entities) > 0 {
		return f.Entities[0]
	}
	return ""
}

// primaryEndpoint returns the single endpoint of an expanded finding as
// (method, path), or ok=false
func primaryEndpoint(f *models.DriftFinding) (method, path string, ok bool) {
	if len(f.Endpoints) == 0 {
		return "", "", false
	}
	idx := strings.Index(f.Endpoints[0], ":")
	if idx <= 0 || idx == len(f.Endpoints[0])-1 {
		return "", "", false
	}
	return strings.ToUpper(f.Endpoints[0][:idx]), f.Endpoints[0][idx+1:], true
}

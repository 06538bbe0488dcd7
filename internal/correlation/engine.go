package correlation

import (
	"log/slog"
	"sort"

	"github.com/driftgate/driftgate/internal/analyzers/codescan"
	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

// Engine runs the strategies over expanded findings and aggregates their
// signals into correlations
type Engine struct {
	cfg        config.CorrelationConfig
	strategies []Strategy
	logger     *slog.Logger
}

// NewEngine creates a correlation engine. The code analysis may be nil, in
// which case the code strategy is skipped.
func NewEngine(cfg config.CorrelationConfig, analysis *codescan.Analysis, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		strategies: NewStrategies(cfg, analysis),
		logger:     logger.With("component", "correlation"),
	}
}

// Correlate discovers cross-layer relationships between the findings.
// Findings must already be expanded and carry artifact IDs.
func (e *Engine) Correlate(findings []models.DriftFinding) []models.Correlation {
	refs := make([]*models.DriftFinding, len(findings))
	for i := range findings {
		refs[i] = &findings[i]
	}

	rules := applyRules(e.cfg.Rules, refs, e.logger)
	collected := map[string]*pairSignals{}

	// low-budget strategies see the full cross-layer product
	allPairs := e.crossLayerPairs(refs, rules.ignored)
	for _, strategy := range e.strategies {
		if strategy.Budget() != "low" {
			continue
		}
		for _, pair := range allPairs {
			e.evaluate(strategy, pair, collected)
		}
	}

	// expensive strategies only see the selected candidates
	candidates := e.selectCandidates(allPairs, collected, rules)
	for _, strategy := range e.strategies {
		if strategy.Budget() == "low" {
			continue
		}
		for _, pair := range candidates {
			e.evaluate(strategy, pair, collected)
		}
	}

	// attach explicit rules, creating pair entries where no strategy fired
	for _, pair := range rules.explicitPairs {
		key := pair.Key()
		ps, ok := collected[key]
		if !ok {
			ps = newPairSignals(pair)
			collected[key] = ps
		}
		rule := rules.explicit[key]
		ps.userRule = &rule
	}

	var out []models.Correlation
	for _, ps := range collected {
		corr := ps.aggregate()
		if corr.UserDefined || corr.FinalScore >= e.cfg.Thresholds.CorrelateMin {
			out = append(out, corr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// evaluate runs one strategy over one pair, absorbing panics so a broken
// strategy yields zero signals instead of aborting the run
func (e *Engine) evaluate(strategy Strategy, pair Pair, collected map[string]*pairSignals) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("correlation strategy panicked, skipping pair",
				"strategy", strategy.Name(), "pair", pair.Key(), "panic", r)
		}
	}()

	signals := strategy.Evaluate(pair)
	if len(signals) == 0 {
		return
	}
	key := pair.Key()
	ps, ok := collected[key]
	if !ok {
		ps = newPairSignals(pair)
		collected[key] = ps
	}
	ps.add(strategy, signals)
}

// crossLayerPairs builds every unordered pair of findings from different
// layers, skipping ignored pairs
func (e *Engine) crossLayerPairs(refs []*models.DriftFinding, ignored map[string]bool) []Pair {
	var out []Pair
	seen := map[string]bool{}
	for i := 0; i < len(refs); i++ {
		for j := i + 1; j < len(refs); j++ {
			if refs[i].Type == refs[j].Type {
				continue
			}
			pair := Pair{Source: refs[i], Target: refs[j]}
			key := pair.Key()
			if seen[key] || ignored[key] {
				continue
			}
			seen[key] = true
			out = append(out, pair)
		}
	}
	return out
}

// selectCandidates picks the pairs expensive strategies will evaluate: per
// source, the top-K pairs whose provisional score clears correlate_min,
// capped globally; explicit rule pairs are always candidates.
func (e *Engine) selectCandidates(allPairs []Pair, collected map[string]*pairSignals, rules ruleOutcome) []Pair {
	topK := e.cfg.Limits.TopKPerSource
	if topK < 1 {
		topK = 3
	}
	maxPairs := e.cfg.Limits.MaxPairsHighCost
	if maxPairs < 1 {
		maxPairs = 100
	}

	type scored struct {
		pair  Pair
		score float64
	}
	bySource := map[string][]scored{}
	for _, pair := range allPairs {
		ps, ok := collected[pair.Key()]
		if !ok {
			continue
		}
		provisional := ps.aggregate().FinalScore
		if provisional < e.cfg.Thresholds.CorrelateMin {
			continue
		}
		bySource[pair.Source.ArtifactID] = append(bySource[pair.Source.ArtifactID], scored{pair, provisional})
	}

	sources := make([]string, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var out []Pair
	seen := map[string]bool{}
	for _, src := range sources {
		group := bySource[src]
		sort.Slice(group, func(i, j int) bool { return group[i].score > group[j].score })
		for i, sc := range group {
			if i == topK || len(out) == maxPairs {
				break
			}
			key := sc.pair.Key()
			if !seen[key] {
				seen[key] = true
				out = append(out, sc.pair)
			}
		}
	}

	for _, pair := range rules.explicitPairs {
		if key := pair.Key(); !seen[key] {
			seen[key] = true
			out = append(out, pair)
		}
	}
	return out
}

package codescan

// TableAccess links an API handler to a database table it can reach through
// the call graph
type TableAccess struct {
	Handler    Handler `json:"handler"`
	Table      string  `json:"table"`
	Op         string  `json:"op"`
	Confidence float64 `json:"confidence"`
	Inferred   bool    `json:"inferred"`
	File       string  `json:"file"`
	Line       int     `json:"line"`
}

// depthConfidence is the base confidence at each call-graph depth: a DB call
// directly in the handler body, one hop away, two hops away
var depthConfidence = [3]float64{0.90, 0.80, 0.70}

// inferredPenalty is subtracted when the table name came from an ORM idiom
// rather than literal SQL
const inferredPenalty = 0.05

// HandlerTables walks the call graph from each handler, up to two hops, and
// reports every table the handler can reach. Duplicates keep the highest
// confidence.
func (a *Analysis) HandlerTables() []TableAccess {
	refsBySymbol := map[string][]DBRef{}
	edges := map[string][]string{}
	for _, fa := range a.Files {
		for _, ref := range fa.DBRefs {
			refsBySymbol[ref.Symbol] = append(refsBySymbol[ref.Symbol], ref)
		}
		for _, call := range fa.Calls {
			if call.Caller != call.Callee {
				edges[call.Caller] = append(edges[call.Caller], call.Callee)
			}
		}
	}

	var out []TableAccess
	for _, handler := range a.AllHandlers() {
		seen := map[string]bool{}
		found := map[string]bool{}
		frontier := []string{handler.Symbol}

		for depth := 0; depth < len(depthConfidence) && len(frontier) > 0; depth++ {
			var next []string
			for _, symbol := range frontier {
				if seen[symbol] {
					continue
				}
				seen[symbol] = true
				for _, ref := range refsBySymbol[symbol] {
					key := ref.Table + "|" + ref.Op
					if found[key] {
						continue
					}
					found[key] = true
					confidence := depthConfidence[depth]
					if ref.Inferred {
						confidence -= inferredPenalty
					}
					out = append(out, TableAccess{
						Handler:    handler,
						Table:      ref.Table,
						Op:         ref.Op,
						Confidence: confidence,
						Inferred:   ref.Inferred,
						File:       ref.File,
						Line:       ref.Line,
					})
				}
				next = append(next, edges[symbol]...)
			}
			frontier = next
		}
	}
	return out
}

package codescan

// Handler is an API handler detected in source code
type Handler struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	File   string `json:"file"`
	Symbol string `json:"symbol"`
	Line   int    `json:"line"`
}

// DBRef is a database call site detected in source code. Inferred reports
// whether the table name came from an ORM idiom rather than literal SQL.
type DBRef struct {
	ORM      string `json:"orm"`
	Table    string `json:"table"`
	Op       string `json:"op"`
	File     string `json:"file"`
	Symbol   string `json:"symbol"`
	Line     int    `json:"line"`
	Inferred bool   `json:"inferred"`
}

// Call is an intra- or cross-file call edge
type Call struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	Line   int    `json:"line"`
}

// Import records an imported module and the local name it binds to
type Import struct {
	LocalName string `json:"local_name"`
	Source    string `json:"source"`
}

// FileAnalysis is everything extracted from one source file
type FileAnalysis struct {
	File     string    `json:"file"`
	Language string    `json:"language"`
	Handlers []Handler `json:"handlers"`
	DBRefs   []DBRef   `json:"db_refs"`
	Calls    []Call    `json:"calls"`
	Imports  []Import  `json:"imports"`
}

// Analysis aggregates per-file results for a change set and powers the
// code correlation strategy
type Analysis struct {
	Files map[string]*FileAnalysis
}

// NewAnalysis creates an empty analysis
func NewAnalysis() *Analysis {
	return &Analysis{Files: map[string]*FileAnalysis{}}
}

// Handlers returns all detected handlers across files
func (a *Analysis) AllHandlers() []Handler {
	var out []Handler
	for _, fa := range a.Files {
		out = append(out, fa.Handlers...)
	}
	return out
}

// AllDBRefs returns all detected database call sites across files
func (a *Analysis) AllDBRefs() []DBRef {
	var out []DBRef
	for _, fa := range a.Files {
		out = append(out, fa.DBRefs...)
	}
	return out
}

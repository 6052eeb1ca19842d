package model

// SearchResult is one entity returned by semantic search.
type SearchResult struct {
	Entity EntityRef `json:"entity"`
	// Score is nil when the backend sent none; 1.0 is the neutral default.
	Score  *float64          `json:"score,omitempty"`
	Fields map[string]string `json:"fields"`
}

// Interpretation is how a natural-language question was understood.
type Interpretation struct {
	Kind     EntityKind `json:"kind"`
	Intent   string     `json:"intent,omitempty"`
	Entities []string   `json:"entities,omitempty"`
	Filters  []Filter   `json:"filters,omitempty"`
	// Matched lists the keywords that drove the decision.
	Matched []string `json:"matched,omitempty"`
	// Source is "backend", "keywords" or "llm".
	Source string `json:"source"`
}

// Comparison operators a Filter may carry.
const (
	OpLessEqual    = "<="
	OpGreaterEqual = ">="
	OpBetween      = "between"
)

// Filter restricts a numeric property, e.g. calories <= 150.
type Filter struct {
	Property string  `json:"property"`
	Modifier string  `json:"modifier"`
	Op       string  `json:"op"`
	Value    float64 `json:"value"`
	Upper    float64 `json:"upper,omitempty"`
	// AllowMissing lets entities without the property through.
	AllowMissing bool `json:"allowMissing,omitempty"`
}

// Match reports whether v satisfies the filter.
func (f Filter) Match(v float64) bool {
	switch f.Op {
	case OpLessEqual:
		return v <= f.Value
	case OpGreaterEqual:
		return v >= f.Value
	case OpBetween:
		return v >= f.Value && v <= f.Upper
	default:
		return true
	}
}

// SearchResponse is the backend's answer to POST /semantic-search.
type SearchResponse struct {
	Results         []RawRecord     `json:"results"`
	GeneratedSPARQL string          `json:"generated_sparql,omitempty"`
	OriginalQuery   string          `json:"original_query,omitempty"`
	Interpretation  *Interpretation `json:"interpretation,omitempty"`
	Count           int             `json:"count"`
}

// SearchStats mirrors GET /search-stats.
type SearchStats struct {
	TotalEntities int            `json:"total_entities"`
	ByKind        map[string]int `json:"by_kind"`
}

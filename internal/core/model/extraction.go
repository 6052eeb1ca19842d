package model

// ExtractedIntent is the JSON an LLM classifier answers with.
type ExtractedIntent struct {
	Kind     string            `json:"kind"`
	Intent   string            `json:"intent"`
	Entities []string          `json:"entities"`
	Filters  []ExtractedFilter `json:"filters"`
}

type ExtractedFilter struct {
	Property string `json:"property"`
	Modifier string `json:"modifier"`
}

// ClassificationContext feeds the classifier prompt.
type ClassificationContext struct {
	Question   string   `json:"question"`
	Kinds      []string `json:"kinds"`
	Properties []string `json:"properties"`
	Modifiers  []string `json:"modifiers"`
}

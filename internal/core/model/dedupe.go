package model

// DuplicatePair is two raw identifiers that normalize to the same canonical id.
type DuplicatePair struct {
	CanonicalID string `json:"canonical_id"`
	OriginalID  string `json:"original_id"`
	DuplicateID string `json:"duplicate_id"`
}

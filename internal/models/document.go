// Package models defines core data structures for evidence documents, model
// responses, and ensemble answers.
package models

// Document is an ingested evidence document. Documents are immutable once
// added and live for the process lifetime; id uniqueness is a caller
// convention (e.g. "cctv_inspection::row::3"), not an enforced invariant.
type Document struct {
	ID           string          `json:"id"`
	RawText      string          `json:"raw_text"`
	Normalized   string          `json:"-"`
	Tokens       map[string]bool `json:"-"`
	HeaderTokens map[string]bool `json:"-"`
}

// SearchHit is a scored retrieval result, derived per query and never persisted.
type SearchHit struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Package evidence provides in-memory token-overlap retrieval over ingested
// evidence documents, plus an optional Bleve-backed inverted index for larger
// corpora.
package evidence

import (
	"sort"
	"strings"
	"sync"

	"github.com/leeway/agentlee/internal/models"
)

// Searcher is the retrieval contract used by the ensemble orchestrator.
// AddDocument is append-only. Search never fails; no matches means an empty
// slice, not an error.
type Searcher interface {
	AddDocument(id, text string)
	Search(query string, limit int) []models.SearchHit
	Len() int
}

// MemoryIndex scores documents by token overlap with a header bonus and a
// position-aware substring boost. Adequate for a few hundred rows of tabular
// evidence; use the Bleve backend past a few thousand documents.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs []*models.Document
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Normalize lowercases s, replaces non-alphanumeric runes with spaces, and
// collapses runs of whitespace to single spaces.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokenize returns the whitespace-separated tokens of the normalized form of s.
func Tokenize(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}

func tokenSet(tokens []string) map[string]bool {
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// AddDocument ingests a document. Empty text is a no-op. The first line of
// the raw text is additionally tokenized as a header set so CSV column names
// stay discriminative.
func (ix *MemoryIndex) AddDocument(id, text string) {
	if id == "" || text == "" {
		return
	}
	firstLine := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		firstLine = text[:i]
	}
	doc := &models.Document{
		ID:           id,
		RawText:      text,
		Normalized:   Normalize(text),
		Tokens:       tokenSet(Tokenize(text)),
		HeaderTokens: tokenSet(Tokenize(firstLine)),
	}
	ix.mu.Lock()
	ix.docs = append(ix.docs, doc)
	ix.mu.Unlock()
}

// Len returns the number of ingested documents.
func (ix *MemoryIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search scores every document against query and returns up to limit hits,
// best first. Ties keep insertion order. An empty or whitespace-only query
// returns no hits.
//
// Score = (overlap + 0.5*headerOverlap) * (1 + positionBonus) where
// positionBonus = 1/(1+firstIndex) when the normalized query appears as a
// substring. Documents with zero token overlap but a substring match get a
// rescue score of 0.5*(1+positionBonus) so phrase queries that tokenize away
// (hyphenated compounds and the like) still surface.
func (ix *MemoryIndex) Search(query string, limit int) []models.SearchHit {
	qNorm := Normalize(query)
	if qNorm == "" {
		return nil
	}
	qTokens := strings.Fields(qNorm)
	if limit <= 0 {
		limit = 6
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]models.SearchHit, 0, len(ix.docs))
	for _, d := range ix.docs {
		overlap := 0.0
		headerBonus := 0.0
		for _, t := range qTokens {
			if d.Tokens[t] {
				overlap++
			}
			if d.HeaderTokens[t] {
				headerBonus += 0.5
			}
		}
		posBonus := 0.0
		idx := strings.Index(d.Normalized, qNorm)
		if idx >= 0 {
			posBonus = 1.0 / float64(1+idx)
		}
		base := overlap + headerBonus
		var score float64
		switch {
		case base > 0:
			score = base * (1 + posBonus)
		case idx >= 0:
			score = 0.5 * (1 + posBonus)
		}
		if score > 0 {
			hits = append(hits, models.SearchHit{DocumentID: d.ID, Text: d.RawText, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

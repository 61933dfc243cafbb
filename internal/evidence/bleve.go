package evidence

import (
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/models"
)

// bleveDoc is the indexed shape: content plus the header line, so column-name
// matches keep their extra weight under the inverted backend too.
type bleveDoc struct {
	Content string `json:"content"`
	Header  string `json:"header"`
}

// BleveIndex implements Searcher on an in-memory Bleve index. It trades the
// exact composite scoring formula for Bleve's tf-idf ranking and is the
// intended backend once the corpus outgrows the linear scan.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	texts  map[string]string
	count  int
	logger *zap.Logger
}

// NewBleveIndex creates an in-memory Bleve index. The standard analyzer is
// used (lowercase + tokenize, no stemming) so queries match exact words.
func NewBleveIndex(logger *zap.Logger) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	headerFieldMapping := bleve.NewTextFieldMapping()
	headerFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("header", headerFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{index: index, texts: make(map[string]string), logger: logger}, nil
}

// AddDocument ingests a document. Empty text is a no-op.
func (b *BleveIndex) AddDocument(id, text string) {
	if id == "" || text == "" {
		return
	}
	header := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		header = text[:i]
	}
	if err := b.index.Index(id, bleveDoc{Content: text, Header: header}); err != nil {
		if b.logger != nil {
			b.logger.Warn("bleve index failed", zap.String("id", id), zap.Error(err))
		}
		return
	}
	b.mu.Lock()
	b.texts[id] = text
	b.count++
	b.mu.Unlock()
}

// Len returns the number of ingested documents.
func (b *BleveIndex) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Search runs a match query over content and header, boosting header hits so
// column-name matches keep their edge. Retrieval failures degrade to an empty
// result, matching the Searcher contract.
func (b *BleveIndex) Search(query string, limit int) []models.SearchHit {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if limit <= 0 {
		limit = 6
	}
	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")
	headerQuery := bleve.NewMatchQuery(query)
	headerQuery.SetField("header")
	headerQuery.SetBoost(1.5)
	q := bleve.NewDisjunctionQuery(contentQuery, headerQuery)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("bleve search failed", zap.String("query", query), zap.Error(err))
		}
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	hits := make([]models.SearchHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		hits = append(hits, models.SearchHit{
			DocumentID: hit.ID,
			Text:       b.texts[hit.ID],
			Score:      hit.Score,
		})
	}
	return hits
}

// Package loader fetches pitch-deck data assets (CSV, JSON, spreadsheets,
// documents) from a local directory or an HTTP base URL and turns them into
// evidence documents for the search index.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/evidence"
)

// previewRows caps how many data rows land in a file's summary document.
const previewRows = 10

// Document is one unit of evidence ready for indexing.
type Document struct {
	ID   string
	Text string
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithHTTPClient overrides the HTTP client used for base-URL fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// Loader reads the configured asset files and converts them to documents.
// A failure on one file never aborts the batch; the file is logged and
// skipped so a single bad export cannot empty the evidence index.
type Loader struct {
	cfg    config.AssetsConfig
	client *http.Client
	logger *zap.Logger
}

// New creates a Loader for the given assets configuration.
func New(cfg config.AssetsConfig, opts ...Option) *Loader {
	l := &Loader{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load fetches every configured asset and returns the resulting documents.
// It only returns an error when the context is cancelled.
func (l *Loader) Load(ctx context.Context) ([]Document, error) {
	var docs []Document
	for _, f := range l.cfg.Files {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		fileDocs, err := l.loadFile(ctx, f)
		if err != nil {
			l.logger.Warn("skipping asset",
				zap.String("id", f.ID),
				zap.String("path", f.Path),
				zap.Error(err))
			continue
		}
		docs = append(docs, fileDocs...)
	}
	l.logger.Info("assets loaded",
		zap.Int("files", len(l.cfg.Files)),
		zap.Int("documents", len(docs)))
	return docs, nil
}

// BuildIndex loads all assets into a fresh in-memory index.
func (l *Loader) BuildIndex(ctx context.Context) (evidence.Searcher, error) {
	docs, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	ix := evidence.NewMemoryIndex()
	for _, d := range docs {
		ix.AddDocument(d.ID, d.Text)
	}
	return ix, nil
}

func (l *Loader) loadFile(ctx context.Context, f config.AssetFile) ([]Document, error) {
	raw, err := l.fetch(ctx, f.Path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(f.Path))
	switch ext {
	case ".csv":
		return csvDocuments(f.ID, string(raw)), nil
	case ".json":
		return []Document{{ID: f.ID, Text: jsonText(raw)}}, nil
	default:
		text, err := ExtractText(raw, ext)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []Document{{ID: f.ID, Text: text}}, nil
	}
}

// fetch reads the asset either from the HTTP base URL or the local data
// directory, whichever is configured. BaseURL wins when both are set.
func (l *Loader) fetch(ctx context.Context, path string) ([]byte, error) {
	if l.cfg.BaseURL != "" {
		url := strings.TrimRight(l.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(filepath.Join(l.cfg.DataDir, path))
}

// csvDocuments turns CSV text into one document per data row plus a file
// summary. Row documents carry "header: value" pairs so column names share
// the row's searchable text; the summary keeps headers, a short preview, and
// the full raw CSV for whole-file matches.
func csvDocuments(fileID, raw string) []Document {
	rows := ParseCSV(raw)
	if len(rows) == 0 {
		return nil
	}
	headers := rows[0]
	var docs []Document
	for i, row := range rows[1:] {
		var pairs []string
		for j, v := range row {
			if strings.TrimSpace(v) == "" {
				continue
			}
			h := ""
			if j < len(headers) {
				h = strings.TrimSpace(headers[j])
			}
			if h == "" {
				h = fmt.Sprintf("col%d", j)
			}
			pairs = append(pairs, h+": "+strings.TrimSpace(v))
		}
		if len(pairs) == 0 {
			continue
		}
		docs = append(docs, Document{
			ID:   fmt.Sprintf("%s::row::%d", fileID, i),
			Text: strings.Join(pairs, " "),
		})
	}
	docs = append(docs, Document{ID: fileID, Text: csvSummary(headers, rows[1:], raw)})
	return docs
}

func csvSummary(headers []string, dataRows [][]string, raw string) string {
	var b strings.Builder
	b.WriteString("Headers: ")
	b.WriteString(strings.Join(headers, ", "))
	b.WriteString("\nPreview:\n")
	n := len(dataRows)
	if n > previewRows {
		n = previewRows
	}
	for _, row := range dataRows[:n] {
		b.WriteString(strings.Join(row, ", "))
		b.WriteByte('\n')
	}
	b.WriteString("FullCSV:\n")
	b.WriteString(strings.TrimSpace(raw))
	return b.String()
}

// jsonText pretty-prints JSON assets so nested fields stay readable in
// retrieved snippets. Invalid JSON falls back to the raw bytes.
func jsonText(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Package ensemble fans a question out to every configured model client,
// grounds it in retrieved evidence, and always produces an answer, online or
// not.
package ensemble

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/evidence"
	"github.com/leeway/agentlee/internal/llm"
	"github.com/leeway/agentlee/internal/models"
	"github.com/leeway/agentlee/internal/sanitize"
)

// evidenceMarker separates the user's question from retrieved evidence in the
// augmented prompt. It doubles as the preamble-echo check in the helpfulness
// filter.
const evidenceMarker = "--- LOCAL DATA & EVIDENCE ---"

// offlineModelID identifies answers produced without any model client.
const offlineModelID = "offline-heuristic"

// chartPrompt frames ExplainChart requests.
const chartPrompt = "You are a data analyst presenting to a city engineering client. " +
	"Give a short summary, three actionable insights, and one suggested improvement for this chart data."

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithSearchLimit overrides how many evidence hits augment each question.
func WithSearchLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.searchLimit = n
		}
	}
}

// Orchestrator runs the model ensemble over a shared evidence index.
// AskAll and ExplainChart never return an error: every failure path ends in
// the deterministic offline answer.
type Orchestrator struct {
	clients     []llm.Client
	index       *evidence.Handle
	cfg         config.AnswersConfig
	searchLimit int
	logger      *zap.Logger

	initOnce sync.Once
	initErrs []models.ModelError
}

// New creates an Orchestrator. The evidence handle may be empty; answers then
// fall back to general guidance.
func New(clients []llm.Client, index *evidence.Handle, cfg config.AnswersConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		clients:     clients,
		index:       index,
		cfg:         cfg,
		searchLimit: 6,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// initialize brings every client up once. Failures are recorded, not fatal;
// a client that cannot initialize is simply reported in each result's Errors.
func (o *Orchestrator) initialize(ctx context.Context) {
	o.initOnce.Do(func() {
		for _, c := range o.clients {
			if err := c.Initialize(ctx); err != nil {
				o.logger.Warn("model client failed to initialize",
					zap.String("model", c.ID()),
					zap.Error(err))
				o.initErrs = append(o.initErrs, models.ModelError{
					ModelID: c.ID(),
					Error:   err.Error(),
				})
			}
		}
	})
}

// AskAll answers a question with the whole ensemble. Evidence matching the
// question (plus any extra context) is retrieved, joined with the caller's
// context into a system turn, and the question is sent to every ready client
// concurrently. The best helpful reply wins; when none qualifies the
// deterministic offline answer is returned instead.
func (o *Orchestrator) AskAll(ctx context.Context, question string, history []models.ChatTurn, extraContext string) *models.EnsembleResult {
	o.initialize(ctx)

	extraContext = strings.TrimSpace(extraContext)
	searchQuery := question
	if extraContext != "" {
		searchQuery = question + " " + extraContext
	}
	contextText := o.retrieve(searchQuery)

	// The caller's context always travels with the request; the evidence
	// block is appended only when retrieval found something.
	augmented := extraContext
	if contextText != "" {
		block := evidenceMarker + "\n" + contextText
		if augmented != "" {
			augmented += "\n\n" + block
		} else {
			augmented = block
		}
	}
	turns := history
	if augmented != "" {
		turns = append([]models.ChatTurn{{Role: "system", Content: augmented}}, history...)
	}

	result := &models.EnsembleResult{
		ContextPreview: sanitize.ForPrompt(contextText, o.cfg.PreviewChars),
	}
	result.Errors = append(result.Errors, o.initErrs...)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range o.clients {
		if c.Status() != llm.StatusReady {
			continue
		}
		wg.Add(1)
		go func(c llm.Client) {
			defer wg.Done()
			resp, err := c.Chat(ctx, question, turns)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, models.ModelError{
					ModelID: c.ID(),
					Error:   err.Error(),
				})
				return
			}
			result.All = append(result.All, *resp)
		}(c)
	}
	wg.Wait()

	// Goroutine completion order is not stable; fix the ordering so identical
	// inputs yield identical results.
	sortResponses(result.All)

	if best := bestResponse(result.All, evidenceMarker); best != nil {
		result.Best = best
		return result
	}

	var errored []string
	for _, e := range result.Errors {
		errored = append(errored, e.ModelID)
	}
	sort.Strings(errored)
	text := offlineAnswer(contextText, o.cfg.Families, o.cfg.PreviewChars, errored)
	result.Best = &models.ModelResponse{
		Text:       text,
		ModelID:    offlineModelID,
		TokenCount: models.WordCount(text),
		Origin:     models.OriginOffline,
	}
	return result
}

// ExplainChart asks the ensemble to narrate a chart. The chart's underlying
// data rows are passed as retrieval context so related evidence surfaces too.
func (o *Orchestrator) ExplainChart(ctx context.Context, chartTitle, chartData string) *models.EnsembleResult {
	question := chartPrompt + "\n\nChart: " + chartTitle + "\n" + chartData
	return o.AskAll(ctx, question, nil, chartTitle)
}

// ClientStatuses reports each client's readiness by model ID.
func (o *Orchestrator) ClientStatuses() map[string]string {
	out := make(map[string]string, len(o.clients))
	for _, c := range o.clients {
		out[c.ID()] = string(c.Status())
	}
	return out
}

// retrieve searches the evidence index and joins sanitized hit texts for the
// prompt. Evidence rows come from external files, so each snippet is cleaned
// before it can reach a model.
func (o *Orchestrator) retrieve(query string) string {
	if o.index == nil {
		return ""
	}
	ix := o.index.Get()
	if ix == nil {
		return ""
	}
	hits := ix.Search(query, o.searchLimit)
	if len(hits) == 0 {
		return ""
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if snippet := sanitize.ForPrompt(h.Text, 0); snippet != "" {
			parts = append(parts, snippet)
		}
	}
	return strings.Join(parts, "\n")
}

// sortResponses orders replies by model ID.
func sortResponses(rs []models.ModelResponse) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ModelID < rs[j].ModelID })
}

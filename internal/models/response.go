package models

// ChatTurn is one prior conversation turn passed to a model client.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Origin values for ModelResponse.
const (
	OriginRemote   = "remote"
	OriginLocal    = "local"
	OriginFallback = "fallback"
	OriginOffline  = "offline"
)

// ModelResponse is the output of a single model client call.
type ModelResponse struct {
	Text       string `json:"text"`
	ModelID    string `json:"model_id"`
	TokenCount int    `json:"token_count"`
	Origin     string `json:"origin"`
}

// ModelError records a per-client failure during an ensemble call.
type ModelError struct {
	ModelID string `json:"model_id"`
	Error   string `json:"error"`
}

// EnsembleResult is the outcome of one ensemble question. Best is never nil:
// when no model response passes the helpfulness filter, it carries the
// deterministic offline answer instead.
type EnsembleResult struct {
	Best           *ModelResponse  `json:"best"`
	All            []ModelResponse `json:"all"`
	ContextPreview string          `json:"retrieved_context_preview"`
	Errors         []ModelError    `json:"errors"`
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				n++
			}
			inWord = true
		}
	}
	return n
}

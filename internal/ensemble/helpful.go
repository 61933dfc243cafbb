package ensemble

import (
	"strings"

	"github.com/leeway/agentlee/internal/models"
)

// minHelpfulWords is the shortest reply treated as a real answer.
const minHelpfulWords = 8

// boilerplateMarkers disqualify a reply regardless of length. Stand-in and
// fallback clients embed these on purpose so the filter can discount them.
var boilerplateMarkers = []string{
	"fallback answer",
	"fallback",
	"not available",
	"error",
	"no local model",
	"could not load",
}

// isHelpful reports whether a model reply is worth surfacing as the best
// answer: non-empty, at least minHelpfulWords words, free of boilerplate
// markers, and not an echo of the prompt preamble it was given.
func isHelpful(text, promptPreamble string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if models.WordCount(t) < minHelpfulWords {
		return false
	}
	lower := strings.ToLower(t)
	for _, m := range boilerplateMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	if promptPreamble != "" && strings.Contains(t, promptPreamble) {
		return false
	}
	return true
}

// bestResponse picks the helpful reply with the greatest word count. It
// returns nil when nothing passes the filter.
func bestResponse(all []models.ModelResponse, promptPreamble string) *models.ModelResponse {
	var best *models.ModelResponse
	bestWords := -1
	for i := range all {
		r := &all[i]
		if !isHelpful(r.Text, promptPreamble) {
			continue
		}
		if wc := models.WordCount(r.Text); wc > bestWords {
			best = r
			bestWords = wc
		}
	}
	return best
}

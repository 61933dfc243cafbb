// Package sanitize cleans externally sourced text before it reaches a model
// prompt, an offline answer, or a speech engine. All functions are pure.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	dataURIRe    = regexp.MustCompile(`data:[a-zA-Z0-9/+.-]+;base64,[A-Za-z0-9+/=]+`)
	assetFragRe  = regexp.MustCompile(`/assets/[A-Za-z0-9._-]+-[A-Za-z0-9]{8,}\.(?:js|css|mjs|map|woff2?)`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	emphasisRe   = regexp.MustCompile("[*_~`]+")
	emojiCodeRe  = regexp.MustCompile(`:[a-zA-Z0-9_+-]+:`)
	punctRunRe   = regexp.MustCompile(`[.!?]{2,}`)
	lineDotRe    = regexp.MustCompile(`\n\.`)
	edgePunctRe  = regexp.MustCompile(`^[\s.,;:!?-]+|[\s.,;:!?-]+$`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

// DefaultPromptLimit caps snippet length inserted into model prompts and
// offline answers.
const DefaultPromptLimit = 1000

// ForPrompt strips HTML tags, embedded base64 data URIs, and hashed bundler
// asset paths from s, collapses whitespace, and truncates to limit characters
// at the nearest preceding word boundary with an ellipsis marker. A limit of
// zero or less uses DefaultPromptLimit.
func ForPrompt(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultPromptLimit
	}
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = dataURIRe.ReplaceAllString(s, " ")
	s = assetFragRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	return TruncateWords(s, limit)
}

// TruncateWords truncates s to at most limit characters, backing up to the
// previous word boundary when the cut would split a word, and appends "…".
func TruncateWords(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ") + "…"
}

// ForSpeech prepares text for a speech engine: markdown emphasis markers,
// :emoji_code: placeholders, and pictographic runes are removed, runs of
// terminal punctuation collapse to a single period, and stray punctuation at
// the edges is trimmed. An empty return value means there is nothing to say.
func ForSpeech(s string) string {
	s = emphasisRe.ReplaceAllString(s, "")
	s = emojiCodeRe.ReplaceAllString(s, " ")
	s = stripPictographs(s)
	s = punctRunRe.ReplaceAllString(s, ".")
	s = lineDotRe.ReplaceAllString(s, "\n")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = edgePunctRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripPictographs replaces emoji-range runes with spaces.
func stripPictographs(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x1F000 && r <= 0x1FAFF, // pictographs, emoticons, symbols
			r >= 0x2600 && r <= 0x27BF, // misc symbols and dingbats
			r == 0xFE0F, r == 0x200D:   // presentation selector, ZWJ
			return ' '
		}
		return r
	}, s)
}

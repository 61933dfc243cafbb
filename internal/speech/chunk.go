package speech

import "strings"

// SplitChunks breaks text into pieces of at most maxLen characters, cutting
// at sentence boundaries when possible and at word boundaries otherwise.
// Engines choke on overlong utterances; native synthesizers take short
// chunks, cloud providers take chunks an order of magnitude larger.
func SplitChunks(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, sentence := range splitSentences(text) {
		if len(sentence) > maxLen {
			// A single oversized sentence is split on word boundaries.
			if cur.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(cur.String()))
				cur.Reset()
			}
			chunks = append(chunks, splitWords(sentence, maxLen)...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+1+len(sentence) > maxLen {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(sentence)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(cur.String()))
	}
	return chunks
}

// splitSentences cuts text after terminal punctuation. The delimiter stays
// with its sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?', '\n':
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func splitWords(sentence string, maxLen int) []string {
	var out []string
	var cur strings.Builder
	for _, w := range strings.Fields(sentence) {
		if cur.Len() > 0 && cur.Len()+1+len(w) > maxLen {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

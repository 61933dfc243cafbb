// Package utils provides small logging and text helpers shared across the
// service.
package utils

// Truncate shortens s to at most max runes, appending "..." when anything was
// cut. Non-positive max returns s unchanged. Counting runes keeps multibyte
// answer text from being split mid-character in previews.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

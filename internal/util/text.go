package util

import "strings"

// SanitizePostgresText drops invalid UTF-8 and NUL bytes, which Postgres
// rejects in text columns.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// WrapText splits document into chunks of at most width runes, breaking on
// whitespace. Runs of whitespace collapse to a single space and words longer
// than width are cut into width-sized pieces.
func WrapText(document string, width int) []string {
	if width <= 0 {
		return nil
	}

	chunks := make([]string, 0)
	var line []rune
	flush := func() {
		if len(line) > 0 {
			chunks = append(chunks, string(line))
			line = line[:0]
		}
	}

	for _, word := range strings.Fields(document) {
		w := []rune(word)
		for len(w) > width {
			flush()
			chunks = append(chunks, string(w[:width]))
			w = w[width:]
		}
		if len(w) == 0 {
			continue
		}

		needed := len(w)
		if len(line) > 0 {
			needed++
		}
		if len(line)+needed > width {
			flush()
		}
		if len(line) > 0 {
			line = append(line, ' ')
		}
		line = append(line, w...)
	}
	flush()

	return chunks
}

package compose

import "strings"

// widthFunc measures rendered string width in document units for the
// currently selected font and size.
type widthFunc func(string) float64

// wrapText splits text into lines no wider than maxWidth using greedy
// word wrap against real glyph metrics. A single word wider than maxWidth
// gets its own line rather than being broken mid-word.
func wrapText(text string, maxWidth float64, width widthFunc) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if width(candidate) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

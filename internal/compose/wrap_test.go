package compose

import (
	"strings"
	"testing"
)

// charWidth approximates glyph metrics for wrap tests: a tenth of an inch
// per character.
func charWidth(s string) float64 {
	return float64(len(s)) * 0.1
}

func TestWrapTextRespectsMaxWidth(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog near the riverbank"
	lines := wrapText(text, 2.0, charWidth)

	if len(lines) < 2 {
		t.Fatalf("expected multiple lines, got %d", len(lines))
	}
	for _, line := range lines {
		if charWidth(line) > 2.0 {
			t.Errorf("line %q overflows max width", line)
		}
	}
	if joined := strings.Join(lines, " "); joined != text {
		t.Fatalf("wrap lost or reordered words: %q", joined)
	}
}

func TestWrapTextOverlongWordGetsOwnLine(t *testing.T) {
	lines := wrapText("tiny incomprehensibilities end", 1.0, charWidth)
	found := false
	for _, line := range lines {
		if line == "incomprehensibilities" {
			found = true
		}
	}
	if !found {
		t.Fatalf("overlong word should occupy its own line, got %v", lines)
	}
}

func TestWrapTextEmpty(t *testing.T) {
	if lines := wrapText("   ", 2.0, charWidth); lines != nil {
		t.Fatalf("expected nil for blank text, got %v", lines)
	}
}

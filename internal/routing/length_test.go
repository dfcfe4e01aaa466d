package routing

import (
	"strings"
	"testing"
)

func TestAnalyzeLength_ShortSimpleText(t *testing.T) {
	info := AnalyzeLength("This is short. It has two sentences.")

	if info.Sentences != 2 {
		t.Errorf("Expected 2 sentences, got %d", info.Sentences)
	}
	if info.Words != 7 {
		t.Errorf("Expected 7 words, got %d", info.Words)
	}
	if !info.SuitableForLocal {
		t.Error("Short simple text should be suitable for local processing")
	}
}

func TestAnalyzeLength_LongTextUnsuitable(t *testing.T) {
	text := strings.Repeat("Short sentence here. ", 300) // well over 5000 chars
	info := AnalyzeLength(text)

	if info.Characters < 5000 {
		t.Fatalf("Test input too short: %d chars", info.Characters)
	}
	if info.SuitableForLocal {
		t.Error("Text over the length limit must not be suitable for local processing")
	}
}

func TestAnalyzeLength_ComplexityUnsuitable(t *testing.T) {
	// One sentence of 30 words: 30/20 = 1.5, capped at 1.0.
	text := strings.TrimSpace(strings.Repeat("word ", 30)) + "."
	info := AnalyzeLength(text)

	if info.Sentences != 1 {
		t.Errorf("Expected 1 sentence, got %d", info.Sentences)
	}
	if info.Complexity != 1.0 {
		t.Errorf("Expected complexity capped at 1.0, got %v", info.Complexity)
	}
	if info.SuitableForLocal {
		t.Error("High-complexity text must not be suitable for local processing")
	}
}

func TestAnalyzeLength_NoTerminatorCountsOneSentence(t *testing.T) {
	info := AnalyzeLength("no punctuation at all here")

	if info.Sentences != 1 {
		t.Errorf("Expected 1 sentence for unterminated text, got %d", info.Sentences)
	}
}

func TestAnalyzeLength_EmptyText(t *testing.T) {
	info := AnalyzeLength("")

	if info.Characters != 0 || info.Words != 0 || info.Sentences != 0 {
		t.Errorf("Expected all zero counts, got %+v", info)
	}
	if info.Complexity != 0 {
		t.Errorf("Expected zero complexity, got %v", info.Complexity)
	}
	if !info.SuitableForLocal {
		t.Error("Empty text is trivially suitable for local processing")
	}
}

func TestAnalyzeLength_MultibyteCharacters(t *testing.T) {
	info := AnalyzeLength("Grüße aus München. Schön hier.")

	// Rune count, not byte count.
	if info.Characters != 30 {
		t.Errorf("Expected 30 characters, got %d", info.Characters)
	}
}

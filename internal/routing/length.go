package routing

import (
	"strings"
	"unicode/utf8"
)

// localLengthLimit is the character count above which content is routed to
// a cloud backend regardless of other local-friendly factors.
const localLengthLimit = 5000

// localComplexityLimit bounds the sentence-complexity score for local
// suitability.
const localComplexityLimit = 0.7

// LengthInfo is the length/complexity half of the pre-decision analysis. It
// has no data dependency on the sensitivity assessment and runs alongside it.
type LengthInfo struct {
	Characters       int     `json:"characters"`
	Words            int     `json:"words"`
	Sentences        int     `json:"sentences"`
	Complexity       float64 `json:"complexity"`
	SuitableForLocal bool    `json:"suitable_for_local"`
}

// AnalyzeLength computes length and complexity for the given text.
// Complexity is the average words-per-sentence normalized against 20,
// capped at 1.0.
func AnalyzeLength(text string) LengthInfo {
	info := LengthInfo{
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
	}

	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			info.Sentences++
		}
	}
	if info.Sentences == 0 && info.Words > 0 {
		info.Sentences = 1
	}

	if info.Sentences > 0 {
		avgWordsPerSentence := float64(info.Words) / float64(info.Sentences)
		info.Complexity = avgWordsPerSentence / 20
		if info.Complexity > 1.0 {
			info.Complexity = 1.0
		}
	}

	info.SuitableForLocal = info.Characters < localLengthLimit && info.Complexity < localComplexityLimit
	return info
}

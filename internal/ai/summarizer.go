package ai

import (
	"context"
	"unicode/utf8"
)

// SummaryPrompt instructs the model to produce a short Korean summary.
const SummaryPrompt = "법안 내용을 300자 이내로 요약. 핵심만 3-4줄로."

// Summarizer turns bill purpose text into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// truncateRunes caps s at max characters; max <= 0 disables the cap.
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

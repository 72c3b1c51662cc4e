package summarizer

import (
	"fmt"

	"distill/internal/domain"
)

type Style string

const (
	StyleProse   Style = "prose"
	StyleBullets Style = "bullets"
)

const (
	generalSystemPrompt = "You are an AI summariser. Your task is to summarise a given text clearly, " +
		"comprehensively and in an understandable way."

	researchSystemPrompt = "You are an AI research assistant. Your task is to summarise scientific papers " +
		"clearly, comprehensively and in an understandable way. The tone of the summary should be formal " +
		"and scientific."

	transcriptSystemPrompt = "You are an AI summariser. The text is an automatic video transcript without " +
		"punctuation guarantees. Summarise what is said clearly and in an understandable way."
)

func systemPrompt(kind domain.SourceKind) string {
	switch kind {
	case domain.SourceArxiv, domain.SourcePDF:
		return researchSystemPrompt
	case domain.SourceVideo:
		return transcriptSystemPrompt
	default:
		return generalSystemPrompt
	}
}

// MapInstructions builds the prompt for summarizing one chunk of a document.
// part is zero-based; multipart is false when the document fit one chunk.
func MapInstructions(kind domain.SourceKind, part int, multipart bool, targetTokens int, style Style) string {
	scope := "the following text"
	if multipart {
		scope = fmt.Sprintf("part %d of a longer text", part+1)
	}

	return fmt.Sprintf("%s\n\nSummarize %s in plain language using at most %d words.%s",
		systemPrompt(kind), scope, targetWords(targetTokens), styleRule(style))
}

// ReduceInstructions builds the prompt for merging partial summaries.
func ReduceInstructions(kind domain.SourceKind, targetTokens int, style Style) string {
	return fmt.Sprintf("%s\n\nThe text consists of consecutive partial summaries of one document, in order. "+
		"Merge them into a single coherent summary using at most %d words. "+
		"Keep the original order of ideas and drop repetition.%s",
		systemPrompt(kind), targetWords(targetTokens), styleRule(style))
}

func styleRule(style Style) string {
	if style == StyleBullets {
		return " Format the result as a list of short bullet points, one per line, each starting with \"* \"."
	}

	return ""
}

// targetWords converts a token budget into a word budget the model can follow.
func targetWords(targetTokens int) int {
	return max(targetTokens*3/4, 1)
}

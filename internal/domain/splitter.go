package domain

import (
	"strings"
	"unicode/utf8"
)

// SplitSentences splits text at common sentence boundaries (. ! ?
// followed by whitespace or end of text).
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		switch runes[i] {
		case '.', '!', '?':
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// TruncateAtSentence shortens text to at most maxRunes, cutting at the
// last full sentence that fits. When not even one sentence fits, the
// text is cut mid-sentence with a trailing ellipsis.
func TruncateAtSentence(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	var kept strings.Builder
	keptLen := 0
	for _, sentence := range SplitSentences(text) {
		sentenceLen := utf8.RuneCountInString(sentence)
		spacer := 0
		if keptLen > 0 {
			spacer = 1
		}
		if keptLen+spacer+sentenceLen > maxRunes {
			break
		}
		if spacer > 0 {
			kept.WriteByte(' ')
		}
		kept.WriteString(sentence)
		keptLen += spacer + sentenceLen
	}

	if keptLen > 0 {
		return kept.String()
	}

	runes := []rune(text)
	if maxRunes <= 1 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-1]) + "…"
}

// sentenceCut returns the word count up to and including the last
// sentence-ending word in the window, or the full window when none ends
// a sentence.
func sentenceCut(window []string) int {
	for i := len(window) - 1; i >= 0; i-- {
		if endsSentence(window[i]) {
			return i + 1
		}
	}
	return len(window)
}

func endsSentence(word string) bool {
	w := strings.TrimRight(word, `"')]`)
	if w == "" {
		return false
	}
	switch w[len(w)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

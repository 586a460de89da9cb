package core

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 500
	minChunkLength   = 10
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	sectionMarker = regexp.MustCompile(`\[[^\]]*\]`)
)

// SmartChunk splits knowledge-base text into chunks of at most size
// characters without breaking sentences. Bracketed section markers such as
// "[Billing]" end the current chunk and are not indexed themselves. Chunks of
// minChunkLength characters or fewer are dropped.
func SmartChunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}

	var chunks []string
	for _, section := range splitKeepingMarkers(text) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		if strings.HasPrefix(section, "[") && strings.HasSuffix(section, "]") {
			continue
		}

		current := ""
		for _, sentence := range splitSentences(section) {
			if utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence) <= size {
				if current == "" {
					current = sentence
				} else {
					current += " " + sentence
				}
				continue
			}
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
			}
			current = sentence
		}
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}
	}

	out := chunks[:0]
	for _, c := range chunks {
		if utf8.RuneCountInString(c) > minChunkLength {
			out = append(out, c)
		}
	}
	return out
}

// splitKeepingMarkers splits text around section markers, returning the
// markers as separate elements in order.
func splitKeepingMarkers(text string) []string {
	locs := sectionMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	parts := make([]string, 0, 2*len(locs)+1)
	prev := 0
	for _, loc := range locs {
		parts = append(parts, text[prev:loc[0]], text[loc[0]:loc[1]])
		prev = loc[1]
	}
	return append(parts, text[prev:])
}

// splitSentences breaks at whitespace preceded by '.', '!' or '?'.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] != ' ' {
			continue
		}
		switch text[i-1] {
		case '.', '!', '?':
			sentences = append(sentences, text[start:i])
			start = i + 1
		}
	}
	return append(sentences, text[start:])
}

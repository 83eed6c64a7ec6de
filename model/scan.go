package model

import "strings"

// ExtractHashtags returns the #-prefixed words of text without the marker,
// in order of appearance. Duplicates are kept.
func ExtractHashtags(text string) []string {
	return extractTokens(text, '#')
}

// ExtractMentions returns the @-prefixed words of text without the marker,
// in order of appearance. Duplicates are kept.
func ExtractMentions(text string) []string {
	return extractTokens(text, '@')
}

func extractTokens(text string, marker byte) []string {
	tokens := []string{}
	for _, word := range strings.Fields(text) {
		// a bare marker names nothing
		if len(word) < 2 || word[0] != marker {
			continue
		}
		tokens = append(tokens, word[1:])
	}
	return tokens
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"strings"
	"unicode"
)

// SplitArguments tokenizes a raw argument string. Tokens are separated by
// whitespace; double-quoted spans form one token, and single-quoted spans do
// too when singleQuotes is set. A non-positive maxTokens means unlimited;
// otherwise the final token absorbs the remaining unsplit text once the cap
// is reached.
func SplitArguments(argString string, maxTokens int, singleQuotes bool) []string {
	var tokens []string
	runes := []rune(argString)
	i := 0

	skipSpace := func() {
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
	}

	for {
		skipSpace()
		if i >= len(runes) {
			break
		}

		if maxTokens > 0 && len(tokens) == maxTokens-1 {
			// Cap reached: the rest of the string is one token,
			// with surrounding quotes stripped if they span it all.
			rest := strings.TrimSpace(string(runes[i:]))
			tokens = append(tokens, stripEnclosingQuotes(rest, singleQuotes))
			return tokens
		}

		r := runes[i]
		if r == '"' || (singleQuotes && r == '\'') {
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j < len(runes) {
				tokens = append(tokens, string(runes[i+1:j]))
				i = j + 1
				continue
			}
			// Unterminated quote: fall through and treat it as a
			// plain rune.
		}

		j := i
		for j < len(runes) && !unicode.IsSpace(runes[j]) {
			j++
		}
		tokens = append(tokens, string(runes[i:j]))
		i = j
	}

	return tokens
}

// stripEnclosingQuotes removes one pair of quotes wrapping the whole string.
func stripEnclosingQuotes(s string, singleQuotes bool) string {
	if len(s) < 2 {
		return s
	}
	first := s[0]
	if first != '"' && !(singleQuotes && first == '\'') {
		return s
	}
	if s[len(s)-1] != first {
		return s
	}
	inner := s[1 : len(s)-1]
	if strings.ContainsRune(inner, rune(first)) {
		return s
	}
	return inner
}

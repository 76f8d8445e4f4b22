// Package reconcile merges retranscribed audio windows into an already
// confirmed transcript without duplicating words.
package reconcile

import (
	"strings"
	"unicode"
)

const minAnchorWords = 2

type token struct {
	norm string
	end  int // byte offset just past the token in the source string
}

func tokenize(s string) []token {
	var toks []token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				toks = appendToken(toks, s[start:i], i)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = appendToken(toks, s[start:], len(s))
	}
	return toks
}

func appendToken(toks []token, word string, end int) []token {
	return append(toks, token{norm: normalizeWord(word), end: end})
}

// normalizeWord lower-cases a word and strips surrounding punctuation so
// "cosas." and "Cosas," compare equal.
func normalizeWord(w string) string {
	w = strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return strings.ToLower(w)
}

// ExtractNewTail returns the part of retranscribed that is not already
// present at the end of confirmed. The second result is false when there is
// nothing new to add.
//
// The anchor is the longest word suffix of confirmed (at least two words)
// found inside retranscribed; when several occurrences exist the last one
// wins. Without an anchor the whole retranscription is returned.
func ExtractNewTail(retranscribed, confirmed string) (string, bool) {
	retr := strings.TrimSpace(retranscribed)
	if retr == "" {
		return "", false
	}
	conf := strings.TrimSpace(confirmed)
	if conf == "" {
		return retr, true
	}
	if retr == conf {
		return "", false
	}

	confToks := tokenize(conf)
	if len(confToks) < minAnchorWords {
		return retr, true
	}
	retrToks := tokenize(retr)

	maxK := len(confToks)
	if len(retrToks) < maxK {
		maxK = len(retrToks)
	}
	for k := maxK; k >= minAnchorWords; k-- {
		anchor := confToks[len(confToks)-k:]
		if !hasContent(anchor) {
			continue
		}
		idx := lastIndex(retrToks, anchor)
		if idx < 0 {
			continue
		}
		end := retrToks[idx+k-1].end
		delta := strings.TrimLeftFunc(retr[end:], unicode.IsSpace)
		if delta == "" {
			return "", false
		}
		return delta, true
	}
	return retr, true
}

func hasContent(toks []token) bool {
	for _, t := range toks {
		if t.norm != "" {
			return true
		}
	}
	return false
}

// lastIndex returns the start of the last occurrence of needle in hay.
func lastIndex(hay, needle []token) int {
	for i := len(hay) - len(needle); i >= 0; i-- {
		match := true
		for j := range needle {
			if hay[i+j].norm != needle[j].norm {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// TrimOverlap drops up to maxWords leading words of chunk that repeat the
// trailing words of confirmed. Incremental chunks re-decode the overlap
// samples, so the first words are often heard twice. Like ExtractNewTail it
// needs at least two matching words; a single repeated word is kept.
func TrimOverlap(chunk, confirmed string, maxWords int) string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" || maxWords <= 0 {
		return chunk
	}
	confToks := tokenize(confirmed)
	chunkToks := tokenize(chunk)
	if len(confToks) == 0 || len(chunkToks) == 0 {
		return chunk
	}

	limit := maxWords
	if len(confToks) < limit {
		limit = len(confToks)
	}
	// Keep at least one word of the chunk.
	if len(chunkToks)-1 < limit {
		limit = len(chunkToks) - 1
	}
	for k := limit; k >= minAnchorWords; k-- {
		tail := confToks[len(confToks)-k:]
		if !hasContent(tail) {
			continue
		}
		if lastIndex(chunkToks[:k], tail) == 0 {
			return strings.TrimLeftFunc(chunk[chunkToks[k-1].end:], unicode.IsSpace)
		}
	}
	return chunk
}

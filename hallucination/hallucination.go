// Package hallucination rejects decoder output that is a known non-speech
// artifact (sound cues, video boilerplate, stray openers) rather than real
// dictation.
package hallucination

import (
	"strings"
	"unicode"
)

const minLength = 3

type phrase struct {
	text string
	// exact phrases only match the whole candidate; the rest match anywhere.
	exact bool
}

// denylist holds lower-cased artifacts. Multi-word boilerplate is matched as
// a substring; short words that also occur in real sentences only match
// when they are the entire candidate.
var denylist = []phrase{
	{text: "[music]"},
	{text: "[applause]"},
	{text: "[laughter]"},
	{text: "[silence]"},
	{text: "[blank_audio]"},
	{text: "[no speech]"},
	{text: "(music)"},
	{text: "(applause)"},
	{text: "(silence)"},
	{text: "[música]"},
	{text: "[aplausos]"},
	{text: "[risas]"},
	{text: "♪"},
	{text: "thanks for watching"},
	{text: "thank you for watching"},
	{text: "please subscribe"},
	{text: "like and subscribe"},
	{text: "don't forget to subscribe"},
	{text: "subscribe to my channel"},
	{text: "see you in the next video"},
	{text: "subtitles by"},
	{text: "subtitled by"},
	{text: "amara.org"},
	{text: "gracias por ver"},
	{text: "suscríbete"},
	{text: "suscribete"},
	{text: "no olvides suscribirte"},
	{text: "subtítulos realizados por"},
	{text: "subtitulado por"},
	{text: "subscribe", exact: true},
	{text: "thank you", exact: true},
	{text: "thanks", exact: true},
	{text: "thank you very much", exact: true},
	{text: "gracias", exact: true},
	{text: "muchas gracias", exact: true},
	{text: "you", exact: true},
	{text: "bye", exact: true},
	{text: "bye bye", exact: true},
	{text: "adiós", exact: true},
	{text: "okay", exact: true},
}

// leadingArtifacts are openers decoders prepend to otherwise valid text.
// Longer entries come first so "thank you very much" wins over "thank you".
var leadingArtifacts = []string{
	"thank you very much",
	"thank you",
	"thanks",
	"muchas gracias",
	"gracias",
}

// IsHallucination reports whether text is a decoder artifact.
func IsHallucination(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	if len([]rune(s)) < minLength {
		return true
	}

	whole := strings.TrimRightFunc(s, isTrailingPunct)
	for _, p := range denylist {
		if p.exact {
			if whole == p.text {
				return true
			}
			continue
		}
		if strings.Contains(s, p.text) {
			return true
		}
	}

	if wrapped(s) {
		return true
	}
	return !hasAlphanumeric(s)
}

// Sanitize strips a known leading artifact from text. The second result is
// false when nothing remains and the candidate must be discarded.
func Sanitize(text string) (string, bool) {
	s := strings.TrimSpace(text)
	lower := strings.ToLower(s)
	for _, prefix := range leadingArtifacts {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := s[len(prefix):]
		// Only strip whole words: "thanksgiving" is not "thanks".
		if rest != "" {
			r := []rune(rest)[0]
			if !unicode.IsSpace(r) && !unicode.IsPunct(r) {
				continue
			}
		}
		rest = strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		if rest == "" {
			return "", false
		}
		return rest, true
	}
	return s, s != ""
}

// Filter sanitizes text and rejects it if the result is an artifact.
func Filter(text string) (string, bool) {
	if IsHallucination(text) {
		return "", false
	}
	s, ok := Sanitize(text)
	if !ok || IsHallucination(s) {
		return "", false
	}
	return s, true
}

func isTrailingPunct(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(".,!?;:…", r)
}

func wrapped(s string) bool {
	pairs := [][2]byte{{'[', ']'}, {'(', ')'}}
	for _, p := range pairs {
		if len(s) < 2 || s[0] != p[0] || s[len(s)-1] != p[1] {
			continue
		}
		inner := s[1 : len(s)-1]
		if !strings.ContainsAny(inner, string(p[:])) {
			return true
		}
	}
	return false
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

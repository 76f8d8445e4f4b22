// Package history keeps bounded undo/redo snapshots of a transcript.
package history

import (
	"strings"

	"murmur/command"
)

const DefaultLimit = 30

type Stack struct {
	limit int
	undo  []string
	redo  []string
}

func New(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{limit: limit}
}

// Snapshot records text as an undo point and invalidates redo.
func (s *Stack) Snapshot(text string) {
	s.undo = append(s.undo, text)
	if over := len(s.undo) - s.limit; over > 0 {
		s.undo = append(s.undo[:0], s.undo[over:]...)
	}
	s.redo = s.redo[:0]
}

// Undo returns the previous text, saving current for Redo.
func (s *Stack) Undo(current string) (string, bool) {
	if len(s.undo) == 0 {
		return "", false
	}
	prev := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, current)
	return prev, true
}

func (s *Stack) Redo(current string) (string, bool) {
	if len(s.redo) == 0 {
		return "", false
	}
	next := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, current)
	if over := len(s.undo) - s.limit; over > 0 {
		s.undo = append(s.undo[:0], s.undo[over:]...)
	}
	return next, true
}

func (s *Stack) Reset() {
	s.undo = s.undo[:0]
	s.redo = s.redo[:0]
}

func (s *Stack) UndoDepth() int { return len(s.undo) }
func (s *Stack) RedoDepth() int { return len(s.redo) }

// Apply runs an editing command against current and returns the edited
// text. The second result is false when the command changed nothing.
func (s *Stack) Apply(cmd command.Command, current string) (string, bool) {
	switch cmd.Kind {
	case command.DeleteLastSentence:
		next := DeleteLastSentence(current)
		if next == current {
			return current, false
		}
		s.Snapshot(current)
		return next, true
	case command.Undo:
		return s.Undo(current)
	case command.Redo:
		return s.Redo(current)
	case command.Correction:
		next := ReplaceLastSentence(current, cmd.Replacement)
		if next == current {
			return current, false
		}
		s.Snapshot(current)
		return next, true
	}
	return current, false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// terminators returns the byte offsets of sentence terminators. A run such
// as "?!" or "..." counts once, at its last mark. A decimal point is not a
// terminator.
func terminators(text string) []int {
	var idx []int
	for i := 0; i < len(text); i++ {
		if !isTerminator(text[i]) {
			continue
		}
		if i+1 < len(text) && isTerminator(text[i+1]) {
			continue
		}
		if text[i] == '.' && i > 0 && i+1 < len(text) && isDigit(text[i-1]) && isDigit(text[i+1]) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// DeleteLastSentence keeps text up to and including the second-to-last
// sentence terminator. An unterminated trailing fragment counts as the last
// sentence. With fewer than two sentences the result is empty.
func DeleteLastSentence(text string) string {
	t := strings.TrimRightFunc(text, isSpace)
	if t == "" {
		return ""
	}
	idx := terminators(t)
	if !isTerminator(t[len(t)-1]) {
		idx = append(idx, len(t)-1)
	}
	if len(idx) < 2 {
		return ""
	}
	return t[:idx[len(idx)-2]+1]
}

// ReplaceLastSentence swaps the final sentence of text for replacement.
func ReplaceLastSentence(text, replacement string) string {
	t := strings.TrimRightFunc(text, isSpace)
	if replacement == "" {
		return t
	}
	idx := terminators(t)
	// Ignore a terminator that closes the last sentence itself.
	if n := len(idx); n > 0 && idx[n-1] == len(t)-1 {
		idx = idx[:n-1]
	}
	if len(idx) == 0 {
		return replacement
	}
	return t[:idx[len(idx)-1]+1] + " " + replacement
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

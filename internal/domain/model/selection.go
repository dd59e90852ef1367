package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Selection is what one ballot chose for one role. It is either a
// SingleChoice or a MultiChoice.
type Selection interface {
	// Candidates returns the chosen names; empty when nothing was chosen.
	Candidates() []string
	// Empty reports whether nothing was chosen.
	Empty() bool

	selection()
}

// SingleChoice selects one candidate.
type SingleChoice struct {
	Candidate string
}

func (SingleChoice) selection() {}

// Candidates implements Selection.
func (s SingleChoice) Candidates() []string {
	if s.Candidate == "" {
		return nil
	}
	return []string{s.Candidate}
}

// Empty implements Selection.
func (s SingleChoice) Empty() bool { return s.Candidate == "" }

// MultiChoice selects a set of candidates. Names keep their first-seen order.
type MultiChoice struct {
	names []string
}

func (MultiChoice) selection() {}

// NewMultiChoice builds a MultiChoice, dropping blanks and repeated names.
func NewMultiChoice(names ...string) MultiChoice {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return MultiChoice{names: out}
}

// Candidates implements Selection.
func (m MultiChoice) Candidates() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Empty implements Selection.
func (m MultiChoice) Empty() bool { return len(m.names) == 0 }

// decodeSelection reads a wire value: a string is a single choice, an array a
// multi choice and null means no selection.
func decodeSelection(raw json.RawMessage) (Selection, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		return SingleChoice{Candidate: name}, nil
	case '[':
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		return NewMultiChoice(names...), nil
	default:
		return nil, fmt.Errorf("%w: unexpected value %s", ErrInvalidSelection, string(raw))
	}
}

// encodeSelection returns the wire value for a selection under role.
func encodeSelection(role Role, s Selection) any {
	if role.Policy() == MultiSelect {
		names := []string{}
		if s != nil {
			names = append(names, s.Candidates()...)
		}
		return names
	}
	if s == nil || s.Empty() {
		return nil
	}
	return s.Candidates()[0]
}

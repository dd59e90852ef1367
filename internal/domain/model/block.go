package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Block is one finalized entry of the masked chain. Every vote in a block
// belongs to the block's precinct.
type Block struct {
	Index        int     `json:"index"`
	Timestamp    float64 `json:"timestamp"`
	Precinct     string  `json:"barangay"`
	Votes        []Vote  `json:"votes"`
	PreviousHash string  `json:"previous_hash"`
	Hash         string  `json:"hash"`
}

// FinalizedVotes flattens blocks into votes labelled with their block's
// precinct. Votes that carry their own precinct keep it.
func FinalizedVotes(blocks []Block) []Vote {
	n := 0
	for _, b := range blocks {
		n += len(b.Votes)
	}
	out := make([]Vote, 0, n)
	for _, b := range blocks {
		for _, v := range b.Votes {
			if v.Precinct == "" {
				v.Precinct = b.Precinct
			}
			out = append(out, v)
		}
	}
	return out
}

// PendingSet holds not-yet-finalized votes keyed by precinct. Precincts keep
// the order in which they were added (document order when decoded).
type PendingSet struct {
	order []string
	votes map[string][]Vote
}

// Add appends votes under precinct.
func (p *PendingSet) Add(precinct string, votes ...Vote) {
	if p.votes == nil {
		p.votes = make(map[string][]Vote)
	}
	if _, ok := p.votes[precinct]; !ok {
		p.order = append(p.order, precinct)
		p.votes[precinct] = []Vote{}
	}
	for _, v := range votes {
		if v.Precinct == "" {
			v.Precinct = precinct
		}
		p.votes[precinct] = append(p.votes[precinct], v)
	}
}

// Precincts returns the precinct keys in insertion order.
func (p PendingSet) Precincts() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Votes returns the pending votes for precinct.
func (p PendingSet) Votes(precinct string) []Vote {
	return p.votes[precinct]
}

// Len returns the number of pending votes across all precincts.
func (p PendingSet) Len() int {
	n := 0
	for _, vs := range p.votes {
		n += len(vs)
	}
	return n
}

// All returns every pending vote in precinct order.
func (p PendingSet) All() []Vote {
	out := make([]Vote, 0, p.Len())
	for _, k := range p.order {
		out = append(out, p.votes[k]...)
	}
	return out
}

// UnmarshalJSON decodes a precinct -> votes object keeping key order.
func (p *PendingSet) UnmarshalJSON(data []byte) error {
	*p = PendingSet{}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("pending set: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("pending set: expected string key, got %v", keyTok)
		}
		var votes []Vote
		if err := dec.Decode(&votes); err != nil {
			return fmt.Errorf("pending set %q: %w", key, err)
		}
		p.Add(key, votes...)
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the set as an object in insertion order.
func (p PendingSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		vs, err := json.Marshal(p.votes[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vs)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

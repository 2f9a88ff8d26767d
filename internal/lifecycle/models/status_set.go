package models

import "encoding/json"

// StatusSet is an insertion-ordered set of status codes. Values are immutable:
// With and Union return new sets.
type StatusSet struct {
	codes []string
}

// NewStatusSet builds a set from codes, dropping duplicates and empty codes.
func NewStatusSet(codes ...string) StatusSet {
	var s StatusSet
	for _, c := range codes {
		s = s.With(c)
	}
	return s
}

// Contains reports whether code is in the set.
func (s StatusSet) Contains(code string) bool {
	for _, c := range s.codes {
		if c == code {
			return true
		}
	}
	return false
}

// With returns s ∪ {code}.
func (s StatusSet) With(code string) StatusSet {
	if code == "" || s.Contains(code) {
		return s
	}
	next := make([]string, len(s.codes), len(s.codes)+1)
	copy(next, s.codes)
	return StatusSet{codes: append(next, code)}
}

// Union returns s ∪ other, keeping s's order first.
func (s StatusSet) Union(other StatusSet) StatusSet {
	out := s
	for _, c := range other.codes {
		out = out.With(c)
	}
	return out
}

// IsSupersetOf reports whether every code of other is in s.
func (s StatusSet) IsSupersetOf(other StatusSet) bool {
	for _, c := range other.codes {
		if !s.Contains(c) {
			return false
		}
	}
	return true
}

func (s StatusSet) Len() int { return len(s.codes) }

// Codes returns a copy of the codes in insertion order.
func (s StatusSet) Codes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}

func (s StatusSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Codes())
}

func (s *StatusSet) UnmarshalJSON(data []byte) error {
	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return err
	}
	*s = NewStatusSet(codes...)
	return nil
}

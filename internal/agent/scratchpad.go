package agent

import "slices"

// Scratchpad is the ordered, append-only record of one run's thoughts,
// actions and observations. It is owned by a single run and is not safe
// for concurrent use.
type Scratchpad struct {
	entries []Entry
}

func (s *Scratchpad) append(e Entry) Entry {
	s.entries = append(s.entries, e)
	return e
}

// Entries returns a copy of the entries.
func (s *Scratchpad) Entries() []Entry {
	return slices.Clone(s.entries)
}

// Len returns the number of entries.
func (s *Scratchpad) Len() int {
	return len(s.entries)
}

// LastObservation returns the payload of the most recent observation.
func (s *Scratchpad) LastObservation() (string, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Kind == EntryObservation {
			return s.entries[i].Payload, true
		}
	}
	return "", false
}

// ToolCalls returns the number of action entries.
func (s *Scratchpad) ToolCalls() int {
	n := 0
	for _, e := range s.entries {
		if e.Kind == EntryAction {
			n++
		}
	}
	return n
}

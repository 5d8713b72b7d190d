package difficulty

import "sort"

// Store exposes level retrieval for HTTP handlers and the roast service.
type Store interface {
	List() []Level
	FindByID(id string) (Level, bool)
}

// MemoryStore holds levels keyed by identifier, listed from gentlest to harshest.
type MemoryStore struct {
	byID  map[string]Level
	order []string
}

// NewMemoryStore indexes the supplied levels. Entries with an unknown ID are dropped
// and a later entry replaces an earlier one with the same ID.
func NewMemoryStore(items []Level) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]Level, len(items))}
	for _, item := range items {
		id, ok := Lookup(item.ID)
		if !ok {
			continue
		}
		if _, seen := s.byID[id]; !seen {
			s.order = append(s.order, id)
		}
		item.ID = id
		s.byID[id] = item
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		return severity(s.order[i]) < severity(s.order[j])
	})
	return s
}

// List returns the levels from easy to hard.
func (s *MemoryStore) List() []Level {
	levels := make([]Level, 0, len(s.order))
	for _, id := range s.order {
		levels = append(levels, s.byID[id])
	}
	return levels
}

// FindByID looks up a level, accepting any casing or surrounding spaces.
func (s *MemoryStore) FindByID(id string) (Level, bool) {
	normalized, ok := Lookup(id)
	if !ok {
		return Level{}, false
	}
	level, ok := s.byID[normalized]
	return level, ok
}

// Resolve parses raw and returns the matching level, falling back to Default.
func Resolve(s Store, raw string) Level {
	if level, ok := s.FindByID(Parse(raw)); ok {
		return level
	}
	level, _ := s.FindByID(Default)
	return level
}

func severity(id string) int {
	switch id {
	case Easy:
		return 0
	case Medium:
		return 1
	default:
		return 2
	}
}

package view

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// Direction is the sort direction of a column.
type Direction int

const (
	Unsorted Direction = iota
	Ascending
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "none"
	}
}

// MarshalText renders the direction for JSON payloads.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// SortState is the active presentation sort. The zero value means load order.
type SortState struct {
	Field     workorder.Field `json:"field,omitempty"`
	Direction Direction       `json:"direction"`
}

// Sorted reports whether a column sort is active.
func (s SortState) Sorted() bool { return s.Direction != Unsorted }

// SortState returns the active sort.
func (s *Store) SortState() SortState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sort
}

// ToggleSort advances the sort of field through ascending, descending and
// back to load order. Toggling a different field starts at ascending.
// Sorting is stable over load order and only changes presentation order.
func (s *Store) ToggleSort(field workorder.Field) SortState {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Ascending
	if s.sort.Field == field {
		switch s.sort.Direction {
		case Ascending:
			next = Descending
		case Descending:
			next = Unsorted
		}
	}

	s.applySort(SortState{Field: field, Direction: next})
	return s.sort
}

// applySort rebuilds presentation order for st. Callers hold s.mu.
func (s *Store) applySort(st SortState) {
	if !st.Sorted() {
		s.sort = SortState{}
		s.order = append(s.order[:0], s.base...)
		return
	}

	keys := make(map[string]sortKey, len(s.base))
	for _, id := range s.base {
		keys[id] = s.keyFor(s.rows[id], st.Field)
	}
	order := append([]string(nil), s.base...)
	slices.SortStableFunc(order, func(a, b string) int {
		c := s.compareKeys(keys[a], keys[b])
		if st.Direction == Descending {
			return -c
		}
		return c
	})

	s.order = order
	s.sort = st
}

type keyKind int

const (
	kindNumber keyKind = iota
	kindTime
	kindText
)

type sortKey struct {
	empty bool
	kind  keyKind
	num   float64
	at    time.Time
	text  string
}

func (s *Store) keyFor(w *workorder.WorkOrder, field workorder.Field) sortKey {
	raw := strings.TrimSpace(w.Value(field))
	if raw == "" {
		return sortKey{empty: true}
	}
	if field == workorder.FieldProjectInfo {
		return sortKey{kind: kindText, text: raw}
	}
	if field.Numeric() {
		n, _ := strconv.Atoi(raw)
		return sortKey{kind: kindNumber, num: float64(n)}
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return sortKey{kind: kindNumber, num: n}
	}
	if at, ok := parseTimestamp(raw); ok {
		return sortKey{kind: kindTime, at: at}
	}
	return sortKey{kind: kindText, text: raw}
}

// compareKeys orders numbers before timestamps before text, with empty
// values last.
func (s *Store) compareKeys(a, b sortKey) int {
	if a.empty || b.empty {
		switch {
		case a.empty && b.empty:
			return 0
		case a.empty:
			return 1
		default:
			return -1
		}
	}
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case kindNumber:
		return cmp.Compare(a.num, b.num)
	case kindTime:
		return a.at.Compare(b.at)
	default:
		return s.collator.CompareString(a.text, b.text)
	}
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

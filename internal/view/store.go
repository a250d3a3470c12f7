// Package view holds the in-memory work order collection shown to the
// presentation layer.
//
// The lifecycle controller is the only writer and always writes from the
// scheduler loop. Readers may call from any goroutine (HTTP handlers), so the
// store guards its state with a RWMutex and hands out copies only.
package view

import (
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// Store is the identifier-keyed work order collection.
type Store struct {
	mu sync.RWMutex

	rows  map[string]*workorder.WorkOrder
	base  []string // load order
	order []string // presentation order

	sort     SortState
	selected map[string]struct{}
	collator *collate.Collator
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rows:     make(map[string]*workorder.WorkOrder),
		selected: make(map[string]struct{}),
		collator: collate.New(language.Und, collate.IgnoreCase, collate.Numeric),
	}
}

// Load replaces the collection with copies of records and resets sorting
// and selection. Records without an identifier are skipped; for duplicate
// identifiers the first record wins. It returns the number of rows loaded.
func (s *Store) Load(records []workorder.WorkOrder) int {
	return s.replace(records, false)
}

// Reload replaces the collection like Load but keeps the active sort and
// the selection of rows that are still present.
func (s *Store) Reload(records []workorder.WorkOrder) int {
	return s.replace(records, true)
}

func (s *Store) replace(records []workorder.WorkOrder, keepDecoration bool) int {
	rows := make(map[string]*workorder.WorkOrder, len(records))
	base := make([]string, 0, len(records))
	for i := range records {
		id := records[i].ID
		if id == "" {
			continue
		}
		if _, dup := rows[id]; dup {
			continue
		}
		row := records[i].Clone()
		if row.RemainingMinutes < 0 {
			row.RemainingMinutes = 0
		}
		rows[id] = &row
		base = append(base, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	s.base = base
	s.order = append([]string(nil), base...)

	sortState := SortState{}
	selected := make(map[string]struct{})
	if keepDecoration {
		sortState = s.sort
		for id := range s.selected {
			if _, ok := rows[id]; ok {
				selected[id] = struct{}{}
			}
		}
	}
	s.selected = selected
	s.applySort(sortState)
	return len(base)
}

// SetField assigns a column of the row with the given identifier. Writes to
// missing rows, read-only columns and invalid values are dropped and
// reported as false.
func (s *Store) SetField(id string, field workorder.Field, value string) bool {
	return s.Mutate(id, func(w *workorder.WorkOrder) bool { return w.Set(field, value) })
}

// SetState sets the state of a row.
func (s *Store) SetState(id string, state workorder.State) bool {
	return s.Mutate(id, func(w *workorder.WorkOrder) bool {
		w.State = state
		return true
	})
}

// SetRemainingMinutes sets the countdown mirror of a row.
func (s *Store) SetRemainingMinutes(id string, minutes int) bool {
	if minutes < 0 {
		minutes = 0
	}
	return s.Mutate(id, func(w *workorder.WorkOrder) bool {
		w.RemainingMinutes = minutes
		return true
	})
}

// Mutate applies fn to the row with the given identifier. It reports false
// when the row is missing or fn rejects the change. The identifier cannot be
// changed through fn.
func (s *Store) Mutate(id string, fn func(*workorder.WorkOrder) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return false
	}
	next := row.Clone()
	if !fn(&next) {
		return false
	}
	next.ID = id
	*row = next
	return true
}

// Has reports whether a row with the identifier exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[id]
	return ok
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Get returns a copy of one row.
func (s *Store) Get(id string) (workorder.WorkOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return workorder.WorkOrder{}, false
	}
	return row.Clone(), true
}

// GetAll returns copies of every row in presentation order.
func (s *Store) GetAll() []workorder.WorkOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workorder.WorkOrder, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id].Clone())
	}
	return out
}

// GetSelected returns copies of the selected rows in presentation order.
func (s *Store) GetSelected() []workorder.WorkOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workorder.WorkOrder, 0, len(s.selected))
	for _, id := range s.order {
		if _, ok := s.selected[id]; ok {
			out = append(out, s.rows[id].Clone())
		}
	}
	return out
}

// SelectedIDs returns the selected identifiers in presentation order.
func (s *Store) SelectedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.selected))
	for _, id := range s.order {
		if _, ok := s.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Select replaces the selection with the present identifiers among ids and
// returns them in presentation order.
func (s *Store) Select(ids []string) []string {
	s.mu.Lock()
	s.selected = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.rows[id]; ok {
			s.selected[id] = struct{}{}
		}
	}
	s.mu.Unlock()
	return s.SelectedIDs()
}

// Search selects every row with a displayed column containing query,
// ignoring case, and returns the matches in presentation order. An empty
// query clears the selection.
func (s *Store) Search(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))

	s.mu.Lock()
	s.selected = make(map[string]struct{})
	if query != "" {
		for _, id := range s.order {
			row := s.rows[id]
			for _, f := range workorder.Fields {
				if strings.Contains(strings.ToLower(row.Value(f)), query) {
					s.selected[id] = struct{}{}
					break
				}
			}
		}
	}
	s.mu.Unlock()
	return s.SelectedIDs()
}

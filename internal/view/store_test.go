package view

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

func ids(rows []workorder.WorkOrder) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func sample() []workorder.WorkOrder {
	return []workorder.WorkOrder{
		{ID: "WO3", State: workorder.StateQueued, Description: "beta", RemainingMinutes: 10, ConfigItems: []workorder.ConfigItem{{ID: "a"}}},
		{ID: "WO1", State: workorder.StateInProgress, Description: "Alpha", RemainingMinutes: 9},
		{ID: "WO2", State: workorder.StateQueued, Description: "alpha", RemainingMinutes: 10},
		{ID: "WO4", State: workorder.StatePending, Description: "", RemainingMinutes: 0},
	}
}

func TestLoadCopiesAndSkipsInvalid(t *testing.T) {
	s := New()
	records := append(sample(),
		workorder.WorkOrder{ID: ""},
		workorder.WorkOrder{ID: "WO1", Description: "duplicate"},
	)

	require.Equal(t, 4, s.Load(records))
	require.Equal(t, []string{"WO3", "WO1", "WO2", "WO4"}, ids(s.GetAll()))

	records[0].ConfigItems[0].ID = "mutated"
	got, ok := s.Get("WO3")
	require.True(t, ok)
	require.Equal(t, "a", got.ConfigItems[0].ID, "store keeps its own copy")

	wo1, _ := s.Get("WO1")
	require.Equal(t, "Alpha", wo1.Description, "first duplicate wins")
}

func TestLoadIsIdempotent(t *testing.T) {
	s := New()
	s.Load(sample())
	first := s.GetAll()
	s.Load(sample())
	require.Equal(t, first, s.GetAll())
}

func TestSetFieldMissingIsNoop(t *testing.T) {
	s := New()
	s.Load(sample())

	require.False(t, s.SetField("missing", workorder.FieldPM, "x"))
	require.False(t, s.SetState("missing", workorder.StateQueued))
	require.False(t, s.SetRemainingMinutes("missing", 3))
	require.Equal(t, 4, s.Len())

	require.True(t, s.SetField("WO1", workorder.FieldPM, "Jane"))
	wo, _ := s.Get("WO1")
	require.Equal(t, "Jane", wo.PM)

	require.False(t, s.SetField("WO1", workorder.FieldTimeMin, "-2"))
	require.False(t, s.SetField("WO1", workorder.FieldID, "WO9"))
	require.True(t, s.Has("WO1"))
}

func TestMutateCannotChangeIdentifier(t *testing.T) {
	s := New()
	s.Load(sample())

	require.True(t, s.Mutate("WO1", func(w *workorder.WorkOrder) bool {
		w.ID = "hijack"
		w.LastUpdate = "note"
		return true
	}))
	wo, ok := s.Get("WO1")
	require.True(t, ok)
	require.Equal(t, "note", wo.LastUpdate)
	require.False(t, s.Has("hijack"))

	require.False(t, s.Mutate("WO1", func(w *workorder.WorkOrder) bool {
		w.LastUpdate = "rejected"
		return false
	}))
	wo, _ = s.Get("WO1")
	require.Equal(t, "note", wo.LastUpdate, "rejected mutation leaves the row untouched")
}

func TestGetAllReturnsCopies(t *testing.T) {
	s := New()
	s.Load(sample())

	rows := s.GetAll()
	rows[0].State = "MUTATED"
	rows[0].ConfigItems[0].ID = "mutated"

	wo, _ := s.Get("WO3")
	require.Equal(t, workorder.StateQueued, wo.State)
	require.Equal(t, "a", wo.ConfigItems[0].ID)
}

func TestToggleSortThreeTimesRestoresLoadOrder(t *testing.T) {
	s := New()
	s.Load(sample())
	original := ids(s.GetAll())

	st := s.ToggleSort(workorder.FieldTimeMin)
	require.Equal(t, Ascending, st.Direction)
	require.Equal(t, []string{"WO4", "WO1", "WO3", "WO2"}, ids(s.GetAll()), "ties keep load order")

	st = s.ToggleSort(workorder.FieldTimeMin)
	require.Equal(t, Descending, st.Direction)
	require.Equal(t, []string{"WO3", "WO2", "WO1", "WO4"}, ids(s.GetAll()), "ties keep load order descending too")

	st = s.ToggleSort(workorder.FieldTimeMin)
	require.False(t, st.Sorted())
	require.Equal(t, original, ids(s.GetAll()))
}

func TestToggleSortTextIsCaseInsensitiveWithEmptyLast(t *testing.T) {
	s := New()
	s.Load(sample())

	s.ToggleSort(workorder.FieldDescription)
	require.Equal(t, []string{"WO1", "WO2", "WO3", "WO4"}, ids(s.GetAll()))
}

func TestToggleOtherFieldStartsAscending(t *testing.T) {
	s := New()
	s.Load(sample())

	s.ToggleSort(workorder.FieldTimeMin)
	s.ToggleSort(workorder.FieldTimeMin)
	st := s.ToggleSort(workorder.FieldID)
	require.Equal(t, SortState{Field: workorder.FieldID, Direction: Ascending}, st)
	require.Equal(t, []string{"WO1", "WO2", "WO3", "WO4"}, ids(s.GetAll()))
}

func TestSortDoesNotAffectLookup(t *testing.T) {
	s := New()
	s.Load(sample())
	s.ToggleSort(workorder.FieldDescription)

	require.True(t, s.SetState("WO3", workorder.StateInProgress))
	wo, _ := s.Get("WO3")
	require.Equal(t, workorder.StateInProgress, wo.State)
}

func TestSortTimestampsAndNumbers(t *testing.T) {
	s := New()
	s.Load([]workorder.WorkOrder{
		{ID: "a", LastUpdate: "2024-03-01 10:00"},
		{ID: "b", LastUpdate: "2023-12-31"},
		{ID: "c", LastUpdate: "free text"},
		{ID: "d", LastUpdate: "2024-03-01T09:00:00"},
		{ID: "e", DealCode: "10"},
	})

	s.ToggleSort(workorder.FieldLastUpdate)
	require.Equal(t, []string{"b", "d", "a", "c", "e"}, ids(s.GetAll()))
}

func TestLoadResetsSortAndSelection(t *testing.T) {
	s := New()
	s.Load(sample())
	s.ToggleSort(workorder.FieldID)
	s.Select([]string{"WO1"})

	s.Load(sample())
	require.False(t, s.SortState().Sorted())
	require.Empty(t, s.GetSelected())
}

func TestReloadKeepsSortAndSurvivingSelection(t *testing.T) {
	s := New()
	s.Load(sample())
	s.ToggleSort(workorder.FieldID)
	s.Select([]string{"WO1", "WO4"})

	next := sample()[:3]
	next = append(next, workorder.WorkOrder{ID: "WO0", Description: "new"})
	require.Equal(t, 4, s.Reload(next))

	require.Equal(t, SortState{Field: workorder.FieldID, Direction: Ascending}, s.SortState())
	require.Equal(t, []string{"WO0", "WO1", "WO2", "WO3"}, ids(s.GetAll()))
	require.Equal(t, []string{"WO1"}, s.SelectedIDs())
}

func TestSelectAndSearch(t *testing.T) {
	s := New()
	s.Load(sample())

	require.Equal(t, []string{"WO3", "WO1"}, s.Select([]string{"WO1", "missing", "WO3"}))
	require.Equal(t, []string{"WO3", "WO1"}, ids(s.GetSelected()))

	require.Equal(t, []string{"WO1", "WO2"}, s.Search("ALPHA"))
	require.Equal(t, []string{"WO1", "WO2"}, s.SelectedIDs())

	require.Equal(t, []string{"WO4"}, s.Search("pending"))
	require.Empty(t, s.Search("   "))
	require.Empty(t, s.GetSelected())
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := New()
	s.Load(sample())

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				_ = s.GetAll()
				_, _ = s.Get("WO1")
			}
		}()
	}
	for i := range 200 {
		s.SetRemainingMinutes("WO1", i)
		if i%50 == 0 {
			s.ToggleSort(workorder.FieldTimeMin)
		}
	}
	wg.Wait()

	wo, _ := s.Get("WO1")
	require.Equal(t, 199, wo.RemainingMinutes)
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/journal"
	"git.home.luguber.info/inful/wodesk/internal/server/responses"
)

// JournalReader reads the recorded entries of one work order.
type JournalReader interface {
	ByWorkOrder(ctx context.Context, workOrderID string) ([]journal.Entry, error)
}

// JournalHandlers serves the journal history of a work order.
type JournalHandlers struct {
	store        JournalReader
	history      *journal.History // optional
	errorAdapter *errors.HTTPErrorAdapter
}

// NewJournalHandlers creates the journal handlers. history may be nil.
func NewJournalHandlers(store JournalReader, history *journal.History) *JournalHandlers {
	return &JournalHandlers{
		store:        store,
		history:      history,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleWorkOrderJournal serves GET /api/workorders/{id}/journal.
func (h *JournalHandlers) HandleWorkOrderJournal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("work order id is required").Build())
		return
	}
	entries, err := h.store.ByWorkOrder(r.Context(), id)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	records, err := journal.DecodeAll(entries)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.WrapError(err, errors.CategoryJournal, "corrupt journal entry").
			WithContext("work_order_id", id).Build())
		return
	}

	resp := &responses.JournalResponse{WorkOrderID: id, Records: records}
	if h.history != nil {
		if s, ok := h.history.Get(id); ok {
			resp.Summary = &s
		}
	}
	respond(h.errorAdapter, w, r, http.StatusOK, resp)
}

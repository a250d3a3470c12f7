package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/lifecycle"
	"git.home.luguber.info/inful/wodesk/internal/server/responses"
	"git.home.luguber.info/inful/wodesk/internal/view"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// Engine is the lifecycle surface the API drives. *lifecycle.Controller
// implements it.
type Engine interface {
	Rows() []workorder.WorkOrder
	Selected() []workorder.WorkOrder
	SortState() view.SortState
	Select(ctx context.Context, ids []string) ([]string, error)
	Search(ctx context.Context, query string) ([]string, error)
	ToggleSort(ctx context.Context, field workorder.Field) (view.SortState, error)
	ApplyState(ctx context.Context, ids []string, target workorder.State, minutes int) ([]string, error)
	ApplyStateInput(ctx context.Context, ids []string, target workorder.State, duration string) ([]string, error)
	ApplyLog(ctx context.Context, ids []string, title, note string) ([]string, error)
	Clear(ctx context.Context) (lifecycle.Reconciliation, error)
	SoftClear(ctx context.Context) (lifecycle.Reconciliation, error)
	Refresh(ctx context.Context) (lifecycle.Reconciliation, error)
	Timers(ctx context.Context) ([]lifecycle.Timer, error)
}

// WorkOrderHandlers serves the work order API.
type WorkOrderHandlers struct {
	engine       Engine
	errorAdapter *errors.HTTPErrorAdapter
}

// NewWorkOrderHandlers creates the work order handlers.
func NewWorkOrderHandlers(engine Engine) *WorkOrderHandlers {
	return &WorkOrderHandlers{
		engine:       engine,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

type selectRequest struct {
	IDs []string `json:"ids"`
}

type searchRequest struct {
	Query string `json:"query"`
}

// stateRequest applies a state. Duration ("mm" or "hh:mm") wins over Minutes.
type stateRequest struct {
	IDs      []string `json:"ids"`
	State    string   `json:"state"`
	Minutes  int      `json:"minutes,omitempty"`
	Duration string   `json:"duration,omitempty"`
}

type logRequest struct {
	IDs   []string `json:"ids"`
	Title string   `json:"title"`
	Note  string   `json:"note"`
}

// HandleList serves GET /api/workorders. ?selected=true limits the rows to the selection.
func (h *WorkOrderHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	rows := h.engine.Rows()
	if sel := r.URL.Query().Get("selected"); sel == "1" || strings.EqualFold(sel, "true") {
		rows = h.engine.Selected()
	}
	if rows == nil {
		rows = []workorder.WorkOrder{}
	}
	respond(h.errorAdapter, w, r, http.StatusOK, &responses.WorkOrdersResponse{
		Count:     len(rows),
		Sort:      h.engine.SortState(),
		Rows:      rows,
		Timestamp: time.Now().UTC(),
	})
}

// HandleSelect serves POST /api/workorders/select.
func (h *WorkOrderHandlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	ids, err := h.engine.Select(r.Context(), req.IDs)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, &responses.SelectionResponse{IDs: nonNil(ids)})
}

// HandleSearch serves POST /api/workorders/search.
func (h *WorkOrderHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	ids, err := h.engine.Search(r.Context(), req.Query)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, &responses.SelectionResponse{IDs: nonNil(ids)})
}

// HandleSort serves POST /api/workorders/sort/{field}.
func (h *WorkOrderHandlers) HandleSort(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("field")
	field, ok := workorder.ParseField(raw)
	if !ok {
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("unknown sort field").
			WithContext("field", raw).Build())
		return
	}
	st, err := h.engine.ToggleSort(r.Context(), field)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, &responses.SortResponse{Sort: st})
}

// HandleState serves POST /api/workorders/state.
func (h *WorkOrderHandlers) HandleState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	target := workorder.State(strings.TrimSpace(req.State))

	var (
		applied []string
		err     error
	)
	if req.Duration != "" {
		applied, err = h.engine.ApplyStateInput(r.Context(), req.IDs, target, req.Duration)
	} else {
		applied, err = h.engine.ApplyState(r.Context(), req.IDs, target, req.Minutes)
	}
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusAccepted, &responses.ApplyResponse{Applied: nonNil(applied)})
}

// HandleLog serves POST /api/workorders/log.
func (h *WorkOrderHandlers) HandleLog(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	applied, err := h.engine.ApplyLog(r.Context(), req.IDs, req.Title, req.Note)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusAccepted, &responses.ApplyResponse{Applied: nonNil(applied)})
}

// HandleClear serves POST /api/clear.
func (h *WorkOrderHandlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, h.engine.Clear)
}

// HandleSoftClear serves POST /api/soft-clear.
func (h *WorkOrderHandlers) HandleSoftClear(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, h.engine.SoftClear)
}

// HandleRefresh serves POST /api/refresh.
func (h *WorkOrderHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, h.engine.Refresh)
}

// reconcile reports a stale result with 200 and stale=true: a failed listing
// is not an error of the request.
func (h *WorkOrderHandlers) reconcile(w http.ResponseWriter, r *http.Request, fn func(context.Context) (lifecycle.Reconciliation, error)) {
	rec, err := fn(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(h.errorAdapter, w, r, http.StatusOK, &responses.ReconcileResponse{
		Reconciliation: rec,
		Timestamp:      time.Now().UTC(),
	})
}

// HandleTimers serves GET /api/timers.
func (h *WorkOrderHandlers) HandleTimers(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Timers(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	out := make([]responses.TimerInfo, 0, len(list))
	for _, t := range list {
		out = append(out, responses.TimerInfo{WorkOrderID: t.WorkOrderID, RemainingSeconds: t.Remaining.Seconds()})
	}
	respond(h.errorAdapter, w, r, http.StatusOK, &responses.TimersResponse{Timers: out})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

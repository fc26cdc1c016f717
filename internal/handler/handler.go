package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"nvdiff/internal/codec"
	"nvdiff/internal/domain"
	"nvdiff/internal/ledger"
	"nvdiff/internal/repository"
	"nvdiff/internal/service"
)

// LedgerHandler serves read-only ledger queries
type LedgerHandler struct {
	svc    *service.ChangeService
	ledger *ledger.Ledger
	logger *zap.Logger
}

// NewLedgerHandler creates a handler over the service's ledger
func NewLedgerHandler(svc *service.ChangeService, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerHandler{svc: svc, ledger: svc.Ledger(), logger: logger}
}

// Register adds the handler's routes to mux
func (h *LedgerHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /api/nids/{nid}", h.GetFeature)
	mux.HandleFunc("GET /api/nids/{nid}/history", h.GetHistory)
	mux.HandleFunc("GET /api/datasets/{dataset}", h.GetDataset)
	mux.HandleFunc("GET /api/datasets/{dataset}/last", h.GetLastCycle)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// LastCycleResponse describes the last committed cycle of a dataset
type LastCycleResponse struct {
	Dataset   string    `json:"dataset"`
	CycleID   string    `json:"cycle_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports liveness and the ledger size
func (h *LedgerHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{"status": "ok", "entries": h.ledger.Len()}, http.StatusOK)
}

// GetFeature reconstructs one object as of the as_of query parameter
func (h *LedgerHandler) GetFeature(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	nid := domain.NID(r.PathValue("nid"))

	f, err := h.ledger.Reconstruct(nid, asOf)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownNID) {
			h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("failed to reconstruct", zap.String("nid", string(nid)), zap.Error(err))
		h.writeError(w, "Failed to reconstruct", err.Error(), http.StatusInternalServerError)
		return
	}
	if f == nil {
		h.writeError(w, "Not found", "object did not exist at "+asOf.Format(time.RFC3339), http.StatusNotFound)
		return
	}

	h.writeJSON(w, f, http.StatusOK)
}

// GetHistory returns every ledger entry of one object
func (h *LedgerHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	nid := domain.NID(r.PathValue("nid"))
	history := h.ledger.History(nid)
	if len(history) == 0 {
		h.writeError(w, "Not found", "no history for "+string(nid), http.StatusNotFound)
		return
	}
	h.writeJSON(w, history, http.StatusOK)
}

// GetDataset rebuilds a dataset as of the as_of query parameter
func (h *LedgerHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	snap := h.ledger.Snapshot(r.PathValue("dataset"), asOf)

	w.Header().Set("Content-Type", "application/json")
	if err := codec.NewJSONCodec().Export(snap, w); err != nil {
		// headers already sent
		h.logger.Error("failed to export dataset", zap.Error(err))
	}
}

// GetLastCycle returns the last committed cycle of a dataset
func (h *LedgerHandler) GetLastCycle(w http.ResponseWriter, r *http.Request) {
	dataset := r.PathValue("dataset")
	id, ts, err := h.svc.LastCycle(r.Context(), dataset)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("failed to read last cycle", zap.String("dataset", dataset), zap.Error(err))
		h.writeError(w, "Failed to read last cycle", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, LastCycleResponse{Dataset: dataset, CycleID: id, Timestamp: ts}, http.StatusOK)
}

// asOf parses the as_of query parameter, defaulting to now. It writes the
// error reply itself.
func (h *LedgerHandler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC(), true
	}
	ts, err := codec.ParseTimestamp(raw)
	if err != nil {
		h.writeError(w, "Invalid as_of", err.Error(), http.StatusBadRequest)
		return time.Time{}, false
	}
	return ts, true
}

// Helper methods

func (h *LedgerHandler) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode JSON", zap.Error(err))
	}
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.logger.Warn("failed to encode error response", zap.Error(err))
	}
}

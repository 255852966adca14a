package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// ArbService lists detected opportunities.
type ArbService interface {
	ListRecent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error)
}

// StreamReader pages through a durable stream.
type StreamReader interface {
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// ArbHandler serves opportunity history.
type ArbHandler struct {
	arb    ArbService
	stream StreamReader
	name   string
	logger *slog.Logger
}

// NewArbHandler creates an ArbHandler. stream may be nil, in which case the
// stream endpoint answers 503.
func NewArbHandler(arb ArbService, stream StreamReader, streamName string, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{arb: arb, stream: stream, name: streamName, logger: logger}
}

type listArbResponse struct {
	Opportunities []domain.OpportunityRecord `json:"opportunities"`
}

// ListRecent handles GET /api/opportunities/recent?limit=20 (max 200).
func (h *ArbHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opps, err := h.arb.ListRecent(r.Context(), queryInt(r, "limit", 20, 200))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.OpportunityRecord{}
	}
	writeJSON(w, http.StatusOK, listArbResponse{Opportunities: opps})
}

type streamEntry struct {
	ID     string          `json:"id"`
	Record json.RawMessage `json:"record"`
}

type streamResponse struct {
	Entries []streamEntry `json:"entries"`
	Next    string        `json:"next"`
}

// Stream handles GET /api/opportunities/stream?after=<id>&count=100. Clients
// pass the returned next ID back as after to page forward.
func (h *ArbHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream not configured")
		return
	}
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	msgs, err := h.stream.StreamRead(r.Context(), h.name, after, queryInt(r, "count", 100, 1000))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read opportunity stream failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to read stream")
		return
	}

	resp := streamResponse{Entries: make([]streamEntry, 0, len(msgs)), Next: after}
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			continue
		}
		resp.Entries = append(resp.Entries, streamEntry{ID: m.ID, Record: m.Payload})
		resp.Next = m.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

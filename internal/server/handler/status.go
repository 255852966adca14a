package handler

import (
	"net/http"
	"time"
)

// StatusSource reports live engine state.
type StatusSource interface {
	Synced() bool
}

// DetectorStats exposes detector memo counters.
type DetectorStats interface {
	Stats() (hits, misses uint64)
}

// StatusHandler serves the running mode, triangle and sync state.
type StatusHandler struct {
	mode      string
	triangle  string
	books     StatusSource
	detector  DetectorStats
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, triangle string, books StatusSource, detector DetectorStats, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, triangle: triangle, books: books, detector: detector, startedAt: startedAt}
}

type statusResponse struct {
	Mode          string `json:"mode"`
	Triangle      string `json:"triangle"`
	Synced        bool   `json:"synced"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	MemoHits      uint64 `json:"memo_hits"`
	MemoMisses    uint64 `json:"memo_misses"`
}

// GetStatus handles GET /api/status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Mode:          h.mode,
		Triangle:      h.triangle,
		Synced:        h.books.Synced(),
		UptimeSeconds: int64(max(time.Since(h.startedAt), 0) / time.Second),
	}
	if h.detector != nil {
		resp.MemoHits, resp.MemoMisses = h.detector.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

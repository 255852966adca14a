package handler

import (
	"net/http"
	"strings"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// BookViews serves published book views.
type BookViews interface {
	Views() []domain.BookView
	View(symbol string) (domain.BookView, bool)
}

// BookHandler serves the three order books.
type BookHandler struct {
	books BookViews
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(books BookViews) *BookHandler {
	return &BookHandler{books: books}
}

// ListBooks handles GET /api/books.
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"books": h.books.Views()})
}

// GetBook handles GET /api/books/{symbol}. Symbols match case-insensitively.
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	v, ok := h.books.View(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

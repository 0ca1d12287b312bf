package httputil

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
)

// Pagination headers understood by the leads dashboard.
const (
	HeaderPaginationTotal = "x-pagination-total"
	HeaderPaginationLimit = "x-pagination-limit"
	HeaderPaginationPages = "x-pagination-pages"
	HeaderPaginationPage  = "x-pagination-page"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteList writes data with the pagination headers derived from total, limit and offset.
// Headers are omitted when limit is not positive.
func WriteList(w http.ResponseWriter, data any, total, limit, offset int) {
	if limit > 0 {
		pages := int(math.Ceil(float64(total) / float64(limit)))
		h := w.Header()
		h.Set(HeaderPaginationLimit, strconv.Itoa(limit))
		h.Set(HeaderPaginationTotal, strconv.Itoa(total))
		h.Set(HeaderPaginationPages, strconv.Itoa(pages))
		h.Set(HeaderPaginationPage, strconv.Itoa(offset/limit))
	}
	WriteJSON(w, http.StatusOK, data)
}

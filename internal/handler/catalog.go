package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/petitplat/api/internal/catalog"
)

// CatalogReader defines the resolver methods needed by catalog handlers.
// Satisfied by *catalog.Resolver.
type CatalogReader interface {
	Dishes(ctx context.Context) ([]catalog.DishInfo, error)
	Extras(ctx context.Context) ([]catalog.ExtraInfo, error)
}

// CatalogHandler serves the read-only dish and extra catalogs the edit
// screens pick from.
type CatalogHandler struct {
	reader CatalogReader
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(reader CatalogReader) *CatalogHandler {
	return &CatalogHandler{reader: reader}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog/dishes", h.Dishes)
	r.Get("/catalog/extras", h.Extras)
}

var weekdays = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

// Dishes handles GET /catalog/dishes. An optional ?day= filter (weekday name
// or YYYY-MM-DD) keeps only dishes served that day.
func (h *CatalogHandler) Dishes(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.reader.Dishes(r.Context())
	if err != nil {
		log.Printf("ERROR: list dishes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if s := r.URL.Query().Get("day"); s != "" {
		idx, ok := weekdays[strings.ToLower(s)]
		if !ok {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid day, use a weekday name or YYYY-MM-DD"})
				return
			}
			// time.Weekday is Sunday-first, Days is Monday-first.
			idx = (int(t.Weekday()) + 6) % 7
		}
		filtered := make([]catalog.DishInfo, 0, len(dishes))
		for _, d := range dishes {
			if d.Days[idx] {
				filtered = append(filtered, d)
			}
		}
		dishes = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"dishes": dishes})
}

// Extras handles GET /catalog/extras.
func (h *CatalogHandler) Extras(w http.ResponseWriter, r *http.Request) {
	extras, err := h.reader.Extras(r.Context())
	if err != nil {
		log.Printf("ERROR: list extras: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"extras": extras})
}

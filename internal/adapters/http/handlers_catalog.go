package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

func (rt *Router) listDiseases(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	diseases, err := rt.catalog.ListDiseases(r.Context(), ownerFromContext(r.Context()), ports.DiseaseQuery{
		Search: query.Get("search"),
		Crop:   query.Get("crop"),
		Sort:   query.Get("sort"),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if diseases == nil {
		diseases = []domain.DiseaseProfile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"diseases": diseases,
		"total":    len(diseases),
	})
}

func (rt *Router) cropSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions := rt.crops.Suggestions(r.URL.Query().Get("q"))
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (rt *Router) validateCrop(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "validate crop", errors.New("name is required")))
		return
	}
	writeJSON(w, http.StatusOK, rt.crops.ValidateCrop(name))
}

func (rt *Router) logFallback(r *http.Request, operation string, err error) {
	slog.Error("http_read_fallback",
		"request_id", requestIDFromContext(r.Context()),
		"operation", operation,
		"owner_id", ownerFromContext(r.Context()),
		"error", err,
	)
}

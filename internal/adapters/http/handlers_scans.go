package httpadapter

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

type pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

type scanListResponse struct {
	Scans      []domain.ScanRecord `json:"scans"`
	Pagination pagination          `json:"pagination"`
	Error      string              `json:"error,omitempty"`
}

type statsResponse struct {
	domain.ScanStats
	Error string `json:"error,omitempty"`
}

func newPagination(page *domain.ScanPage) pagination {
	out := pagination{Total: page.Total, Limit: page.Limit, Page: 1}
	if page.Limit > 0 {
		out.Page = page.Offset/page.Limit + 1
		out.TotalPages = (page.Total + page.Limit - 1) / page.Limit
	}
	return out
}

func (rt *Router) listScans(w http.ResponseWriter, r *http.Request) {
	filter, err := bindScanFilter(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	page, err := rt.scans.List(r.Context(), ownerFromContext(r.Context()), filter)
	if err != nil {
		if mapErrorToHTTPStatus(err) < http.StatusInternalServerError {
			rt.writeError(w, r, err)
			return
		}
		rt.logFallback(r, "list_scans", err)
		writeJSON(w, http.StatusInternalServerError, scanListResponse{
			Scans: []domain.ScanRecord{},
			Error: "scan history is unavailable",
		})
		return
	}

	scans := page.Scans
	if scans == nil {
		scans = []domain.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, scanListResponse{
		Scans:      scans,
		Pagination: newPagination(page),
	})
}

func bindScanFilter(r *http.Request) (domain.ScanFilter, error) {
	query := r.URL.Query()
	var filter domain.ScanFilter

	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &filter.Limit); err != nil {
		return filter, domain.WrapError(domain.ErrInvalidInput, "list scans", errors.New("limit must be an integer"))
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &filter.Offset); err != nil {
		return filter, domain.WrapError(domain.ErrInvalidInput, "list scans", errors.New("offset must be an integer"))
	}
	if err := runtime.BindQueryParameter("form", true, false, "crop_type", query, &filter.CropType); err != nil {
		return filter, domain.WrapError(domain.ErrInvalidInput, "list scans", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "severity", query, &filter.Severity); err != nil {
		return filter, domain.WrapError(domain.ErrInvalidInput, "list scans", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "search", query, &filter.Search); err != nil {
		return filter, domain.WrapError(domain.ErrInvalidInput, "list scans", err)
	}
	return filter, nil
}

func (rt *Router) deleteScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := rt.scans.Delete(r.Context(), ownerFromContext(r.Context()), id); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "scan deleted"})
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.scans.Stats(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		if mapErrorToHTTPStatus(err) < http.StatusInternalServerError {
			rt.writeError(w, r, err)
			return
		}
		rt.logFallback(r, "stats", err)
		writeJSON(w, http.StatusInternalServerError, statsResponse{
			ScanStats: domain.EmptyScanStats(),
			Error:     "statistics are unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{ScanStats: stats})
}

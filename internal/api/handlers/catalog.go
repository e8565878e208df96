package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

// CatalogHandler serves the read-only discovery endpoints.
type CatalogHandler struct {
	resolver calculator.Resolver
}

// NewCatalogHandler creates a CatalogHandler over resolver.
func NewCatalogHandler(resolver calculator.Resolver) *CatalogHandler {
	return &CatalogHandler{resolver: resolver}
}

// ListCalculatorsResponse is the response body for listing calculators.
type ListCalculatorsResponse struct {
	Data []calculator.Descriptor `json:"data"`
	Meta Meta                    `json:"meta"`
}

// ListCalculators handles GET /api/v1/calculators?category=&tag=&limit=&offset=.
// category and tag may be combined; results are in ascending id order.
func (h *CatalogHandler) ListCalculators(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, tag := strings.TrimSpace(q.Get("category")), strings.TrimSpace(q.Get("tag"))

	var items []calculator.Descriptor
	switch {
	case category != "":
		for d := range h.resolver.ListByCategory(category) {
			if tag == "" || hasTag(d, tag) {
				items = append(items, d)
			}
		}
	case tag != "":
		for d := range h.resolver.ListByTag(tag) {
			items = append(items, d)
		}
	default:
		items = h.resolver.All()
	}

	p := parsePaginationParams(r)
	writeJSON(w, http.StatusOK, ListCalculatorsResponse{
		Data: page(items, p),
		Meta: Meta{Total: len(items), Limit: p.Limit, Offset: p.Offset},
	})
}

// GetCalculator handles GET /api/v1/calculators/{id}.
func (h *CatalogHandler) GetCalculator(w http.ResponseWriter, r *http.Request) {
	d, err := h.resolver.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, calculator.ErrNotFound) {
			writeError(w, http.StatusNotFound, "calculator not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get calculator")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SearchCalculators handles GET /api/v1/calculators/search?q=.
// An empty query yields an empty list, not an error.
func (h *CatalogHandler) SearchCalculators(w http.ResponseWriter, r *http.Request) {
	results := h.resolver.Search(r.URL.Query().Get("q"))
	if results == nil {
		results = []calculator.Descriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": results, "meta": map[string]int{"total": len(results)}})
}

// ListCategories handles GET /api/v1/categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, _ *http.Request) {
	categories := h.resolver.Categories()
	if categories == nil {
		categories = []calculator.CategoryCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": categories})
}

// AuditCatalog handles GET /api/v1/catalog/audit.
func (h *CatalogHandler) AuditCatalog(w http.ResponseWriter, _ *http.Request) {
	findings := calculator.Audit(h.resolver.All())
	if findings == nil {
		findings = []calculator.AuditFinding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": findings, "meta": map[string]int{"total": len(findings)}})
}

func hasTag(d calculator.Descriptor, tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

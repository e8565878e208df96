package handlers

import (
	"net/http"
	"testing"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

func TestCatalogHandler_ListCalculators(t *testing.T) {
	t.Parallel()

	reg, _ := newTestCatalog(t)
	h := NewCatalogHandler(reg)

	tests := []struct {
		target string
		want   []string
		total  int
	}{
		{target: "/calculators", want: []string{"bmi-calculator", "explodes", "roi-calculator", "sleeps"}, total: 4},
		{target: "/calculators?category=Finance", want: []string{"roi-calculator"}, total: 1},
		{target: "/calculators?tag=bmi", want: []string{"bmi-calculator"}, total: 1},
		{target: "/calculators?category=finance&tag=bmi", want: nil, total: 0},
		{target: "/calculators?limit=2&offset=1", want: []string{"explodes", "roi-calculator"}, total: 4},
		{target: "/calculators?offset=10", want: nil, total: 4},
	}
	for _, tc := range tests {
		rr := serve(http.MethodGet, "/calculators", h.ListCalculators, tc.target, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", tc.target, rr.Code, rr.Body.String())
		}
		resp := decode[ListCalculatorsResponse](t, rr)
		if resp.Meta.Total != tc.total || len(resp.Data) != len(tc.want) {
			t.Fatalf("%s: got %d items (total %d), want %v (total %d)", tc.target, len(resp.Data), resp.Meta.Total, tc.want, tc.total)
		}
		for i, d := range resp.Data {
			if d.ID != tc.want[i] {
				t.Fatalf("%s: item %d = %s, want %s", tc.target, i, d.ID, tc.want[i])
			}
		}
	}
}

func TestCatalogHandler_GetCalculator(t *testing.T) {
	t.Parallel()

	reg, _ := newTestCatalog(t)
	h := NewCatalogHandler(reg)

	rr := serve(http.MethodGet, "/calculators/{id}", h.GetCalculator, "/calculators/roi-calculator", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	d := decode[calculator.Descriptor](t, rr)
	if d.ID != "roi-calculator" || len(d.InputSchema) != 2 || d.Version != 1 {
		t.Fatalf("unexpected descriptor: %+v", d)
	}

	rr = serve(http.MethodGet, "/calculators/{id}", h.GetCalculator, "/calculators/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}

func TestCatalogHandler_Search(t *testing.T) {
	t.Parallel()

	reg, _ := newTestCatalog(t)
	h := NewCatalogHandler(reg)

	rr := serve(http.MethodGet, "/search", h.SearchCalculators, "/search?q=ROI", "")
	resp := decode[struct {
		Data []calculator.Descriptor `json:"data"`
	}](t, rr)
	if len(resp.Data) != 1 || resp.Data[0].ID != "roi-calculator" {
		t.Fatalf("unexpected search results: %+v", resp.Data)
	}

	rr = serve(http.MethodGet, "/search", h.SearchCalculators, "/search?q=", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("empty query status=%d", rr.Code)
	}
	empty := decode[struct {
		Data []calculator.Descriptor `json:"data"`
	}](t, rr)
	if empty.Data == nil || len(empty.Data) != 0 {
		t.Fatalf("expected empty list for empty query, got %+v", empty.Data)
	}
}

func TestCatalogHandler_CategoriesAndAudit(t *testing.T) {
	t.Parallel()

	reg, _ := newTestCatalog(t)
	h := NewCatalogHandler(reg)

	rr := serve(http.MethodGet, "/categories", h.ListCategories, "/categories", "")
	cats := decode[struct {
		Data []calculator.CategoryCount `json:"data"`
	}](t, rr)
	if len(cats.Data) != 3 || cats.Data[2].Category != "test" || cats.Data[2].Count != 2 {
		t.Fatalf("unexpected categories: %+v", cats.Data)
	}

	rr = serve(http.MethodGet, "/audit", h.AuditCatalog, "/audit", "")
	audit := decode[struct {
		Data []calculator.AuditFinding `json:"data"`
	}](t, rr)
	if len(audit.Data) == 0 {
		t.Fatal("expected audit findings for descriptors without descriptions")
	}
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator/script"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/journal"
)

type stubJournal struct {
	entries []journal.Entry
	stats   []journal.CalculatorStats
	err     error
	limit   int
}

func (s *stubJournal) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	s.limit = limit
	return s.entries, s.err
}

func (s *stubJournal) Stats(context.Context) ([]journal.CalculatorStats, error) {
	return s.stats, s.err
}

func TestAdminHandler_Reload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reload ReloadFunc
		want   int
	}{
		{name: "not configured", reload: nil, want: http.StatusNotFound},
		{name: "ok", reload: func(context.Context) (script.ReloadReport, error) {
			return script.ReloadReport{Reloaded: []string{"tip-calculator"}}, nil
		}, want: http.StatusOK},
		{name: "bad manifest", reload: func(context.Context) (script.ReloadReport, error) {
			return script.ReloadReport{}, fmt.Errorf("%w: yaml: line 1", script.ErrInvalidManifest)
		}, want: http.StatusUnprocessableEntity},
		{name: "io failure", reload: func(context.Context) (script.ReloadReport, error) {
			return script.ReloadReport{}, errors.New("permission denied")
		}, want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		h := NewAdminHandler(tc.reload, nil)
		rr := serve(http.MethodPost, "/reload", h.Reload, "/reload", "")
		if rr.Code != tc.want {
			t.Fatalf("%s: status=%d want=%d body=%s", tc.name, rr.Code, tc.want, rr.Body.String())
		}
		if tc.want == http.StatusOK {
			report := decode[script.ReloadReport](t, rr)
			if len(report.Reloaded) != 1 {
				t.Fatalf("unexpected report: %+v", report)
			}
		}
	}
}

func TestAdminHandler_Journal(t *testing.T) {
	t.Parallel()

	stub := &stubJournal{
		entries: []journal.Entry{{ExecutionID: "e1", CalculatorID: "roi-calculator", OK: true, CreatedAt: time.Now()}},
		stats:   []journal.CalculatorStats{{CalculatorID: "roi-calculator", Executions: 1}},
	}
	h := NewAdminHandler(nil, stub)

	rr := serve(http.MethodGet, "/journal", h.Journal, "/journal?limit=5", "")
	if rr.Code != http.StatusOK || stub.limit != 5 {
		t.Fatalf("status=%d limit=%d", rr.Code, stub.limit)
	}
	entries := decode[struct {
		Data []journal.Entry `json:"data"`
	}](t, rr)
	if len(entries.Data) != 1 || entries.Data[0].ExecutionID != "e1" {
		t.Fatalf("unexpected entries: %+v", entries.Data)
	}

	rr = serve(http.MethodGet, "/stats", h.JournalStats, "/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status=%d", rr.Code)
	}

	stub.err = errors.New("disk full")
	if rr := serve(http.MethodGet, "/journal", h.Journal, "/journal", ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on journal failure, got %d", rr.Code)
	}
}

func TestAdminHandler_JournalDisabled(t *testing.T) {
	t.Parallel()

	h := NewAdminHandler(nil, nil)
	for _, hf := range []http.HandlerFunc{h.Journal, h.JournalStats} {
		if rr := serve(http.MethodGet, "/x", hf, "/x", ""); rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404 when journal disabled, got %d", rr.Code)
		}
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func roi(_ context.Context, in calculator.Input) (calculator.Output, error) {
	cost := in.Number("cost")
	if cost == 0 {
		return calculator.Output{}, errors.New("cost must not be zero")
	}
	return calculator.Output{Result: (in.Number("gain") - cost) / cost}, nil
}

func lo(v float64) *float64 { return &v }

// newTestCatalog registers a small fixed catalog and returns it sealed.
func newTestCatalog(t *testing.T) (*calculator.Registry, *calculator.Dispatcher) {
	t.Helper()
	reg := calculator.NewRegistry(calculator.Options{Logger: discard})
	must := func(d calculator.Descriptor, fn calculator.ComputeFunc) {
		if _, err := reg.Register(d, fn); err != nil {
			t.Fatalf("Register(%s): %v", d.ID, err)
		}
	}
	number := calculator.OutputSchema{Result: calculator.TypeNumber}

	must(calculator.Descriptor{
		ID: "roi-calculator", Title: "ROI Calculator", Category: "finance", Tags: []string{"roi", "investment"},
		InputSchema: []calculator.Field{
			{Name: "gain", Type: calculator.TypeNumber, Required: true},
			{Name: "cost", Type: calculator.TypeNumber, Required: true, Constraints: &calculator.Constraints{Min: lo(0)}},
		},
		OutputSchema: number,
	}, roi)
	must(calculator.Descriptor{ID: "bmi-calculator", Title: "BMI Calculator", Category: "health", Tags: []string{"bmi"}, OutputSchema: number},
		func(context.Context, calculator.Input) (calculator.Output, error) {
			return calculator.Output{Result: 22}, nil
		})
	must(calculator.Descriptor{ID: "explodes", Title: "Explodes", Category: "test", OutputSchema: number},
		func(context.Context, calculator.Input) (calculator.Output, error) {
			panic("boom")
		})
	must(calculator.Descriptor{ID: "sleeps", Title: "Sleeps", Category: "test", OutputSchema: number},
		func(ctx context.Context, _ calculator.Input) (calculator.Output, error) {
			<-ctx.Done()
			return calculator.Output{}, ctx.Err()
		})
	reg.Seal()

	return reg, calculator.NewDispatcher(reg, calculator.DispatcherOptions{Logger: discard, Timeout: 50 * time.Millisecond})
}

// serve routes a single request through a chi router so URL params resolve.
func serve(method, pattern string, h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, target, reader))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rr.Body.String())
	}
	return v
}

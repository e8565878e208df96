package calculator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newServingDispatcher(t *testing.T, opts DispatcherOptions, register func(r *Registry)) *Dispatcher {
	t.Helper()
	r := newTestRegistry(t)
	register(r)
	r.Seal()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return NewDispatcher(r, opts)
}

func mustRegister(t *testing.T, r *Registry, d Descriptor, fn ComputeFunc) {
	t.Helper()
	if _, err := r.Register(d, fn); err != nil {
		t.Fatalf("Register(%q) returned error: %v", d.ID, err)
	}
}

func simpleDescriptor(id string) Descriptor {
	return Descriptor{ID: id, Title: id, Category: "test", OutputSchema: OutputSchema{Result: TypeNumber}}
}

func TestDispatcher_ExecuteSuccess(t *testing.T) {
	t.Parallel()

	d := newServingDispatcher(t, DispatcherOptions{}, func(r *Registry) {
		mustRegister(t, r, roiDescriptor("roi-calculator"), roiCompute)
	})

	res := d.Execute(context.Background(), "roi-calculator", map[string]any{"gain": 150, "cost": 100})
	if !res.OK {
		t.Fatalf("expected ok result, got %+v", res)
	}
	if res.Output == nil || res.Output.Result != 0.5 {
		t.Fatalf("expected result 0.5, got %+v", res.Output)
	}
	if res.ErrorKind != KindNone || res.ID != "roi-calculator" || res.ExecutionID == "" {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
}

func TestDispatcher_MissingFieldNeverInvokesCompute(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := newServingDispatcher(t, DispatcherOptions{}, func(r *Registry) {
		mustRegister(t, r, roiDescriptor("roi-calculator"), func(ctx context.Context, in Input) (Output, error) {
			calls.Add(1)
			return roiCompute(ctx, in)
		})
	})

	res := d.Execute(context.Background(), "roi-calculator", map[string]any{"gain": 150})
	if res.OK || res.ErrorKind != KindValidation {
		t.Fatalf("expected ValidationError, got %+v", res)
	}
	if res.Field != "cost" || res.Reason != ReasonMissing {
		t.Fatalf("expected cost/MISSING, got %s/%s", res.Field, res.Reason)
	}
	if calls.Load() != 0 {
		t.Fatalf("compute invoked %d times on invalid input", calls.Load())
	}
}

func TestDispatcher_NotFound(t *testing.T) {
	t.Parallel()

	d := newServingDispatcher(t, DispatcherOptions{}, func(*Registry) {})
	res := d.Execute(context.Background(), "nonexistent-id", map[string]any{})
	if res.OK || res.ErrorKind != KindNotFound {
		t.Fatalf("expected NotFound, got %+v", res)
	}
	if !errors.Is(res.Err(), ErrNotFound) {
		t.Fatalf("expected Err() to be ErrNotFound, got %v", res.Err())
	}
}

func TestDispatcher_FaultIsolation(t *testing.T) {
	t.Parallel()

	d := newServingDispatcher(t, DispatcherOptions{}, func(r *Registry) {
		mustRegister(t, r, simpleDescriptor("panics"), func(context.Context, Input) (Output, error) {
			var m map[string]int
			m["boom"]++
			return Output{}, nil
		})
		mustRegister(t, r, simpleDescriptor("errors"), func(context.Context, Input) (Output, error) {
			return Output{}, errors.New("division by zero")
		})
		mustRegister(t, r, simpleDescriptor("healthy"), func(context.Context, Input) (Output, error) {
			return Output{Result: 1}, nil
		})
	})

	tests := []struct {
		id    string
		cause Cause
	}{
		{id: "panics", cause: CausePanic},
		{id: "errors", cause: CauseError},
	}
	for _, tc := range tests {
		res := d.Execute(context.Background(), tc.id, nil)
		if res.OK || res.ErrorKind != KindComputeFailure || res.Cause != tc.cause {
			t.Fatalf("%s: expected ComputeFailure/%s, got %+v", tc.id, tc.cause, res)
		}
		if res.ID != tc.id {
			t.Fatalf("%s: expected originating id in result, got %q", tc.id, res.ID)
		}
		if !errors.Is(res.Err(), ErrComputeFailure) {
			t.Fatalf("%s: expected Err() to wrap ErrComputeFailure, got %v", tc.id, res.Err())
		}

		ok := d.Execute(context.Background(), "healthy", nil)
		if !ok.OK || ok.Output.Result != 1 {
			t.Fatalf("healthy calculator affected by %s: %+v", tc.id, ok)
		}
	}
}

func TestDispatcher_ComputeErrorsNeverLookLikeCallerErrors(t *testing.T) {
	t.Parallel()

	d := newServingDispatcher(t, DispatcherOptions{}, func(r *Registry) {
		mustRegister(t, r, simpleDescriptor("rate-lookup"), func(context.Context, Input) (Output, error) {
			return Output{}, fmt.Errorf("rate table: %w", ErrNotFound)
		})
		mustRegister(t, r, simpleDescriptor("inner-check"), func(context.Context, Input) (Output, error) {
			return Output{}, &ValidationError{Field: "inner", Reason: ReasonOutOfRange}
		})
	})

	for _, id := range []string{"rate-lookup", "inner-check"} {
		res := d.Execute(context.Background(), id, nil)
		if res.OK || res.ErrorKind != KindComputeFailure || res.Cause != CauseError {
			t.Fatalf("%s: expected ComputeFailure/Error, got %+v", id, res)
		}
		if res.Field != "" || res.Reason != "" {
			t.Fatalf("%s: internal field leaked into result: %s/%s", id, res.Field, res.Reason)
		}
	}
}

func TestKindOf_ComputeErrorWinsOverWrappedCause(t *testing.T) {
	t.Parallel()

	err := &ComputeError{ID: "x", Cause: CauseError, Err: fmt.Errorf("lookup: %w", ErrNotFound)}
	if got := KindOf(err); got != KindComputeFailure {
		t.Fatalf("KindOf() = %q, want %q", got, KindComputeFailure)
	}
	if got := KindOf(fmt.Errorf("%w: %q", ErrNotFound, "x")); got != KindNotFound {
		t.Fatalf("KindOf() = %q, want %q", got, KindNotFound)
	}
}

func TestDispatcher_TimeoutReleasesCaller(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	d := newServingDispatcher(t, DispatcherOptions{Timeout: 20 * time.Millisecond}, func(r *Registry) {
		mustRegister(t, r, simpleDescriptor("stuck"), func(context.Context, Input) (Output, error) {
			<-release
			return Output{Result: 1}, nil
		})
	})

	start := time.Now()
	res := d.Execute(context.Background(), "stuck", nil)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("caller was not released, took %s", elapsed)
	}
	if res.OK || res.ErrorKind != KindComputeFailure || res.Cause != CauseTimeout {
		t.Fatalf("expected ComputeFailure/Timeout, got %+v", res)
	}
}

func TestDispatcher_ContextAwareComputeTimesOut(t *testing.T) {
	t.Parallel()

	d := newServingDispatcher(t, DispatcherOptions{Timeout: 10 * time.Millisecond}, func(r *Registry) {
		mustRegister(t, r, simpleDescriptor("polite"), func(ctx context.Context, _ Input) (Output, error) {
			<-ctx.Done()
			return Output{}, ctx.Err()
		})
	})

	res := d.Execute(context.Background(), "polite", nil)
	if res.Cause != CauseTimeout {
		t.Fatalf("expected Timeout cause, got %+v", res)
	}
}

func TestDispatcher_MalformedOutput(t *testing.T) {
	t.Parallel()

	outputs := map[string]Output{
		"nan-result":    {Result: math.NaN()},
		"inf-result":    {Result: math.Inf(-1)},
		"bad-risk":      {Result: 1, Analysis: &Analysis{Recommendation: "x", RiskLevel: "Severe"}},
		"bad-breakdown": {Result: 1, Breakdown: map[string]float64{"interest": math.NaN()}},
	}
	d := newServingDispatcher(t, DispatcherOptions{}, func(r *Registry) {
		for id, out := range outputs {
			out := out
			mustRegister(t, r, simpleDescriptor(id), func(context.Context, Input) (Output, error) { return out, nil })
		}
	})

	for id := range outputs {
		res := d.Execute(context.Background(), id, nil)
		if res.OK || res.ErrorKind != KindComputeFailure || res.Cause != CauseMalformedOutput {
			t.Fatalf("%s: expected ComputeFailure/MalformedOutput, got %+v", id, res)
		}
	}
}

func TestDispatcher_NormalizesRiskLevel(t *testing.T) {
	t.Parallel()

	d := newServingDispatcher(t, DispatcherOptions{}, func(r *Registry) {
		mustRegister(t, r, simpleDescriptor("risky"), func(context.Context, Input) (Output, error) {
			return Output{Result: 2, Analysis: &Analysis{Recommendation: "reduce leverage", RiskLevel: "high"}}, nil
		})
	})

	res := d.Execute(context.Background(), "risky", nil)
	if !res.OK || res.Output.Analysis.RiskLevel != RiskHigh {
		t.Fatalf("expected normalized High risk, got %+v", res)
	}
}

func TestDispatcher_PublishesExecutionEvents(t *testing.T) {
	t.Parallel()

	bus := newRecordingBus()
	d := newServingDispatcher(t, DispatcherOptions{Bus: bus}, func(r *Registry) {
		mustRegister(t, r, roiDescriptor("roi-calculator"), roiCompute)
	})

	d.Execute(context.Background(), "roi-calculator", map[string]any{"gain": 1, "cost": 1})
	d.Execute(context.Background(), "roi-calculator", map[string]any{})

	if n := bus.count(TopicExecuted); n != 2 {
		t.Fatalf("expected 2 executed events, got %d", n)
	}
	bus.mu.Lock()
	second := bus.events[TopicExecuted][1].(ExecutionEvent)
	bus.mu.Unlock()
	if second.OK || second.ErrorKind != KindValidation || second.Field != "gain" {
		t.Fatalf("unexpected event payload: %+v", second)
	}
}

func TestDispatcher_RecordsSpan(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	d := newServingDispatcher(t, DispatcherOptions{Tracer: provider.Tracer("test")}, func(r *Registry) {
		mustRegister(t, r, roiDescriptor("roi-calculator"), roiCompute)
	})
	d.Execute(context.Background(), "roi-calculator", map[string]any{"gain": 3, "cost": 1})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "calculator.execute" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
	var sawOK bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "calculator.ok" && kv.Value.AsBool() {
			sawOK = true
		}
	}
	if !sawOK {
		t.Fatalf("expected calculator.ok=true attribute, got %v", spans[0].Attributes())
	}
}

func TestDispatcher_ConcurrentExecute(t *testing.T) {
	t.Parallel()

	d := newServingDispatcher(t, DispatcherOptions{}, func(r *Registry) {
		mustRegister(t, r, roiDescriptor("roi-calculator"), roiCompute)
	})

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := d.Execute(context.Background(), "roi-calculator", map[string]any{"gain": float64(i + 100), "cost": 100})
			if !res.OK {
				t.Errorf("execution %d failed: %+v", i, res)
				return
			}
			if want := float64(i) / 100; math.Abs(res.Output.Result-want) > 1e-12 {
				t.Errorf("execution %d: got %v, want %v", i, res.Output.Result, want)
			}
			if _, dup := seen.LoadOrStore(res.ExecutionID, i); dup {
				t.Errorf("execution id %s reused", res.ExecutionID)
			}
		}(i)
	}
	wg.Wait()
}

func TestDispatcher_ExecuteRequest(t *testing.T) {
	t.Parallel()

	d := newServingDispatcher(t, DispatcherOptions{}, func(r *Registry) {
		mustRegister(t, r, roiDescriptor("roi-calculator"), roiCompute)
	})
	res := d.ExecuteRequest(context.Background(), Request{ID: " roi-calculator ", Input: map[string]any{"gain": "300", "cost": "100"}})
	if !res.OK || res.Output.Result != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

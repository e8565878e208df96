package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/matiasleandrokruk/calcatalog/pkg/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultExecutionTimeout bounds a single compute call when no timeout is configured.
const DefaultExecutionTimeout = 5 * time.Second

const tracerName = "github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"

// ExecutionEvent is the payload of TopicExecuted. It carries outcome metadata
// only, never the input or the output.
type ExecutionEvent struct {
	ExecutionID  string
	CalculatorID string
	OK           bool
	ErrorKind    ErrorKind
	Reason       Reason
	Cause        Cause
	Field        string
	Duration     time.Duration
	At           time.Time
}

// DispatcherOptions configures a Dispatcher. The zero value is usable.
type DispatcherOptions struct {
	Timeout time.Duration
	Logger  *slog.Logger
	Bus     Publisher
	Tracer  trace.Tracer
}

// Dispatcher turns execution requests into Results. A defect in one compute
// function degrades to a failed Result for that id and nothing else.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	bus      Publisher
	tracer   trace.Tracer
	now      func() time.Time
}

// NewDispatcher binds a dispatcher to reg.
func NewDispatcher(reg *Registry, opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		bus:      opts.Bus,
		tracer:   opts.Tracer,
		now:      time.Now,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultExecutionTimeout
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// ExecuteRequest is Execute for a Request value.
func (d *Dispatcher) ExecuteRequest(ctx context.Context, req Request) Result {
	return d.Execute(ctx, req.ID, req.Input)
}

// Execute resolves id, validates raw against its input schema, runs the
// compute function inside a fault boundary and checks the output shape.
// It never panics and never returns a Go error; failures are Result values.
func (d *Dispatcher) Execute(ctx context.Context, id string, raw map[string]any) (res Result) {
	start := d.now()
	id = strings.TrimSpace(id)
	execID := uuid.NewV7()

	ctx, span := d.tracer.Start(ctx, "calculator.execute", trace.WithAttributes(
		attribute.String("calculator.id", id),
		attribute.String("calculator.execution_id", execID),
	))

	defer func() {
		if p := recover(); p != nil {
			res = failure(id, &ComputeError{ID: id, Cause: CausePanic, Err: fmt.Errorf("dispatcher: %v", p)})
		}
		res.ID = id
		res.ExecutionID = execID
		res.Duration = d.now().Sub(start)
		d.finish(ctx, span, res)
	}()

	out, err := d.execute(ctx, id, raw)
	if err != nil {
		return failure(id, err)
	}
	return Result{OK: true, Output: &out}
}

func (d *Dispatcher) execute(ctx context.Context, id string, raw map[string]any) (Output, error) {
	e, ok := d.registry.lookup(id)
	if !ok {
		return Output{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	in, err := d.registry.validatorFor(e.descriptor).validate(raw)
	if err != nil {
		return Output{}, err
	}

	out, err := d.invoke(ctx, id, e.compute, in)
	if err != nil {
		return Output{}, err
	}

	checked, err := checkOutput(out)
	if err != nil {
		return Output{}, &ComputeError{ID: id, Cause: CauseMalformedOutput, Err: err}
	}
	return checked, nil
}

type computeResult struct {
	out Output
	err error
}

// invoke runs fn in its own goroutine. On timeout the caller is released and
// the goroutine is abandoned; the buffered channel lets it finish without
// blocking.
func (d *Dispatcher) invoke(ctx context.Context, id string, fn ComputeFunc, in Input) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan computeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				d.logger.Error("calculator panicked", "id", id, "panic", p, "stack", string(debug.Stack()))
				done <- computeResult{err: &ComputeError{ID: id, Cause: CausePanic, Err: fmt.Errorf("panic: %v", p)}}
			}
		}()
		out, err := fn(ctx, in)
		done <- computeResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.out, nil
		}
		var ce *ComputeError
		if errors.As(r.err, &ce) {
			return Output{}, ce
		}
		if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return Output{}, &ComputeError{ID: id, Cause: CauseTimeout, Err: ErrTimeout}
		}
		return Output{}, &ComputeError{ID: id, Cause: CauseError, Err: r.err}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Output{}, &ComputeError{ID: id, Cause: CauseTimeout, Err: fmt.Errorf("%w after %s", ErrTimeout, d.timeout)}
		}
		return Output{}, &ComputeError{ID: id, Cause: CauseError, Err: ctx.Err()}
	}
}

func failure(id string, err error) Result {
	res := Result{OK: false, ErrorKind: KindOf(err), Message: err.Error(), ID: id}

	var ce *ComputeError
	var ve *ValidationError
	switch {
	case errors.As(err, &ce):
		res.Cause = ce.Cause
	case errors.As(err, &ve):
		res.Field = ve.Field
		res.Reason = ve.Reason
		res.Message = ve.Error()
	}
	if res.ErrorKind == KindComputeFailure && res.Cause == "" {
		res.Cause = CauseError
	}
	return res
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, res Result) {
	span.SetAttributes(
		attribute.Bool("calculator.ok", res.OK),
		attribute.String("calculator.error_kind", string(res.ErrorKind)),
	)
	if !res.OK {
		span.SetStatus(codes.Error, res.Message)
	}
	span.End()

	attrs := []any{
		"id", res.ID,
		"execution_id", res.ExecutionID,
		"ok", res.OK,
		"duration", res.Duration,
	}
	switch res.ErrorKind {
	case KindNone:
		d.logger.DebugContext(ctx, "calculator executed", attrs...)
	case KindComputeFailure:
		d.logger.WarnContext(ctx, "calculator failed", append(attrs, "cause", res.Cause, "error", res.Message)...)
	default:
		d.logger.DebugContext(ctx, "calculator rejected", append(attrs, "kind", res.ErrorKind, "field", res.Field, "reason", res.Reason)...)
	}

	if d.bus != nil {
		d.bus.Publish(TopicExecuted, ExecutionEvent{
			ExecutionID:  res.ExecutionID,
			CalculatorID: res.ID,
			OK:           res.OK,
			ErrorKind:    res.ErrorKind,
			Reason:       res.Reason,
			Cause:        res.Cause,
			Field:        res.Field,
			Duration:     res.Duration,
			At:           d.now().UTC(),
		})
	}
}

// Package journal keeps an append-only record of execution outcomes. It stores
// which calculator ran, whether it succeeded and how long it took; inputs and
// outputs are never persisted.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/eventbus"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrInvalidEvent = errors.New("invalid journal event")

// Entry is one journaled execution.
type Entry struct {
	ExecutionID  string               `json:"executionId"`
	CalculatorID string               `json:"calculatorId"`
	OK           bool                 `json:"ok"`
	ErrorKind    calculator.ErrorKind `json:"errorKind,omitempty"`
	Cause        calculator.Cause     `json:"cause,omitempty"`
	Reason       calculator.Reason    `json:"reason,omitempty"`
	Field        string               `json:"field,omitempty"`
	Duration     time.Duration        `json:"durationNs"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// CalculatorStats aggregates the journal for one calculator.
type CalculatorStats struct {
	CalculatorID string        `json:"calculatorId"`
	Executions   int           `json:"executions"`
	Failures     int           `json:"failures"`
	AvgDuration  time.Duration `json:"avgDurationNs"`
	LastRunAt    time.Time     `json:"lastRunAt"`
}

// Service writes and reads the execution journal.
// All writes are inserts; there is no update or delete.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewService returns a journal over an already migrated database.
func NewService(db *sql.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// timeLayout is fixed width so created_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record appends one execution outcome. Replaying the same execution id is a no-op.
func (s *Service) Record(ctx context.Context, ev calculator.ExecutionEvent) error {
	if ev.ExecutionID == "" || ev.CalculatorID == "" {
		return fmt.Errorf("%w: execution and calculator ids are required", ErrInvalidEvent)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_journal
			(id, calculator_id, ok, error_kind, cause, reason, field, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		ev.ExecutionID,
		ev.CalculatorID,
		boolToInt(ev.OK),
		string(ev.ErrorKind),
		string(ev.Cause),
		string(ev.Reason),
		ev.Field,
		ev.Duration.Microseconds(),
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", ev.ExecutionID, err)
	}
	return nil
}

// Recent returns the newest entries first. limit is clamped to [1, MaxLimit],
// with DefaultLimit for zero or negative values.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, calculator_id, ok, error_kind, cause, reason, field, duration_us, created_at
		FROM execution_journal
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e          Entry
			ok         int
			kind       string
			cause      string
			reason     string
			durationUS int64
			createdAt  string
		)
		if err := rows.Scan(&e.ExecutionID, &e.CalculatorID, &ok, &kind, &cause, &reason, &e.Field, &durationUS, &createdAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.OK = ok == 1
		e.ErrorKind = calculator.ErrorKind(kind)
		e.Cause = calculator.Cause(cause)
		e.Reason = calculator.Reason(reason)
		e.Duration = time.Duration(durationUS) * time.Microsecond
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("journal: parse created_at %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns per-calculator counts ordered by calculator id.
func (s *Service) Stats(ctx context.Context) ([]CalculatorStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT calculator_id,
		       COUNT(*),
		       SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END),
		       CAST(AVG(duration_us) AS INTEGER),
		       MAX(created_at)
		FROM execution_journal
		GROUP BY calculator_id
		ORDER BY calculator_id`)
	if err != nil {
		return nil, fmt.Errorf("journal: stats: %w", err)
	}
	defer rows.Close()

	stats := make([]CalculatorStats, 0)
	for rows.Next() {
		var (
			st      CalculatorStats
			avgUS   int64
			lastRun string
		)
		if err := rows.Scan(&st.CalculatorID, &st.Executions, &st.Failures, &avgUS, &lastRun); err != nil {
			return nil, fmt.Errorf("journal: scan stats: %w", err)
		}
		st.AvgDuration = time.Duration(avgUS) * time.Microsecond
		if st.LastRunAt, err = time.Parse(timeLayout, lastRun); err != nil {
			return nil, fmt.Errorf("journal: parse last run %q: %w", lastRun, err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Consume records every ExecutionEvent received on events until the channel
// closes or ctx is done. Write failures are logged; they never reach callers
// of the dispatcher.
func (s *Service) Consume(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			ev, isExec := evt.Payload.(calculator.ExecutionEvent)
			if !isExec {
				s.logger.Warn("journal: unexpected payload", "topic", evt.Topic)
				continue
			}
			if err := s.Record(ctx, ev); err != nil {
				s.logger.Error("journal: record failed", "execution_id", ev.ExecutionID, "error", err)
			}
		}
	}
}

// Run subscribes to execution events on bus and consumes them until ctx is done.
func (s *Service) Run(ctx context.Context, bus eventbus.EventBus) {
	events := bus.Subscribe(calculator.TopicExecuted)
	defer bus.Unsubscribe(calculator.TopicExecuted, events)
	s.Consume(ctx, events)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

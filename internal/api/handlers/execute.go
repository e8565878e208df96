package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

// maxExecuteBody caps the size of an execution request body.
const maxExecuteBody = 1 << 20

// Executor runs one calculator. *calculator.Dispatcher satisfies it.
type Executor interface {
	Execute(ctx context.Context, id string, raw map[string]any) calculator.Result
}

// ExecuteHandler serves POST /api/v1/calculators/{id}/execute.
type ExecuteHandler struct {
	executor Executor
}

// NewExecuteHandler creates an ExecuteHandler.
func NewExecuteHandler(executor Executor) *ExecuteHandler {
	return &ExecuteHandler{executor: executor}
}

// ExecuteRequest is the request body of an execution.
type ExecuteRequest struct {
	Input map[string]any `json:"input"`
}

// Execute decodes {"input": {...}} and returns the calculator.Result.
//
// Response codes:
//   - 200 OK: computed
//   - 400 Bad Request: body is not valid JSON
//   - 404 Not Found: unknown calculator id
//   - 422 Unprocessable Entity: input failed validation
//   - 502 Bad Gateway: compute failed, panicked or returned malformed output
//   - 504 Gateway Timeout: compute exceeded the execution timeout
func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExecuteBody))
	// Keep numbers exact until the validator coerces them.
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := h.executor.Execute(r.Context(), chi.URLParam(r, "id"), req.Input)
	writeJSON(w, statusForResult(res), res)
}

func statusForResult(res calculator.Result) int {
	switch res.ErrorKind {
	case calculator.KindNone:
		return http.StatusOK
	case calculator.KindNotFound:
		return http.StatusNotFound
	case calculator.KindValidation:
		return http.StatusUnprocessableEntity
	}
	if res.Cause == calculator.CauseTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/matiasleandrokruk/calcatalog/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/logging"
)

// Outcome classifies an audited admin request.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// AdminAudit writes one structured record per authenticated admin request.
// Expected order in router: Auth -> AdminAudit -> handlers.
func AdminAudit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := ctxkeys.String(r.Context(), ctxkeys.Subject)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)

		outcome := outcomeFromStatus(recorder.statusCode)
		level := slog.LevelInfo
		if outcome != OutcomeSuccess {
			level = slog.LevelWarn
		}
		logging.FromContext(r.Context()).Log(r.Context(), level, "admin action",
			"subject", subject,
			"action", actionFromRequest(r.Method, r.URL.Path),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"outcome", outcome,
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func outcomeFromStatus(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return OutcomeSuccess
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return OutcomeDenied
	default:
		return OutcomeError
	}
}

// actionFromRequest names an admin request: POST /api/v1/admin/reload is
// "reload", GET /api/v1/admin/journal/stats is "get_journal_stats".
func actionFromRequest(method, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 4 || segments[0] != "api" || segments[1] != "v1" || segments[2] != "admin" {
		return strings.ToLower(method) + "_request"
	}
	resource := strings.Join(segments[3:], "_")
	if method == http.MethodPost {
		return resource
	}
	return strings.ToLower(method) + "_" + resource
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptchart/promptchart/internal/chart"
	"github.com/promptchart/promptchart/internal/config"
	"github.com/promptchart/promptchart/internal/dashboard"
	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/observability"
	"github.com/promptchart/promptchart/internal/pinned"
	"github.com/promptchart/promptchart/internal/query"
)

type ReadinessCheck func(ctx context.Context) error

// ChartService is the dashboard surface the HTTP handlers drive.
type ChartService interface {
	GenerateChart(ctx context.Context, prompt string) (chart.Payload, error)
	ListPinnedCharts(ctx context.Context) ([]chart.Payload, error)
	PinnedCharts(ctx context.Context) ([]pinned.Chart, error)
	PinnedData(ctx context.Context, id int64) (dashboard.PinnedData, error)
	Pin(ctx context.Context, prompt, sql string) (pinned.Chart, error)
	CheckPinned(ctx context.Context, prompt, sql string) (pinned.Chart, bool, error)
	Unpin(ctx context.Context, id int64) error
	AnalyzeDataset(ctx context.Context, prompt string, dataset query.Result) (dashboard.DatasetAnalysis, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Charts            ChartService
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	chartRoutes := map[string]func(Dependencies, http.ResponseWriter, *http.Request){
		"POST /v1/charts":                   handleGenerateChart,
		"GET /v1/charts/pinned":             handleReplayPinned,
		"GET /v1/pinned-charts":             handleListPinned,
		"POST /v1/pinned-charts":            handlePin,
		"POST /v1/pinned-charts/check":      handleCheckPinned,
		"GET /v1/pinned-charts/{id}/data":   handlePinnedData,
		"POST /v1/pinned-charts/{id}/unpin": handleUnpin,
		"POST /v1/datasets/analyze":         handleAnalyzeDataset,
	}
	for pattern, handle := range chartRoutes {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if deps.Charts == nil {
				writeError(r.Context(), w, http.StatusNotImplemented, "CHARTS_NOT_CONFIGURED", "chart dependencies are not configured", false, nil)
				return
			}
			handle(deps, w, r)
		})
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the error body. "error" repeats message so clients that
// only read the reason string keep working.
func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error":      message,
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

// writeFailure maps a service error onto a status and error code. Raw
// internal error text never reaches the client.
func writeFailure(r *http.Request, w http.ResponseWriter, logger *slog.Logger, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, dashboard.ErrPromptRequired):
		writeError(ctx, w, http.StatusBadRequest, "PROMPT_REQUIRED", "Prompt is required", false, nil)
		return
	case errors.Is(err, dashboard.ErrQueryRequired):
		writeError(ctx, w, http.StatusBadRequest, "QUERY_REQUIRED", "Query is required", false, nil)
		return
	case errors.Is(err, pinned.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "PINNED_CHART_NOT_FOUND", "Pinned chart not found", false, nil)
		return
	case errors.Is(err, dashboard.ErrPinnedUnavailable):
		writeError(ctx, w, http.StatusNotImplemented, "PINNED_NOT_CONFIGURED", "Pinned charts are not configured", false, nil)
		return
	}

	kind := failure.KindOf(err)
	message := failure.Message(err)
	status := http.StatusInternalServerError
	var extra map[string]any
	switch kind {
	case failure.KindInvalidGeneratedQuery:
		status = http.StatusBadRequest
		if rule := failure.RuleOf(err); rule != "" {
			extra = map[string]any{"rule": rule}
		}
	case failure.KindQueryExecutionFailed, failure.KindEmptyResult:
		status = http.StatusBadRequest
	case failure.KindUpstreamUnavailable:
		status = http.StatusServiceUnavailable
	case failure.KindNoChartableData:
	default:
		message = "Failed to generate chart"
	}
	if logger != nil && status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "chart request failed",
			observability.TraceAttr(ctx),
			slog.String("error_code", string(kind)),
			slog.Any("error", err),
		)
	}
	writeError(ctx, w, status, string(kind), message, kind.Retryable(), extra)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// Package dashboard runs chart requests end to end: translation, execution
// and shape inference, plus replay of pinned charts.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/promptchart/promptchart/internal/chart"
	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/nl2sql"
	"github.com/promptchart/promptchart/internal/observability"
	"github.com/promptchart/promptchart/internal/pinned"
	"github.com/promptchart/promptchart/internal/query"
)

var (
	ErrPromptRequired    = errors.New("prompt is required")
	ErrQueryRequired     = errors.New("query is required")
	ErrPinnedUnavailable = errors.New("pinned charts are not configured")

	errReplayItemTimedOut = errors.New("replay item timed out")
)

const (
	defaultReplayTimeout = 10 * time.Second
	defaultReplayWorkers = 8
	summarySampleRows    = 10

	replayOutcomeOK      = "ok"
	replayOutcomeFailed  = "failed"
	replayOutcomeTimeout = "timeout"
)

var defaultSummaryOptions = nl2sql.CompletionOptions{Temperature: 0.5, MaxTokens: 100}

type Config struct {
	// ReplayTimeout bounds each pinned chart's execution.
	ReplayTimeout     time.Duration
	ReplayConcurrency int
	SummaryEnabled    bool
	SummaryOptions    nl2sql.CompletionOptions
}

type Dependencies struct {
	Translator nl2sql.Translator
	Engine     query.Engine
	Inferrer   *chart.Inferrer
	// Pinned may be nil, in which case pinned operations return
	// ErrPinnedUnavailable.
	Pinned pinned.Store
	// Completer writes dataset summaries. Nil disables them.
	Completer nl2sql.Completer
	Logger    *slog.Logger
}

type Service struct {
	translator nl2sql.Translator
	engine     query.Engine
	inferrer   *chart.Inferrer
	pinned     pinned.Store
	completer  nl2sql.Completer
	config     Config
	logger     *slog.Logger
	pool       pond.ResultPool[*chart.Payload]
}

func New(cfg Config, deps Dependencies) (*Service, error) {
	if deps.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if cfg.ReplayTimeout <= 0 {
		cfg.ReplayTimeout = defaultReplayTimeout
	}
	if cfg.ReplayConcurrency <= 0 {
		cfg.ReplayConcurrency = defaultReplayWorkers
	}
	if cfg.SummaryOptions == (nl2sql.CompletionOptions{}) {
		cfg.SummaryOptions = defaultSummaryOptions
	}
	inferrer := deps.Inferrer
	if inferrer == nil {
		inferrer = chart.NewInferrer(chart.Options{})
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		translator: deps.Translator,
		engine:     deps.Engine,
		inferrer:   inferrer,
		pinned:     deps.Pinned,
		completer:  deps.Completer,
		config:     cfg,
		logger:     logger,
		pool:       pond.NewResultPool[*chart.Payload](cfg.ReplayConcurrency),
	}, nil
}

// Close waits for in-flight replays and stops the replay pool.
func (s *Service) Close() {
	s.pool.StopAndWait()
}

// GenerateChart turns free text into a chart payload.
func (s *Service) GenerateChart(ctx context.Context, prompt string) (chart.Payload, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return chart.Payload{}, ErrPromptRequired
	}

	translation, err := s.translator.Translate(ctx, nl2sql.Request{Text: prompt})
	if err != nil {
		return chart.Payload{}, err
	}
	result, err := s.engine.Execute(ctx, translation.SQL)
	if err != nil {
		return chart.Payload{}, err
	}
	shape, err := s.inferrer.Infer(result, prompt, translation.SQL)
	if err != nil {
		return chart.Payload{}, err
	}

	observability.IncrementChartRendered(string(shape.Type))
	s.logger.InfoContext(ctx, "chart generated",
		observability.TraceAttr(ctx),
		slog.String("chart_type", string(shape.Type)),
		slog.Int("rows", result.Len()),
		slog.Int("attempts", translation.Attempts),
		slog.Bool("cached", translation.Cached),
	)
	return chart.NewPayload(shape, prompt, translation.SQL), nil
}

// ListPinnedCharts replays every pinned chart. Items that fail or time out
// are logged and left out; the rest come back in store order.
func (s *Service) ListPinnedCharts(ctx context.Context) ([]chart.Payload, error) {
	if s.pinned == nil {
		return nil, ErrPinnedUnavailable
	}
	charts, err := s.pinned.ListPinned(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pinned charts: %w", err)
	}
	return s.ReplayAll(ctx, charts), nil
}

// PinnedCharts lists the stored pinned charts without replaying them.
func (s *Service) PinnedCharts(ctx context.Context) ([]pinned.Chart, error) {
	if s.pinned == nil {
		return nil, ErrPinnedUnavailable
	}
	return s.pinned.ListPinned(ctx)
}

// ReplayAll re-executes each pinned chart's stored query and infers its
// shape again. No item failure reaches the caller.
func (s *Service) ReplayAll(ctx context.Context, charts []pinned.Chart) []chart.Payload {
	if len(charts) == 0 {
		return []chart.Payload{}
	}

	group := s.pool.NewGroupContext(ctx)
	for _, item := range charts {
		group.Submit(func() *chart.Payload {
			payload, err := s.ReplayOne(ctx, item)
			if err != nil {
				outcome := replayOutcomeFailed
				if errors.Is(err, errReplayItemTimedOut) {
					outcome = replayOutcomeTimeout
				}
				observability.IncrementReplayItem(outcome)
				s.logger.WarnContext(ctx, "pinned chart replay failed",
					observability.TraceAttr(ctx),
					slog.Int64("pinned_id", item.ID),
					slog.String("outcome", outcome),
					slog.String("reason", failure.Message(err)),
				)
				return nil
			}
			observability.IncrementReplayItem(replayOutcomeOK)
			return &payload
		})
	}

	results, err := group.Wait()
	if err != nil {
		s.logger.WarnContext(ctx, "pinned chart replay interrupted",
			observability.TraceAttr(ctx),
			slog.Any("error", err),
		)
	}

	payloads := make([]chart.Payload, 0, len(results))
	for _, payload := range results {
		if payload != nil {
			payloads = append(payloads, *payload)
		}
	}
	return payloads
}

// ReplayOne runs a single pinned chart under the replay timeout.
func (s *Service) ReplayOne(ctx context.Context, item pinned.Chart) (chart.Payload, error) {
	result, err := s.executePinned(ctx, item.Query)
	if err != nil {
		return chart.Payload{}, err
	}
	shape, err := s.inferrer.Infer(result, item.Prompt, item.Query)
	if err != nil {
		return chart.Payload{}, err
	}
	return chart.NewPayload(shape, item.Prompt, item.Query).WithPinnedID(item.ID), nil
}

type executeOutcome struct {
	result query.Result
	err    error
}

// executePinned races the engine against the replay deadline. An engine
// that ignores its context is abandoned once the deadline passes, and its
// late result is discarded.
func (s *Service) executePinned(ctx context.Context, sql string) (query.Result, error) {
	if err := query.CheckReadOnly(sql); err != nil {
		return query.Result{}, err
	}

	itemCtx, cancel := context.WithTimeout(ctx, s.config.ReplayTimeout)
	defer cancel()

	done := make(chan executeOutcome, 1)
	go func() {
		result, err := s.engine.Execute(itemCtx, sql)
		done <- executeOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if itemCtx.Err() == nil {
			return out.result, out.err
		}
		return query.Result{}, s.replayDeadlineError(ctx, itemCtx, out.err)
	case <-itemCtx.Done():
		return query.Result{}, s.replayDeadlineError(ctx, itemCtx, itemCtx.Err())
	}
}

func (s *Service) replayDeadlineError(ctx, itemCtx context.Context, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if cause == nil {
		cause = itemCtx.Err()
	}
	return fmt.Errorf("%w after %s: %w", errReplayItemTimedOut, s.config.ReplayTimeout, cause)
}

type PinnedData struct {
	Prompt string                   `json:"prompt"`
	Data   []map[string]query.Value `json:"data"`
}

// PinnedData returns the raw rows behind one pinned chart.
func (s *Service) PinnedData(ctx context.Context, id int64) (PinnedData, error) {
	if s.pinned == nil {
		return PinnedData{}, ErrPinnedUnavailable
	}
	item, err := s.pinned.GetPinned(ctx, id)
	if err != nil {
		return PinnedData{}, err
	}
	result, err := s.executePinned(ctx, item.Query)
	if err != nil && !failure.Is(err, failure.KindEmptyResult) {
		return PinnedData{}, err
	}
	return PinnedData{Prompt: item.Prompt, Data: result.Records()}, nil
}

// Pin saves a (prompt, query) pair. The query must pass the read-only guard.
func (s *Service) Pin(ctx context.Context, prompt, sql string) (pinned.Chart, error) {
	if s.pinned == nil {
		return pinned.Chart{}, ErrPinnedUnavailable
	}
	prompt = strings.TrimSpace(prompt)
	sql = strings.TrimSpace(sql)
	if prompt == "" {
		return pinned.Chart{}, ErrPromptRequired
	}
	if sql == "" {
		return pinned.Chart{}, ErrQueryRequired
	}
	if err := query.CheckReadOnly(sql); err != nil {
		return pinned.Chart{}, err
	}
	item, err := s.pinned.Pin(ctx, prompt, sql)
	if err != nil {
		return pinned.Chart{}, err
	}
	s.logger.InfoContext(ctx, "chart pinned",
		observability.TraceAttr(ctx),
		slog.Int64("pinned_id", item.ID),
	)
	return item, nil
}

// CheckPinned reports whether this exact pair is currently pinned.
func (s *Service) CheckPinned(ctx context.Context, prompt, sql string) (pinned.Chart, bool, error) {
	if s.pinned == nil {
		return pinned.Chart{}, false, ErrPinnedUnavailable
	}
	item, err := s.pinned.FindPinned(ctx, strings.TrimSpace(prompt), strings.TrimSpace(sql))
	if errors.Is(err, pinned.ErrNotFound) {
		return pinned.Chart{}, false, nil
	}
	if err != nil {
		return pinned.Chart{}, false, err
	}
	return item, true, nil
}

func (s *Service) Unpin(ctx context.Context, id int64) error {
	if s.pinned == nil {
		return ErrPinnedUnavailable
	}
	if err := s.pinned.Unpin(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "chart unpinned",
		observability.TraceAttr(ctx),
		slog.Int64("pinned_id", id),
	)
	return nil
}

type DatasetAnalysis struct {
	Chart   chart.Payload `json:"chart"`
	Summary string        `json:"summary"`
}

// AnalyzeDataset charts caller-supplied rows and, when enabled, asks the
// completion service for a short summary. A failed summary is left empty.
func (s *Service) AnalyzeDataset(ctx context.Context, prompt string, dataset query.Result) (DatasetAnalysis, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return DatasetAnalysis{}, ErrPromptRequired
	}
	shape, err := s.inferrer.InferDataset(dataset, prompt)
	if err != nil {
		return DatasetAnalysis{}, err
	}
	observability.IncrementChartRendered(string(shape.Type))

	return DatasetAnalysis{
		Chart:   chart.NewPayload(shape, prompt, ""),
		Summary: s.summarize(ctx, prompt, dataset),
	}, nil
}

func (s *Service) summarize(ctx context.Context, prompt string, dataset query.Result) string {
	if !s.config.SummaryEnabled || s.completer == nil {
		return ""
	}

	sample := dataset
	if len(sample.Rows) > summarySampleRows {
		sample.Rows = sample.Rows[:summarySampleRows]
	}
	encoded, err := json.Marshal(sample.Records())
	if err != nil {
		s.logger.WarnContext(ctx, "encode dataset sample failed", observability.TraceAttr(ctx), slog.Any("error", err))
		return ""
	}

	text, err := s.completer.Complete(ctx,
		nl2sql.BuildSummaryPrompt(prompt, dataset.Len(), dataset.Columns, string(encoded)),
		s.config.SummaryOptions,
	)
	if err != nil {
		s.logger.WarnContext(ctx, "dataset summary failed",
			observability.TraceAttr(ctx),
			slog.String("reason", failure.Message(err)),
		)
		return ""
	}
	return strings.TrimSpace(text)
}

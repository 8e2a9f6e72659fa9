package nl2sql

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/intent"
	"github.com/promptchart/promptchart/internal/observability"
)

type Request struct {
	Text string `json:"text"`
}

type Result struct {
	SQL      string   `json:"sql"`
	Warnings []string `json:"warnings,omitempty"`
	Attempts int      `json:"attempts"`
	Cached   bool     `json:"cached"`
}

// Translator turns a chart request into a validated SELECT statement.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

type GeneratorConfig struct {
	Schema    Schema
	Dialect   Dialect
	Completer Completer
	Options   CompletionOptions
	// CacheTTL keeps validated SQL per normalized request. Zero disables it.
	CacheTTL time.Duration
	// FeedbackRetries re-prompts with the rejection reason after a
	// validation failure. Zero fails on the first rejection.
	FeedbackRetries int
	Logger          *slog.Logger
}

// Generator chains prompt building, completion and validation.
type Generator struct {
	schema          Schema
	dialect         Dialect
	completer       Completer
	validator       *Validator
	options         CompletionOptions
	cache           *ttlcache.Cache[string, Result]
	cacheTTL        time.Duration
	feedbackRetries int
	logger          *slog.Logger
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if len(cfg.Schema.Tables) == 0 {
		cfg.Schema = DefaultSchema()
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectPostgres
	}
	if cfg.FeedbackRetries < 0 {
		return nil, fmt.Errorf("feedback retries must not be negative")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	g := &Generator{
		schema:          cfg.Schema,
		dialect:         cfg.Dialect,
		completer:       cfg.Completer,
		validator:       NewValidator(cfg.Schema),
		options:         cfg.Options,
		cacheTTL:        cfg.CacheTTL,
		feedbackRetries: cfg.FeedbackRetries,
		logger:          logger,
	}
	if cfg.CacheTTL > 0 {
		g.cache = ttlcache.New(ttlcache.WithTTL[string, Result](cfg.CacheTTL))
	}
	return g, nil
}

func (g *Generator) Translate(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, fmt.Errorf("request text is required")
	}

	key := intent.Normalize(text)
	if g.cache != nil {
		if item := g.cache.Get(key); item != nil {
			observability.ObserveCompletionCache(true)
			cached := item.Value()
			cached.Cached = true
			return cached, nil
		}
		observability.ObserveCompletionCache(false)
	}

	base := BuildPrompt(g.schema, g.dialect, text)
	prompt := base
	for attempt := 1; ; attempt++ {
		raw, err := g.completer.Complete(ctx, prompt, g.options)
		if err != nil {
			return Result{}, err
		}

		validation, err := g.validator.Validate(raw, text)
		if err == nil {
			for _, warning := range validation.Warnings {
				g.logger.InfoContext(ctx, "generated query warning",
					observability.TraceAttr(ctx),
					slog.String("warning", warning),
				)
			}
			result := Result{SQL: validation.SQL, Warnings: validation.Warnings, Attempts: attempt}
			if g.cache != nil {
				g.cache.Set(key, result, g.cacheTTL)
			}
			return result, nil
		}

		rule := failure.RuleOf(err)
		observability.IncrementValidationFailure(rule)
		g.logger.InfoContext(ctx, "generated query rejected",
			observability.TraceAttr(ctx),
			slog.String("rule", rule),
			slog.String("reason", failure.Message(err)),
			slog.Int("attempt", attempt),
		)
		if attempt > g.feedbackRetries {
			return Result{}, err
		}
		prompt = BuildFeedbackPrompt(base, raw, failure.Message(err))
	}
}

// Close releases the completion cache.
func (g *Generator) Close() {
	if g.cache != nil {
		g.cache.DeleteAll()
	}
}

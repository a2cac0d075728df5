package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"movie-recommender/internal/domain"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("gateway: model provider unavailable")

// Provider submits a system prompt plus ordered history and returns the raw
// reply text with token usage.
type Provider interface {
	Complete(ctx context.Context, system string, messages []domain.ChatMessage, maxTokens int) (domain.Completion, error)
}

// Reply is a parsed completion and its actual cost.
type Reply struct {
	Text   string
	Result domain.RecommendationResult
	Usage  domain.Completion
	Cost   domain.Money
}

// Gateway wraps the model provider: it enforces the output cap, trips a
// breaker on repeated failures, parses the reply and prices the call.
type Gateway struct {
	provider  *Lazy
	breaker   *gobreaker.CircuitBreaker[domain.Completion]
	maxTokens int
	pricing   Pricing
	log       *slog.Logger
}

type Option func(*Gateway)

func WithMaxTokens(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

func WithPricing(p Pricing) Option {
	return func(g *Gateway) { g.pricing = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

func New(provider *Lazy, opts ...Option) (*Gateway, error) {
	if provider == nil {
		return nil, errors.New("gateway: provider must not be nil")
	}
	g := &Gateway{
		provider:  provider,
		maxTokens: DefaultMaxTokens,
		pricing:   DefaultPricing,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.breaker = gobreaker.NewCircuitBreaker[domain.Completion](gobreaker.Settings{
		Name:        "model-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Cancellation and client-side rejections say nothing about provider health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			status, ok := StatusCode(err)
			return ok && status >= 400 && status < 500 && status != 429
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return g, nil
}

// Estimate prices a call pessimistically before it is made.
func (g *Gateway) Estimate(history []domain.ChatMessage) domain.Money {
	return g.pricing.Estimate(history, g.maxTokens)
}

// Complete issues one model call. Malformed output degrades to a raw-text
// reply; only provider failures are returned as errors.
func (g *Gateway) Complete(ctx context.Context, system string, history []domain.ChatMessage) (Reply, error) {
	if len(history) == 0 {
		return Reply{}, errors.New("gateway: history must end with a member turn")
	}
	if last := history[len(history)-1]; last.Role != domain.RoleMember {
		return Reply{}, fmt.Errorf("gateway: last message role is %q, want %q", last.Role, domain.RoleMember)
	}

	provider, err := g.provider.Get(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("gateway: load provider: %w", err)
	}

	completion, err := g.breaker.Execute(func() (domain.Completion, error) {
		return provider.Complete(ctx, system, history, g.maxTokens)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Reply{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Reply{}, fmt.Errorf("gateway: complete: %w", err)
	}

	result, structured := parseReply(completion.Text)
	if !structured {
		g.log.Warn("model reply had no structured payload", "reply", compactJSON(completion.Text))
	}
	return Reply{
		Text:   completion.Text,
		Result: result,
		Usage:  completion,
		Cost:   g.pricing.Cost(completion.InputTokens, completion.OutputTokens),
	}, nil
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// StatusCode extracts an upstream HTTP status from err when one is present.
func StatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

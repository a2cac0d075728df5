package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"movie-recommender/internal/cache"
	"movie-recommender/internal/catalog"
	"movie-recommender/internal/domain"
	"movie-recommender/internal/gateway"
	"movie-recommender/internal/ledger"
	"movie-recommender/internal/repository"
)

const (
	unlockSampleSize    = 6
	freshSampleSize     = 10
	candidateSampleSize = 100
)

type MemberReader interface {
	GetMember(ctx context.Context, memberID string) (domain.Member, error)
}

type CatalogReader interface {
	Find(ctx context.Context, q catalog.Query) ([]domain.Movie, error)
	Watchlist(ctx context.Context, memberID string, status domain.WatchlistStatus) ([]domain.WatchlistEntry, error)
}

type Budget interface {
	HasCapacity(ctx context.Context, memberID string) (bool, error)
	Charge(ctx context.Context, memberID string, amount domain.Money) (domain.Money, error)
	Summary(ctx context.Context, memberID string) (ledger.Summary, error)
}

type ModelGateway interface {
	Complete(ctx context.Context, system string, history []domain.ChatMessage) (gateway.Reply, error)
	Estimate(history []domain.ChatMessage) domain.Money
}

type HistoryReader interface {
	ActiveHistory(ctx context.Context, memberID string) ([]domain.ConversationMessage, error)
}

// Recommender is the engine as seen by callers.
type Recommender interface {
	Recommend(ctx context.Context, memberID string, trigger Trigger) (domain.RecommendationResult, error)
}

// EngineDeps are the collaborators of the Engine. Every field is required.
type EngineDeps struct {
	Members      MemberReader
	Catalog      CatalogReader
	Budget       Budget
	Model        ModelGateway
	Conversation HistoryReader
	Cache        *cache.Cache
	// ChatSampleTTL keeps the chat candidate sample alive for one conversation.
	ChatSampleTTL time.Duration
}

// Engine dispatches a trigger to its strategy. It holds no per-member state.
type Engine struct {
	members       MemberReader
	catalog       CatalogReader
	budget        Budget
	model         ModelGateway
	conversation  HistoryReader
	cache         *cache.Cache
	chatSampleTTL time.Duration
	now           func() time.Time
	log           *slog.Logger
}

type EngineOption func(*Engine)

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(d EngineDeps, opts ...EngineOption) (*Engine, error) {
	switch {
	case d.Members == nil:
		return nil, errors.New("usecase: member reader must not be nil")
	case d.Catalog == nil:
		return nil, errors.New("usecase: catalog must not be nil")
	case d.Budget == nil:
		return nil, errors.New("usecase: budget must not be nil")
	case d.Model == nil:
		return nil, errors.New("usecase: model gateway must not be nil")
	case d.Conversation == nil:
		return nil, errors.New("usecase: conversation reader must not be nil")
	case d.Cache == nil:
		return nil, errors.New("usecase: cache must not be nil")
	}
	if d.ChatSampleTTL <= 0 {
		d.ChatSampleTTL = 2 * time.Minute
	}
	e := &Engine{
		members:       d.Members,
		catalog:       d.Catalog,
		budget:        d.Budget,
		model:         d.Model,
		conversation:  d.Conversation,
		cache:         d.Cache,
		chatSampleTTL: d.ChatSampleTTL,
		now:           time.Now,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Recommend runs the strategy for trigger. Budget exhaustion is reported as
// ErrorBudgetExceeded before any model call; malformed model output is never
// an error.
func (e *Engine) Recommend(ctx context.Context, memberID string, trigger Trigger) (domain.RecommendationResult, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return domain.RecommendationResult{}, newError(ErrorInvalidInput, "missing_member", nil)
	}
	if trigger == nil {
		return domain.RecommendationResult{}, newError(ErrorInvalidInput, "missing_trigger", nil)
	}
	if err := validateTrigger(trigger); err != nil {
		return domain.RecommendationResult{}, err
	}

	member, err := e.members.GetMember(ctx, memberID)
	if err != nil {
		return domain.RecommendationResult{}, memberError(err)
	}

	if trigger.aiBacked() {
		ok, err := e.budget.HasCapacity(ctx, memberID)
		if err != nil {
			return domain.RecommendationResult{}, newError(ErrorInternal, "ledger_read_error", err)
		}
		if !ok {
			e.log.Info("budget exhausted", "member_id", memberID, "trigger", trigger.Kind())
			return domain.RecommendationResult{}, newError(ErrorBudgetExceeded, "discussion_power_exhausted", nil)
		}
	}

	e.log.Info("dispatching trigger", "member_id", memberID, "trigger", trigger.Kind())

	var result domain.RecommendationResult
	switch t := trigger.(type) {
	case ChatbotMessage:
		result, err = e.chatbot(ctx, member, t)
	case RatingUnlock:
		result, err = e.unlock(ctx, member, t)
	case WatchlistQueued:
		result, err = e.queued(ctx, member)
	case WatchlistSimilar:
		result, err = e.similar(ctx, member)
	case DatabaseRandom:
		result, err = e.fresh(ctx, member)
	default:
		panic(fmt.Sprintf("usecase: unhandled trigger %T", trigger))
	}
	if err != nil {
		return domain.RecommendationResult{}, err
	}
	if result.Recommendations == nil {
		result.Recommendations = []domain.Recommendation{}
	}
	return result, nil
}

// callModel gates, calls and charges one completion. The charge survives
// caller cancellation once the provider has answered.
func (e *Engine) callModel(ctx context.Context, member domain.Member, system string, history []domain.ChatMessage, candidates []domain.Movie) (domain.RecommendationResult, error) {
	e.log.Debug("model call estimate", "member_id", member.ID, "estimate_micros", int64(e.model.Estimate(history)))

	reply, err := e.model.Complete(ctx, system, history)
	if err != nil {
		return domain.RecommendationResult{}, modelError(err)
	}

	total, err := e.budget.Charge(context.WithoutCancel(ctx), member.ID, reply.Cost)
	if err != nil {
		return domain.RecommendationResult{}, newError(ErrorInternal, "ledger_charge_error", err)
	}
	e.log.Info("model call charged", "member_id", member.ID, "cost_micros", int64(reply.Cost), "spend_micros", int64(total))

	result := reply.Result
	result.Recommendations = keepCandidates(result.Recommendations, candidates)
	return result, nil
}

// keepCandidates drops recommendations outside the sample the model was shown
// and refreshes catalog fields from the sample.
func keepCandidates(recs []domain.Recommendation, candidates []domain.Movie) []domain.Recommendation {
	byID := make(map[int64]domain.Movie, len(candidates))
	for _, m := range candidates {
		byID[m.ID] = m
	}
	out := make([]domain.Recommendation, 0, len(recs))
	seen := make(map[int64]bool, len(recs))
	for _, r := range recs {
		m, ok := byID[r.ID]
		if !ok || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, domain.RecommendationFromMovie(m, r.Reason))
	}
	return out
}

func memberError(err error) error {
	if errors.Is(err, repository.ErrMemberNotFound) {
		return newError(ErrorNotFound, "member_not_found", err)
	}
	return newError(ErrorInternal, "member_read_error", err)
}

func modelError(err error) error {
	if status, ok := gateway.StatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, "model_rate_limited", err)
	}
	if errors.Is(err, gateway.ErrUnavailable) {
		return newError(ErrorUpstream, "model_unavailable", err)
	}
	return newError(ErrorUpstream, "model_error", err)
}

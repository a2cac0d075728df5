package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"movie-recommender/internal/catalog"
	"movie-recommender/internal/domain"
	"movie-recommender/internal/ledger"
)

type ConversationLog interface {
	Record(ctx context.Context, memberID, role, content string, movieIDs []int64) (domain.ConversationMessage, error)
	History(ctx context.Context, memberID string) ([]domain.ConversationMessage, error)
	Clear(ctx context.Context, memberID string) (int, error)
}

type MovieFinder interface {
	Find(ctx context.Context, q catalog.Query) ([]domain.Movie, error)
}

type SampleInvalidator interface {
	InvalidateMember(ctx context.Context, memberID string, triggers ...string)
}

// ChatReply is the outcome of one conversational turn.
type ChatReply struct {
	Message         string                  `json:"message"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	DiscussionPower ledger.Summary          `json:"discussionPower"`
}

// HistoryItem is a persisted turn with its recommended movies resolved.
type HistoryItem struct {
	domain.ConversationMessage
	Recommendations []domain.Movie `json:"recommendations"`
}

// ChatService runs the conversational exchange: persist the member turn, ask
// the engine, persist the reply.
type ChatService struct {
	engine Recommender
	conv   ConversationLog
	budget Budget
	movies MovieFinder
	cache  SampleInvalidator
	log    *slog.Logger
}

func NewChatService(engine Recommender, conv ConversationLog, budget Budget, movies MovieFinder, cache SampleInvalidator, logger *slog.Logger) (*ChatService, error) {
	if engine == nil || conv == nil || budget == nil || movies == nil || cache == nil {
		return nil, errors.New("usecase: chat service dependencies must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{engine: engine, conv: conv, budget: budget, movies: movies, cache: cache, log: logger}, nil
}

func (s *ChatService) Send(ctx context.Context, memberID, message string) (ChatReply, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return ChatReply{}, newError(ErrorInvalidInput, "missing_member", nil)
	}
	trigger, err := ParseTrigger(string(KindChatbotMessage), map[string]string{"message": message})
	if err != nil {
		return ChatReply{}, err
	}
	message = strings.TrimSpace(message)

	// Nothing is persisted for a member who cannot pay for the reply.
	ok, err := s.budget.HasCapacity(ctx, memberID)
	if err != nil {
		return ChatReply{}, newError(ErrorInternal, "ledger_read_error", err)
	}
	if !ok {
		return ChatReply{}, newError(ErrorBudgetExceeded, "discussion_power_exhausted", nil)
	}

	if _, err := s.conv.Record(ctx, memberID, domain.RoleMember, message, nil); err != nil {
		return ChatReply{}, newError(ErrorInternal, "conversation_write_error", err)
	}

	result, err := s.engine.Recommend(ctx, memberID, trigger)
	if err != nil {
		return ChatReply{}, err
	}

	ids := make([]int64, 0, len(result.Recommendations))
	for _, r := range result.Recommendations {
		ids = append(ids, r.ID)
	}
	if _, err := s.conv.Record(context.WithoutCancel(ctx), memberID, domain.RoleAssistant, result.Message, ids); err != nil {
		return ChatReply{}, newError(ErrorInternal, "conversation_write_error", err)
	}

	summary, err := s.budget.Summary(ctx, memberID)
	if err != nil {
		return ChatReply{}, newError(ErrorInternal, "ledger_read_error", err)
	}
	return ChatReply{
		Message:         result.Message,
		Recommendations: result.Recommendations,
		DiscussionPower: summary,
	}, nil
}

// History returns every persisted turn, oldest first, after expiring stale
// ones.
func (s *ChatService) History(ctx context.Context, memberID string) ([]HistoryItem, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, newError(ErrorInvalidInput, "missing_member", nil)
	}
	msgs, err := s.conv.History(ctx, memberID)
	if err != nil {
		return nil, newError(ErrorInternal, "conversation_read_error", err)
	}

	var ids []int64
	for _, m := range msgs {
		if m.Role == domain.RoleAssistant {
			ids = append(ids, m.MovieIDs...)
		}
	}
	byID := map[int64]domain.Movie{}
	if len(ids) > 0 {
		movies, err := s.movies.Find(ctx, catalog.ByIDs(ids))
		if err != nil {
			return nil, newError(ErrorInternal, "catalog_read_error", err)
		}
		for _, m := range movies {
			byID[m.ID] = m
		}
	}

	out := make([]HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		item := HistoryItem{ConversationMessage: m, Recommendations: []domain.Movie{}}
		if m.Role == domain.RoleAssistant {
			for _, id := range m.MovieIDs {
				if movie, ok := byID[id]; ok {
					item.Recommendations = append(item.Recommendations, movie)
				}
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Clear deletes the member's conversation and drops the pinned chat sample.
func (s *ChatService) Clear(ctx context.Context, memberID string) (int, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return 0, newError(ErrorInvalidInput, "missing_member", nil)
	}
	n, err := s.conv.Clear(ctx, memberID)
	if err != nil {
		return 0, newError(ErrorInternal, "conversation_delete_error", err)
	}
	s.cache.InvalidateMember(ctx, memberID)
	s.log.Info("conversation cleared", "member_id", memberID, "deleted", n)
	return n, nil
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"movie-recommender/internal/domain"
)

// DefaultWindow is how long a message stays part of the live conversation.
const DefaultWindow = 2 * time.Minute

// Store persists conversation messages. *repository.Client satisfies it.
type Store interface {
	AppendMessage(ctx context.Context, msg domain.ConversationMessage) error
	ListMessages(ctx context.Context, memberID string, activeOnly bool) ([]domain.ConversationMessage, error)
	ExpireMessages(ctx context.Context, memberID string, cutoff time.Time) (int, error)
	DeactivateMessages(ctx context.Context, memberID string) (int, error)
	DeleteMessages(ctx context.Context, memberID string) (int, error)
}

// Service owns the conversation lifecycle: appending turns in order, closing
// the exchange when the member acts, and expiring stale turns on read.
type Service struct {
	store  Store
	window time.Duration
	now    func() time.Time
	log    *slog.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func New(store Store, window time.Duration, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("conversation: store must not be nil")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Service{
		store:  store,
		window: window,
		now:    time.Now,
		log:    slog.Default(),
		last:   map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Window returns the expiry window.
func (s *Service) Window() time.Duration {
	return s.window
}

// ExpireAll deactivates active messages older than the window.
func (s *Service) ExpireAll(ctx context.Context, memberID string) error {
	cutoff := s.now().Add(-s.window)
	n, err := s.store.ExpireMessages(ctx, memberID, cutoff)
	if err != nil {
		return fmt.Errorf("conversation: ExpireAll: %w", err)
	}
	if n > 0 {
		s.log.Debug("expired conversation messages", "member_id", memberID, "count", n)
	}
	return nil
}

// CompleteExchange closes the open conversation regardless of age. Calling it
// again is a no-op.
func (s *Service) CompleteExchange(ctx context.Context, memberID string) error {
	n, err := s.store.DeactivateMessages(ctx, memberID)
	if err != nil {
		return fmt.Errorf("conversation: CompleteExchange: %w", err)
	}
	s.log.Info("conversation exchange completed", "member_id", memberID, "closed", n)
	return nil
}

// ActiveHistory returns the live conversation, oldest first, after expiring
// stale turns.
func (s *Service) ActiveHistory(ctx context.Context, memberID string) ([]domain.ConversationMessage, error) {
	return s.read(ctx, memberID, true)
}

// History returns every stored message, oldest first, after expiring stale
// turns.
func (s *Service) History(ctx context.Context, memberID string) ([]domain.ConversationMessage, error) {
	return s.read(ctx, memberID, false)
}

func (s *Service) read(ctx context.Context, memberID string, activeOnly bool) ([]domain.ConversationMessage, error) {
	if err := s.ExpireAll(ctx, memberID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, memberID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("conversation: list messages: %w", err)
	}
	return msgs, nil
}

// Record appends an active turn. Timestamps handed out for a member strictly
// increase so the stored order always matches the order of calls.
func (s *Service) Record(ctx context.Context, memberID, role, content string, movieIDs []int64) (domain.ConversationMessage, error) {
	if strings.TrimSpace(memberID) == "" {
		return domain.ConversationMessage{}, errors.New("conversation: member id must not be empty")
	}
	if role != domain.RoleMember && role != domain.RoleAssistant {
		return domain.ConversationMessage{}, fmt.Errorf("conversation: unknown role %q", role)
	}

	msg := domain.ConversationMessage{
		ID:        newID(),
		MemberID:  memberID,
		Role:      role,
		Content:   content,
		MovieIDs:  movieIDs,
		Active:    true,
		CreatedAt: s.nextTimestamp(memberID),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return domain.ConversationMessage{}, fmt.Errorf("conversation: Record: %w", err)
	}
	return msg, nil
}

// Clear deletes every message the member has.
func (s *Service) Clear(ctx context.Context, memberID string) (int, error) {
	n, err := s.store.DeleteMessages(ctx, memberID)
	if err != nil {
		return n, fmt.Errorf("conversation: Clear: %w", err)
	}
	s.mu.Lock()
	delete(s.last, memberID)
	s.mu.Unlock()
	return n, nil
}

func (s *Service) nextTimestamp(memberID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC()
	if prev, ok := s.last[memberID]; ok && !ts.After(prev) {
		ts = prev.Add(time.Microsecond)
	}
	// Entries older than the window only guard already expired messages.
	for id, prev := range s.last {
		if ts.Sub(prev) > s.window {
			delete(s.last, id)
		}
	}
	s.last[memberID] = ts
	return ts
}

var newID = func() string {
	return uuid.NewString()
}

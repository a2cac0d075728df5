package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"movie-recommender/internal/catalog"
	"movie-recommender/internal/domain"
)

type WatchlistStore interface {
	Find(ctx context.Context, q catalog.Query) ([]domain.Movie, error)
	Movie(ctx context.Context, id int64) (domain.Movie, error)
	Watchlist(ctx context.Context, memberID string, status domain.WatchlistStatus) ([]domain.WatchlistEntry, error)
	AddToWatchlist(ctx context.Context, memberID string, movieID int64) (domain.WatchlistEntry, error)
	RemoveFromWatchlist(ctx context.Context, memberID string, movieID int64) error
	SetWatchlistStatus(ctx context.Context, memberID string, movieID int64, status domain.WatchlistStatus) (domain.WatchlistEntry, error)
}

type ExchangeCompleter interface {
	CompleteExchange(ctx context.Context, memberID string) error
}

// WatchlistService applies member watchlist actions and picks the overview
// trigger.
type WatchlistService struct {
	store   WatchlistStore
	members MemberReader
	engine  Recommender
	conv    ExchangeCompleter
	cache   SampleInvalidator
	now     func() time.Time
	log     *slog.Logger
}

type WatchlistDeps struct {
	Store        WatchlistStore
	Members      MemberReader
	Engine       Recommender
	Conversation ExchangeCompleter
	Cache        SampleInvalidator
	Clock        func() time.Time
	Logger       *slog.Logger
}

func NewWatchlistService(d WatchlistDeps) (*WatchlistService, error) {
	if d.Store == nil || d.Members == nil || d.Engine == nil || d.Conversation == nil || d.Cache == nil {
		return nil, errors.New("usecase: watchlist service dependencies must not be nil")
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &WatchlistService{
		store:   d.Store,
		members: d.Members,
		engine:  d.Engine,
		conv:    d.Conversation,
		cache:   d.Cache,
		now:     d.Clock,
		log:     d.Logger,
	}, nil
}

// List returns the member's entries, optionally narrowed to one status.
func (s *WatchlistService) List(ctx context.Context, memberID, status string) ([]domain.WatchlistEntry, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, newError(ErrorInvalidInput, "missing_member", nil)
	}
	var st domain.WatchlistStatus
	if status = strings.TrimSpace(status); status != "" {
		parsed, err := domain.ParseWatchlistStatus(status)
		if err != nil {
			return nil, newError(ErrorInvalidInput, "invalid_status", err)
		}
		st = parsed
	}
	entries, err := s.store.Watchlist(ctx, memberID, st)
	if err != nil {
		return nil, newError(ErrorInternal, "watchlist_read_error", err)
	}
	return entries, nil
}

// Add queues a movie. Movies the member may not see are reported as missing.
func (s *WatchlistService) Add(ctx context.Context, memberID string, movieID int64) (domain.WatchlistEntry, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return domain.WatchlistEntry{}, newError(ErrorInvalidInput, "missing_member", nil)
	}
	if movieID <= 0 {
		return domain.WatchlistEntry{}, newError(ErrorInvalidInput, "missing_movie_id", nil)
	}

	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return domain.WatchlistEntry{}, memberError(err)
	}
	movie, err := s.store.Movie(ctx, movieID)
	if err != nil {
		return domain.WatchlistEntry{}, watchlistError(err)
	}
	if !catalog.CanWatch(member.Age(s.now()), movie.Rating) {
		return domain.WatchlistEntry{}, newError(ErrorNotFound, "movie_not_found", nil)
	}

	entry, err := s.store.AddToWatchlist(ctx, memberID, movieID)
	if err != nil {
		return domain.WatchlistEntry{}, watchlistError(err)
	}
	s.afterChange(ctx, memberID, true)
	return entry, nil
}

func (s *WatchlistService) Remove(ctx context.Context, memberID string, movieID int64) error {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return newError(ErrorInvalidInput, "missing_member", nil)
	}
	if err := s.store.RemoveFromWatchlist(ctx, memberID, movieID); err != nil {
		return watchlistError(err)
	}
	s.afterChange(ctx, memberID, true)
	return nil
}

func (s *WatchlistService) SetStatus(ctx context.Context, memberID string, movieID int64, status string) (domain.WatchlistEntry, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return domain.WatchlistEntry{}, newError(ErrorInvalidInput, "missing_member", nil)
	}
	st, err := domain.ParseWatchlistStatus(strings.TrimSpace(status))
	if err != nil {
		return domain.WatchlistEntry{}, newError(ErrorInvalidInput, "invalid_status", err)
	}
	entry, err := s.store.SetWatchlistStatus(ctx, memberID, movieID, st)
	if err != nil {
		return domain.WatchlistEntry{}, watchlistError(err)
	}
	s.afterChange(ctx, memberID, false)
	return entry, nil
}

// afterChange drops caches derived from the watchlist. The write has already
// happened, so follow-up failures are only logged.
func (s *WatchlistService) afterChange(ctx context.Context, memberID string, completeExchange bool) {
	ctx = context.WithoutCancel(ctx)
	s.cache.InvalidateMember(ctx, memberID, string(KindWatchlistSimilar))
	if !completeExchange {
		return
	}
	if err := s.conv.CompleteExchange(ctx, memberID); err != nil {
		s.log.Warn("complete exchange failed", "member_id", memberID, "err", err)
	}
}

func watchlistError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrMovieNotFound):
		return newError(ErrorNotFound, "movie_not_found", err)
	case errors.Is(err, catalog.ErrNotInWatchlist):
		return newError(ErrorNotFound, "not_in_watchlist", err)
	case errors.Is(err, catalog.ErrDuplicate):
		return newError(ErrorConflict, "already_in_watchlist", err)
	default:
		return newError(ErrorInternal, "watchlist_write_error", err)
	}
}

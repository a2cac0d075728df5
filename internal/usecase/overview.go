package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"movie-recommender/internal/catalog"
	"movie-recommender/internal/domain"
)

const (
	overviewFresh   = "Fresh picks from our collection"
	overviewSimilar = "Based on movies you've watched"
	overviewQueued  = "Movies from your watchlist queue"
)

type WatchlistStats struct {
	Total   int `json:"total"`
	Watched int `json:"watched"`
	Queued  int `json:"queued"`
}

func statsOf(entries []domain.WatchlistEntry) WatchlistStats {
	st := WatchlistStats{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case domain.StatusWatched:
			st.Watched++
		case domain.StatusQueued:
			st.Queued++
		}
	}
	return st
}

// Selection is the trigger chosen for a member's landing view.
type Selection struct {
	Trigger Trigger
	Reason  string
}

// SelectTrigger applies the overview precedence: a freshly unlocked rating,
// then an empty watchlist, then a fully watched one, then the queue.
func SelectTrigger(member domain.Member, stats WatchlistStats, now time.Time) Selection {
	if member.BirthdayWithinLastMonth(now) && catalog.UnlocksRating(member.AgeLastYear(now), member.Age(now)) {
		rating := catalog.HighestRating(member.Age(now))
		reason := fmt.Sprintf("You are now able to browse %s movies.", rating)
		if member.IsBirthday(now) {
			reason = fmt.Sprintf("Happy Birthday! %s movies have been unlocked!", rating)
		}
		return Selection{Trigger: RatingUnlock{Rating: rating}, Reason: reason}
	}
	switch {
	case stats.Total == 0:
		return Selection{Trigger: DatabaseRandom{}, Reason: overviewFresh}
	case stats.Queued == 0 && stats.Watched > 0:
		return Selection{Trigger: WatchlistSimilar{}, Reason: overviewSimilar}
	default:
		return Selection{Trigger: WatchlistQueued{}, Reason: overviewQueued}
	}
}

type Overview struct {
	Watchlist WatchlistStats `json:"watchlist"`
	Trigger   TriggerKind    `json:"trigger"`
	Reason    string         `json:"reason"`
	Movies    []domain.Movie `json:"movies"`
}

// Overview picks a trigger for the member and resolves its recommendations
// to full catalog entries.
func (s *WatchlistService) Overview(ctx context.Context, memberID string) (Overview, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return Overview{}, newError(ErrorInvalidInput, "missing_member", nil)
	}
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return Overview{}, memberError(err)
	}
	entries, err := s.store.Watchlist(ctx, memberID, "")
	if err != nil {
		return Overview{}, newError(ErrorInternal, "watchlist_read_error", err)
	}
	stats := statsOf(entries)

	sel := SelectTrigger(member, stats, s.now())
	result, err := s.engine.Recommend(ctx, memberID, sel.Trigger)
	var ue *Error
	if errors.As(err, &ue) && ue.Code == ErrorBudgetExceeded && sel.Trigger.Kind() == KindWatchlistSimilar {
		s.log.Info("similar picks over budget, falling back to fresh", "member_id", memberID)
		sel = Selection{Trigger: DatabaseRandom{}, Reason: overviewFresh}
		result, err = s.engine.Recommend(ctx, memberID, sel.Trigger)
	}
	if err != nil {
		return Overview{}, err
	}

	movies, err := s.hydrate(ctx, result.Recommendations)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Watchlist: stats,
		Trigger:   sel.Trigger.Kind(),
		Reason:    sel.Reason,
		Movies:    movies,
	}, nil
}

// hydrate resolves recommendations to catalog rows, keeping their order.
func (s *WatchlistService) hydrate(ctx context.Context, recs []domain.Recommendation) ([]domain.Movie, error) {
	out := make([]domain.Movie, 0, len(recs))
	if len(recs) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	movies, err := s.store.Find(ctx, catalog.ByIDs(ids))
	if err != nil {
		return nil, newError(ErrorInternal, "catalog_read_error", err)
	}
	byID := make(map[int64]domain.Movie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

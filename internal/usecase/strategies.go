package usecase

import (
	"context"
	"fmt"
	"strings"

	"movie-recommender/internal/cache"
	"movie-recommender/internal/catalog"
	"movie-recommender/internal/domain"
)

const (
	reasonQueued = "From your watchlist queue"
	reasonFresh  = "Fresh pick from our collection"
)

func unlockReason(rating string) string {
	return fmt.Sprintf("Newly unlocked %s rated movie", rating)
}

func (e *Engine) chatbot(ctx context.Context, member domain.Member, t ChatbotMessage) (domain.RecommendationResult, error) {
	message := strings.TrimSpace(t.Message)

	active, err := e.conversation.ActiveHistory(ctx, member.ID)
	if err != nil {
		return domain.RecommendationResult{}, newError(ErrorInternal, "conversation_read_error", err)
	}
	history := domain.ChatMessages(active)
	if n := len(history); n == 0 || history[n-1].Role != domain.RoleMember || strings.TrimSpace(history[n-1].Content) != message {
		history = append(history, domain.ChatMessage{Role: domain.RoleMember, Content: message})
	}

	watchlist, err := e.catalog.Watchlist(ctx, member.ID, "")
	if err != nil {
		return domain.RecommendationResult{}, newError(ErrorInternal, "watchlist_read_error", err)
	}

	// The sample is pinned for the conversation, so follow-up turns discuss
	// the same titles.
	candidates, err := cache.Memoize(ctx, e.cache, cache.ChatSampleKey(member.ID), e.chatSampleTTL,
		func(ctx context.Context) ([]domain.Movie, error) {
			return e.chatCandidates(ctx, member, message)
		})
	if err != nil {
		return domain.RecommendationResult{}, newError(ErrorInternal, "catalog_read_error", err)
	}

	return e.callModel(ctx, member, buildChatbotPrompt(watchlist, candidates), history, candidates)
}

func (e *Engine) chatCandidates(ctx context.Context, member domain.Member, message string) ([]domain.Movie, error) {
	ratings := catalog.AllowedRatings(member.Age(e.now()))
	if f := catalog.ExtractFilters(message); !f.Empty() {
		movies, err := e.catalog.Find(ctx, catalog.Filtered(f, ratings, candidateSampleSize))
		if err != nil {
			return nil, err
		}
		if len(movies) > 0 {
			return movies, nil
		}
	}
	return e.catalog.Find(ctx, catalog.Sample(ratings, candidateSampleSize))
}

func (e *Engine) unlock(ctx context.Context, member domain.Member, t RatingUnlock) (domain.RecommendationResult, error) {
	if !catalog.CanWatch(member.Age(e.now()), t.Rating) {
		return domain.RecommendationResult{}, newError(ErrorInvalidInput, "rating_not_unlocked", nil)
	}
	key := cache.RecommendationKey(member.ID, string(KindRatingUnlock)+":"+t.Rating)
	result, err := cache.Memoize(ctx, e.cache, key, cache.RecommendationTTL,
		func(ctx context.Context) (domain.RecommendationResult, error) {
			movies, err := e.catalog.Find(ctx, catalog.Query{Rating: t.Rating, Limit: unlockSampleSize})
			if err != nil {
				return domain.RecommendationResult{}, err
			}
			return fromMovies(movies, unlockReason(t.Rating)), nil
		})
	if err != nil {
		return domain.RecommendationResult{}, newError(ErrorInternal, "catalog_read_error", err)
	}
	return result, nil
}

func (e *Engine) queued(ctx context.Context, member domain.Member) (domain.RecommendationResult, error) {
	entries, err := e.catalog.Watchlist(ctx, member.ID, domain.StatusQueued)
	if err != nil {
		return domain.RecommendationResult{}, newError(ErrorInternal, "watchlist_read_error", err)
	}
	recs := make([]domain.Recommendation, 0, len(entries))
	for _, entry := range entries {
		recs = append(recs, domain.RecommendationFromMovie(entry.Movie, reasonQueued))
	}
	return domain.RecommendationResult{Recommendations: recs}, nil
}

func (e *Engine) similar(ctx context.Context, member domain.Member) (domain.RecommendationResult, error) {
	key := cache.RecommendationKey(member.ID, string(KindWatchlistSimilar))
	return cache.Memoize(ctx, e.cache, key, cache.RecommendationTTL,
		func(ctx context.Context) (domain.RecommendationResult, error) {
			watched, err := e.catalog.Watchlist(ctx, member.ID, domain.StatusWatched)
			if err != nil {
				return domain.RecommendationResult{}, newError(ErrorInternal, "watchlist_read_error", err)
			}
			exclude := make([]int64, 0, len(watched))
			for _, w := range watched {
				exclude = append(exclude, w.MovieID)
			}
			q := catalog.Sample(catalog.AllowedRatings(member.Age(e.now())), candidateSampleSize)
			q.ExcludeIDs = exclude
			candidates, err := e.catalog.Find(ctx, q)
			if err != nil {
				return domain.RecommendationResult{}, newError(ErrorInternal, "catalog_read_error", err)
			}

			history := []domain.ChatMessage{{Role: domain.RoleMember, Content: similarRequest}}
			return e.callModel(ctx, member, buildSimilarPrompt(watched, candidates), history, candidates)
		})
}

func (e *Engine) fresh(ctx context.Context, member domain.Member) (domain.RecommendationResult, error) {
	movies, err := e.catalog.Find(ctx, catalog.Sample(catalog.AllowedRatings(member.Age(e.now())), freshSampleSize))
	if err != nil {
		return domain.RecommendationResult{}, newError(ErrorInternal, "catalog_read_error", err)
	}
	return fromMovies(movies, reasonFresh), nil
}

func fromMovies(movies []domain.Movie, reason string) domain.RecommendationResult {
	recs := make([]domain.Recommendation, 0, len(movies))
	for _, m := range movies {
		recs = append(recs, domain.RecommendationFromMovie(m, reason))
	}
	return domain.RecommendationResult{Recommendations: recs}
}

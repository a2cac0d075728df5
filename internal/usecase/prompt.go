package usecase

import (
	"fmt"
	"strings"

	"movie-recommender/internal/domain"
)

const (
	maxWatchlistLines = 50
	emptyWatchlist    = "Empty - user hasn't added any movies yet"
	emptyWatched      = "None - user hasn't marked any movies as watched yet"

	similarRequest = "Based on my watched movies, recommend something I'd enjoy."
)

// WatchlistContext renders one line per entry in input order:
// "Title (Year) - Genre - status". Long watchlists keep the first
// maxWatchlistLines entries.
func WatchlistContext(entries []domain.WatchlistEntry) string {
	if len(entries) == 0 {
		return emptyWatchlist
	}
	lines := make([]string, 0, min(len(entries), maxWatchlistLines))
	for _, e := range entries[:min(len(entries), maxWatchlistLines)] {
		lines = append(lines, fmt.Sprintf("%s - %s", movieLine(e.Movie), e.Status))
	}
	return strings.Join(lines, "\n")
}

// WatchedContext renders watched entries without status.
func WatchedContext(entries []domain.WatchlistEntry) string {
	if len(entries) == 0 {
		return emptyWatched
	}
	lines := make([]string, 0, min(len(entries), maxWatchlistLines))
	for _, e := range entries[:min(len(entries), maxWatchlistLines)] {
		lines = append(lines, movieLine(e.Movie))
	}
	return strings.Join(lines, "\n")
}

// CatalogContext renders candidates with the id the model must echo back:
// "Title (Year) - Genre - ID:n".
func CatalogContext(movies []domain.Movie) string {
	lines := make([]string, 0, len(movies))
	for _, m := range movies {
		lines = append(lines, fmt.Sprintf("%s - ID:%d", movieLine(m), m.ID))
	}
	return strings.Join(lines, "\n")
}

func movieLine(m domain.Movie) string {
	return fmt.Sprintf("%s (%d) - %s", m.Title, m.ReleaseYear, m.Genre)
}

func buildChatbotPrompt(watchlist []domain.WatchlistEntry, candidates []domain.Movie) string {
	return strings.Join([]string{
		"Role:",
		"You are a movie recommendation assistant for this user.",
		"",
		fmt.Sprintf("User's Watchlist (%d movies):", len(watchlist)),
		WatchlistContext(watchlist),
		"",
		fmt.Sprintf("Available Movies (showing %d of our collection):", len(candidates)),
		CatalogContext(candidates),
		"",
		"Behavior Rules:",
		behaviorRules(),
		"5) Reference the user's watchlist when making personalized suggestions.",
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func buildSimilarPrompt(watched []domain.WatchlistEntry, candidates []domain.Movie) string {
	return strings.Join([]string{
		"Role:",
		"You are a movie recommendation assistant for this user.",
		"",
		fmt.Sprintf("Movies the user has watched (%d):", len(watched)),
		WatchedContext(watched),
		"",
		fmt.Sprintf("Available Movies (showing %d of our collection):", len(candidates)),
		CatalogContext(candidates),
		"",
		"Behavior Rules:",
		behaviorRules(),
		"5) Suggest titles similar in genre, era or tone to what the user has watched.",
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Keep the message short, two or three sentences at most.",
		"2) Only recommend movies from the available list above.",
		"3) Never recommend a movie the user already has on their watchlist.",
		"4) Use the exact ID shown for each recommended movie.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys message (string) and recommendations (array). " +
		"Each recommendation has id (number), title (string), year (number), genre (string) and reason (string). " +
		"If nothing fits, return an empty recommendations array and explain in message."
}

package domain

import (
	"fmt"
	"time"
)

type WatchlistStatus string

const (
	StatusQueued  WatchlistStatus = "queued"
	StatusWatched WatchlistStatus = "watched"
)

func ParseWatchlistStatus(s string) (WatchlistStatus, error) {
	switch WatchlistStatus(s) {
	case StatusQueued, StatusWatched:
		return WatchlistStatus(s), nil
	default:
		return "", fmt.Errorf("domain: invalid watchlist status %q", s)
	}
}

// WatchlistEntry relates a member to a movie.
type WatchlistEntry struct {
	ID        int64           `json:"id"`
	MemberID  string          `json:"memberId"`
	MovieID   int64           `json:"movieId"`
	Status    WatchlistStatus `json:"status"`
	AddedAt   time.Time       `json:"addedAt"`
	WatchedAt *time.Time      `json:"watchedAt,omitempty"`
	Movie     Movie           `json:"movie"`
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"movie-recommender/internal/domain"
)

var (
	ErrMovieNotFound  = errors.New("catalog: movie not found")
	ErrDuplicate      = errors.New("catalog: movie already in watchlist")
	ErrNotInWatchlist = errors.New("catalog: movie not in watchlist")
)

type movieRow struct {
	ID             int64  `gorm:"primaryKey"`
	Title          string `gorm:"size:200;not null"`
	Director       string `gorm:"size:100"`
	ReleaseYear    int    `gorm:"index"`
	Genre          string `gorm:"size:50;index"`
	Description    string `gorm:"type:text"`
	RuntimeMinutes int
	Rating         string   `gorm:"size:10;index"`
	IMDBRating     *float64 `gorm:"column:imdb_rating"`
	PosterURL      string   `gorm:"size:500"`
	CreatedAt      time.Time
}

func (movieRow) TableName() string { return "movie" }

type watchlistRow struct {
	ID        int64     `gorm:"primaryKey"`
	MemberID  string    `gorm:"size:64;not null;uniqueIndex:idx_watchlist_member_movie,priority:1"`
	MovieID   int64     `gorm:"not null;uniqueIndex:idx_watchlist_member_movie,priority:2"`
	Status    string    `gorm:"size:16;not null"`
	AddedAt   time.Time `gorm:"not null"`
	WatchedAt *time.Time
	Movie     movieRow `gorm:"foreignKey:MovieID"`
}

func (watchlistRow) TableName() string { return "watchlist" }

// Query describes a catalog read. A nil Ratings slice means no rating
// restriction; Rating, when set, requires an exact match.
type Query struct {
	Filters
	Ratings    []string
	Rating     string
	IDs        []int64
	ExcludeIDs []int64
	Limit      int
	// Ordered returns rows by id instead of in random order.
	Ordered bool
}

// Sample is a random draw of age-appropriate movies.
func Sample(ratings []string, limit int) Query {
	return Query{Ratings: ratings, Limit: limit}
}

// ByIDs looks up specific movies, ordered by id.
func ByIDs(ids []int64) Query {
	if ids == nil {
		ids = []int64{}
	}
	return Query{IDs: ids, Ordered: true}
}

// Filtered is a random draw restricted by genre and decade filters.
func Filtered(f Filters, ratings []string, limit int) Query {
	return Query{Filters: f, Ratings: ratings, Limit: limit}
}

// Repository reads the movie catalog and reads/writes member watchlists.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("catalog: db must not be nil")
	}
	return &Repository{db: db, now: time.Now}, nil
}

// AutoMigrate creates the movie and watchlist tables when missing.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&movieRow{}, &watchlistRow{}); err != nil {
		return fmt.Errorf("catalog: auto migrate: %w", err)
	}
	return nil
}

// Find runs q against the catalog.
func (r *Repository) Find(ctx context.Context, q Query) ([]domain.Movie, error) {
	tx := r.db.WithContext(ctx).Model(&movieRow{})
	if q.Ratings != nil {
		tx = tx.Where("rating IN ?", q.Ratings)
	}
	if q.Rating != "" {
		tx = tx.Where("rating = ?", q.Rating)
	}
	if len(q.Genres) > 0 {
		tx = tx.Where("genre IN ?", q.Genres)
	}
	if len(q.Decades) > 0 {
		decades := r.db.Where("release_year BETWEEN ? AND ?", q.Decades[0].Start, q.Decades[0].End)
		for _, d := range q.Decades[1:] {
			decades = decades.Or("release_year BETWEEN ? AND ?", d.Start, d.End)
		}
		tx = tx.Where(decades)
	}
	if q.IDs != nil {
		tx = tx.Where("id IN ?", q.IDs)
	}
	if len(q.ExcludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", q.ExcludeIDs)
	}
	if q.Ordered {
		tx = tx.Order("id")
	} else {
		tx = tx.Order("RANDOM()")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []movieRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("catalog: find movies: %w", err)
	}
	out := make([]domain.Movie, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Movie returns a single catalog entry.
func (r *Repository) Movie(ctx context.Context, id int64) (domain.Movie, error) {
	var row movieRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Movie{}, ErrMovieNotFound
	}
	if err != nil {
		return domain.Movie{}, fmt.Errorf("catalog: get movie %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// Watchlist returns the member's entries in the order they were added.
// An empty status returns every entry.
func (r *Repository) Watchlist(ctx context.Context, memberID string, status domain.WatchlistStatus) ([]domain.WatchlistEntry, error) {
	tx := r.db.WithContext(ctx).
		Preload("Movie").
		Where("member_id = ?", memberID)
	if status != "" {
		tx = tx.Where("status = ?", string(status))
	}

	var rows []watchlistRow
	if err := tx.Order("added_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("catalog: list watchlist: %w", err)
	}
	out := make([]domain.WatchlistEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// AddToWatchlist queues movieID for the member.
func (r *Repository) AddToWatchlist(ctx context.Context, memberID string, movieID int64) (domain.WatchlistEntry, error) {
	movie, err := r.Movie(ctx, movieID)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}
	if _, err := r.findEntry(ctx, memberID, movieID); err == nil {
		return domain.WatchlistEntry{}, ErrDuplicate
	} else if !errors.Is(err, ErrNotInWatchlist) {
		return domain.WatchlistEntry{}, err
	}

	row := watchlistRow{
		MemberID: memberID,
		MovieID:  movieID,
		Status:   string(domain.StatusQueued),
		AddedAt:  r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Omit("Movie").Create(&row).Error; err != nil {
		return domain.WatchlistEntry{}, fmt.Errorf("catalog: add to watchlist: %w", err)
	}
	entry := row.toDomain()
	entry.Movie = movie
	return entry, nil
}

// RemoveFromWatchlist deletes the member's entry for movieID.
func (r *Repository) RemoveFromWatchlist(ctx context.Context, memberID string, movieID int64) error {
	res := r.db.WithContext(ctx).
		Where("member_id = ? AND movie_id = ?", memberID, movieID).
		Delete(&watchlistRow{})
	if res.Error != nil {
		return fmt.Errorf("catalog: remove from watchlist: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotInWatchlist
	}
	return nil
}

// SetWatchlistStatus moves an entry between queued and watched. The watched
// timestamp is set on watched and cleared on queued.
func (r *Repository) SetWatchlistStatus(ctx context.Context, memberID string, movieID int64, status domain.WatchlistStatus) (domain.WatchlistEntry, error) {
	row, err := r.findEntry(ctx, memberID, movieID)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}

	var watchedAt *time.Time
	if status == domain.StatusWatched {
		ts := r.now().UTC()
		watchedAt = &ts
	}
	err = r.db.WithContext(ctx).Model(&row).Updates(map[string]any{
		"status":     string(status),
		"watched_at": watchedAt,
	}).Error
	if err != nil {
		return domain.WatchlistEntry{}, fmt.Errorf("catalog: update watchlist status: %w", err)
	}
	row.Status = string(status)
	row.WatchedAt = watchedAt
	return row.toDomain(), nil
}

func (r *Repository) findEntry(ctx context.Context, memberID string, movieID int64) (watchlistRow, error) {
	var row watchlistRow
	err := r.db.WithContext(ctx).
		Preload("Movie").
		Where("member_id = ? AND movie_id = ?", memberID, movieID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return watchlistRow{}, ErrNotInWatchlist
	}
	if err != nil {
		return watchlistRow{}, fmt.Errorf("catalog: find watchlist entry: %w", err)
	}
	return row, nil
}

func (m movieRow) toDomain() domain.Movie {
	return domain.Movie{
		ID:             m.ID,
		Title:          m.Title,
		Director:       m.Director,
		ReleaseYear:    m.ReleaseYear,
		Genre:          m.Genre,
		Description:    m.Description,
		RuntimeMinutes: m.RuntimeMinutes,
		Rating:         m.Rating,
		IMDBRating:     m.IMDBRating,
		PosterURL:      m.PosterURL,
	}
}

func (w watchlistRow) toDomain() domain.WatchlistEntry {
	return domain.WatchlistEntry{
		ID:        w.ID,
		MemberID:  w.MemberID,
		MovieID:   w.MovieID,
		Status:    domain.WatchlistStatus(w.Status),
		AddedAt:   w.AddedAt,
		WatchedAt: w.WatchedAt,
		Movie:     w.Movie.toDomain(),
	}
}

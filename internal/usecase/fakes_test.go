package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"movie-recommender/internal/cache"
	"movie-recommender/internal/catalog"
	"movie-recommender/internal/domain"
	"movie-recommender/internal/gateway"
	"movie-recommender/internal/ledger"
	"movie-recommender/internal/repository"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memberAged(id string, age int) domain.Member {
	return domain.Member{
		ID:          id,
		FirstName:   "Sam",
		DateOfBirth: time.Date(testNow.Year()-age, time.January, 10, 0, 0, 0, 0, time.UTC),
	}
}

type fakeMembers struct {
	members map[string]domain.Member
	err     error
}

func (f *fakeMembers) GetMember(_ context.Context, memberID string) (domain.Member, error) {
	if f.err != nil {
		return domain.Member{}, f.err
	}
	m, ok := f.members[memberID]
	if !ok {
		return domain.Member{}, repository.ErrMemberNotFound
	}
	return m, nil
}

// fakeCatalog evaluates queries over an in-memory catalog in insertion order.
type fakeCatalog struct {
	movies  []domain.Movie
	entries []domain.WatchlistEntry
	queries []catalog.Query
	findErr error
	addErr  error
}

func (f *fakeCatalog) Find(_ context.Context, q catalog.Query) ([]domain.Movie, error) {
	f.queries = append(f.queries, q)
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := []domain.Movie{}
	for _, m := range f.movies {
		if q.Ratings != nil && !slices.Contains(q.Ratings, m.Rating) {
			continue
		}
		if q.Rating != "" && m.Rating != q.Rating {
			continue
		}
		if len(q.Genres) > 0 && !slices.Contains(q.Genres, m.Genre) {
			continue
		}
		if q.IDs != nil && !slices.Contains(q.IDs, m.ID) {
			continue
		}
		if slices.Contains(q.ExcludeIDs, m.ID) {
			continue
		}
		out = append(out, m)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) Movie(_ context.Context, id int64) (domain.Movie, error) {
	for _, m := range f.movies {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Movie{}, catalog.ErrMovieNotFound
}

func (f *fakeCatalog) Watchlist(_ context.Context, memberID string, status domain.WatchlistStatus) ([]domain.WatchlistEntry, error) {
	out := []domain.WatchlistEntry{}
	for _, e := range f.entries {
		if e.MemberID == memberID && (status == "" || e.Status == status) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCatalog) AddToWatchlist(ctx context.Context, memberID string, movieID int64) (domain.WatchlistEntry, error) {
	if f.addErr != nil {
		return domain.WatchlistEntry{}, f.addErr
	}
	for _, e := range f.entries {
		if e.MemberID == memberID && e.MovieID == movieID {
			return domain.WatchlistEntry{}, catalog.ErrDuplicate
		}
	}
	movie, err := f.Movie(ctx, movieID)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}
	e := domain.WatchlistEntry{
		ID:       int64(len(f.entries) + 1),
		MemberID: memberID,
		MovieID:  movieID,
		Status:   domain.StatusQueued,
		AddedAt:  testNow,
		Movie:    movie,
	}
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeCatalog) RemoveFromWatchlist(_ context.Context, memberID string, movieID int64) error {
	for i, e := range f.entries {
		if e.MemberID == memberID && e.MovieID == movieID {
			f.entries = slices.Delete(f.entries, i, i+1)
			return nil
		}
	}
	return catalog.ErrNotInWatchlist
}

func (f *fakeCatalog) SetWatchlistStatus(_ context.Context, memberID string, movieID int64, status domain.WatchlistStatus) (domain.WatchlistEntry, error) {
	for i, e := range f.entries {
		if e.MemberID == memberID && e.MovieID == movieID {
			f.entries[i].Status = status
			return f.entries[i], nil
		}
	}
	return domain.WatchlistEntry{}, catalog.ErrNotInWatchlist
}

func (f *fakeCatalog) add(memberID string, movieID int64, status domain.WatchlistStatus) {
	movie, _ := f.Movie(context.Background(), movieID)
	f.entries = append(f.entries, domain.WatchlistEntry{
		ID:       int64(len(f.entries) + 1),
		MemberID: memberID,
		MovieID:  movieID,
		Status:   status,
		Movie:    movie,
	})
}

// seedCatalog creates perRating movies for each rating, ids grouped by
// rating starting at 1.
func seedCatalog(perRating int, ratings ...string) []domain.Movie {
	var out []domain.Movie
	id := int64(1)
	for _, r := range ratings {
		for i := range perRating {
			out = append(out, domain.Movie{
				ID:          id,
				Title:       fmt.Sprintf("%s movie %d", r, i),
				ReleaseYear: 1990 + i,
				Genre:       []string{"Drama", "Horror", "Comedy"}[i%3],
				Rating:      r,
			})
			id++
		}
	}
	return out
}

type fakeSpend struct {
	mu    sync.Mutex
	spend map[string]domain.Money
}

func (f *fakeSpend) Spend(_ context.Context, memberID string) (domain.Money, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spend[memberID], nil
}

func (f *fakeSpend) AddSpend(_ context.Context, memberID string, amount domain.Money) (domain.Money, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spend[memberID] += amount
	return f.spend[memberID], nil
}

type fakeModel struct {
	reply     gateway.Reply
	err       error
	calls     int
	system    string
	history   []domain.ChatMessage
	estimates int
}

func (f *fakeModel) Complete(_ context.Context, system string, history []domain.ChatMessage) (gateway.Reply, error) {
	f.calls++
	f.system = system
	f.history = history
	if f.err != nil {
		return gateway.Reply{}, f.err
	}
	return f.reply, nil
}

func (f *fakeModel) Estimate([]domain.ChatMessage) domain.Money {
	f.estimates++
	return 0
}

// fakeConversation keeps turns in memory without an expiry window.
type fakeConversation struct {
	msgs      []domain.ConversationMessage
	recordErr error
	completed int
}

func (f *fakeConversation) Record(_ context.Context, memberID, role, content string, movieIDs []int64) (domain.ConversationMessage, error) {
	if f.recordErr != nil {
		return domain.ConversationMessage{}, f.recordErr
	}
	m := domain.ConversationMessage{
		ID:        fmt.Sprintf("msg-%d", len(f.msgs)+1),
		MemberID:  memberID,
		Role:      role,
		Content:   content,
		MovieIDs:  movieIDs,
		Active:    true,
		CreatedAt: testNow.Add(time.Duration(len(f.msgs)) * time.Second),
	}
	f.msgs = append(f.msgs, m)
	return m, nil
}

func (f *fakeConversation) read(memberID string, activeOnly bool) []domain.ConversationMessage {
	out := []domain.ConversationMessage{}
	for _, m := range f.msgs {
		if m.MemberID == memberID && (!activeOnly || m.Active) {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConversation) ActiveHistory(_ context.Context, memberID string) ([]domain.ConversationMessage, error) {
	return f.read(memberID, true), nil
}

func (f *fakeConversation) History(_ context.Context, memberID string) ([]domain.ConversationMessage, error) {
	return f.read(memberID, false), nil
}

func (f *fakeConversation) Clear(_ context.Context, memberID string) (int, error) {
	kept := f.msgs[:0]
	n := 0
	for _, m := range f.msgs {
		if m.MemberID == memberID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	f.msgs = kept
	return n, nil
}

func (f *fakeConversation) CompleteExchange(_ context.Context, memberID string) error {
	f.completed++
	for i := range f.msgs {
		if f.msgs[i].MemberID == memberID {
			f.msgs[i].Active = false
		}
	}
	return nil
}

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatusCode() int { return e.code }

type fixture struct {
	members *fakeMembers
	catalog *fakeCatalog
	spend   *fakeSpend
	ledger  *ledger.Ledger
	model   *fakeModel
	conv    *fakeConversation
	store   *cache.MemoryStore
	cache   *cache.Cache
	engine  *Engine
}

func newFixture(t *testing.T, members ...domain.Member) *fixture {
	t.Helper()
	f := &fixture{
		members: &fakeMembers{members: map[string]domain.Member{}},
		catalog: &fakeCatalog{},
		spend:   &fakeSpend{spend: map[string]domain.Money{}},
		model:   &fakeModel{},
		conv:    &fakeConversation{},
		store:   cache.NewMemoryStore(),
	}
	for _, m := range members {
		f.members.members[m.ID] = m
	}

	var err error
	f.ledger, err = ledger.New(f.spend, ledger.DefaultLimit)
	require.NoError(t, err)
	f.cache, err = cache.New(f.store, quietLogger())
	require.NoError(t, err)
	f.engine, err = NewEngine(EngineDeps{
		Members:       f.members,
		Catalog:       f.catalog,
		Budget:        f.ledger,
		Model:         f.model,
		Conversation:  f.conv,
		Cache:         f.cache,
		ChatSampleTTL: 2 * time.Minute,
	}, WithEngineLogger(quietLogger()), WithEngineClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return f
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, code, ue.Code)
}

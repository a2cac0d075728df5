package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractFilters(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    Filters
	}{
		{
			name:    "decade and genre",
			message: "Any good 90s Sci-Fi?",
			want:    Filters{Genres: []string{"Sci-Fi"}, Decades: []DecadeRange{{1990, 1999}}},
		},
		{
			name:    "synonyms deduplicated",
			message: "a romantic romance, science fiction or sci-fi",
			want:    Filters{Genres: []string{"Romance", "Sci-Fi"}},
		},
		{
			name:    "long and short decade forms collapse",
			message: "something from the 1990s, like the 90s",
			want:    Filters{Decades: []DecadeRange{{1990, 1999}}},
		},
		{
			name:    "multiple decades keep dictionary order",
			message: "80s or 1960s",
			want:    Filters{Decades: []DecadeRange{{1960, 1969}, {1980, 1989}}},
		},
		{
			name:    "no match",
			message: "surprise me",
			want:    Filters{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractFilters(tc.message)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.want.Empty(), got.Empty())
		})
	}
}

func TestAllowedRatings(t *testing.T) {
	require.Equal(t, []string{"G", "PG"}, AllowedRatings(8))
	require.Equal(t, []string{"G", "PG", "PG-13"}, AllowedRatings(13))
	require.Equal(t, []string{"G", "PG", "PG-13", "R"}, AllowedRatings(17))
	require.Nil(t, AllowedRatings(18))
	require.Nil(t, AllowedRatings(25))
}

func TestCanWatch(t *testing.T) {
	require.True(t, CanWatch(13, "PG-13"))
	require.False(t, CanWatch(12, "PG-13"))
	require.False(t, CanWatch(17, "NR"))
	require.True(t, CanWatch(18, "NR"))
}

func TestHighestRatingAndUnlocks(t *testing.T) {
	require.Equal(t, "G", HighestRating(5))
	require.Equal(t, "PG-13", HighestRating(13))
	require.Equal(t, "R", HighestRating(17))
	require.Equal(t, "NC-17", HighestRating(40))

	require.True(t, UnlocksRating(12, 13))
	require.True(t, UnlocksRating(16, 17))
	require.False(t, UnlocksRating(13, 14))
	require.False(t, UnlocksRating(30, 31))
}

func TestIsRating(t *testing.T) {
	require.True(t, IsRating("PG-13"))
	require.True(t, IsRating("NC-17"))
	require.False(t, IsRating("pg-13"))
	require.False(t, IsRating("NR"))
}

package catalog

import (
	"sort"
	"strings"
)

// DecadeRange is an inclusive release-year range.
type DecadeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Filters narrows a catalog query. Genres are OR-combined, decades are
// OR-combined, and the two groups are AND-combined.
type Filters struct {
	Genres  []string      `json:"genres,omitempty"`
	Decades []DecadeRange `json:"decades,omitempty"`
}

func (f Filters) Empty() bool {
	return len(f.Genres) == 0 && len(f.Decades) == 0
}

type keyword struct {
	phrase string
	genre  string
}

var genreKeywords = []keyword{
	{"action", "Action"},
	{"comedy", "Comedy"},
	{"drama", "Drama"},
	{"horror", "Horror"},
	{"thriller", "Thriller"},
	{"sci-fi", "Sci-Fi"},
	{"science fiction", "Sci-Fi"},
	{"romance", "Romance"},
	{"romantic", "Romance"},
	{"animation", "Animation"},
	{"animated", "Animation"},
	{"adventure", "Adventure"},
	{"fantasy", "Fantasy"},
	{"crime", "Crime"},
	{"mystery", "Mystery"},
	{"western", "Western"},
	{"musical", "Musical"},
}

type decadeKeyword struct {
	phrase string
	start  int
}

var decadeKeywords = []decadeKeyword{
	{"1920s", 1920},
	{"1930s", 1930},
	{"1940s", 1940},
	{"1950s", 1950},
	{"1960s", 1960},
	{"1970s", 1970},
	{"1980s", 1980},
	{"1990s", 1990},
	{"2000s", 2000},
	{"90s", 1990},
	{"80s", 1980},
	{"70s", 1970},
	{"60s", 1960},
}

// ExtractFilters maps phrases in free text to genre labels and decade ranges.
// Matching is a case-insensitive substring search; there is no stemming.
func ExtractFilters(message string) Filters {
	lower := strings.ToLower(message)

	genres := map[string]struct{}{}
	for _, k := range genreKeywords {
		if strings.Contains(lower, k.phrase) {
			genres[k.genre] = struct{}{}
		}
	}

	var f Filters
	for g := range genres {
		f.Genres = append(f.Genres, g)
	}
	sort.Strings(f.Genres)

	seen := map[int]struct{}{}
	for _, d := range decadeKeywords {
		if !strings.Contains(lower, d.phrase) {
			continue
		}
		if _, ok := seen[d.start]; ok {
			continue
		}
		seen[d.start] = struct{}{}
		f.Decades = append(f.Decades, DecadeRange{Start: d.start, End: d.start + 9})
	}
	return f
}

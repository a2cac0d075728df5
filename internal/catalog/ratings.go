package catalog

// AgeUnlockAll is the age at which every content rating, including ones
// missing from the table, becomes visible.
const AgeUnlockAll = 18

type ratingRequirement struct {
	rating string
	minAge int
}

// ratingTable is ordered by minimum age.
var ratingTable = []ratingRequirement{
	{"G", 0},
	{"PG", 0},
	{"PG-13", 13},
	{"R", 17},
	{"NC-17", AgeUnlockAll},
}

// AllowedRatings returns the content ratings a member of the given age may
// see. A nil result means no restriction applies.
func AllowedRatings(age int) []string {
	if age >= AgeUnlockAll {
		return nil
	}
	var out []string
	for _, r := range ratingTable {
		if age >= r.minAge {
			out = append(out, r.rating)
		}
	}
	return out
}

// CanWatch reports whether a member of the given age may see rating.
// Ratings missing from the table require AgeUnlockAll.
func CanWatch(age int, rating string) bool {
	if age >= AgeUnlockAll {
		return true
	}
	for _, r := range ratingTable {
		if r.rating == rating {
			return age >= r.minAge
		}
	}
	return false
}

// IsRating reports whether rating is a known content rating label.
func IsRating(rating string) bool {
	for _, r := range ratingTable {
		if r.rating == rating {
			return true
		}
	}
	return false
}

// HighestRating returns the most mature rating available at age, or "G" when
// none apply.
func HighestRating(age int) string {
	best := "G"
	bestAge := -1
	for _, r := range ratingTable {
		if age >= r.minAge && r.minAge > bestAge {
			best, bestAge = r.rating, r.minAge
		}
	}
	return best
}

// UnlocksRating reports whether ageing from prev to next crosses a rating
// threshold.
func UnlocksRating(prev, next int) bool {
	return HighestRating(prev) != HighestRating(next)
}

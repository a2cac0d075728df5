package domain

// Recommendation is one item of a RecommendationResult.
type Recommendation struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
	Genre  string `json:"genre"`
	Reason string `json:"reason"`
}

// RecommendationResult is the uniform output of every trigger. Message is empty
// for the non-conversational strategies.
type RecommendationResult struct {
	Message         string           `json:"message"`
	Recommendations []Recommendation `json:"recommendations"`
}

func RecommendationFromMovie(m Movie, reason string) Recommendation {
	return Recommendation{
		ID:     m.ID,
		Title:  m.Title,
		Year:   m.ReleaseYear,
		Genre:  m.Genre,
		Reason: reason,
	}
}

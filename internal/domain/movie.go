package domain

// Movie is read-only catalog reference data.
type Movie struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Director       string   `json:"director,omitempty"`
	ReleaseYear    int      `json:"release_year"`
	Genre          string   `json:"genre"`
	Description    string   `json:"description,omitempty"`
	RuntimeMinutes int      `json:"runtime_minutes,omitempty"`
	Rating         string   `json:"rating"`
	IMDBRating     *float64 `json:"imdb_rating,omitempty"`
	PosterURL      string   `json:"poster_url,omitempty"`
}

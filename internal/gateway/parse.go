package gateway

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"movie-recommender/internal/domain"
)

type replyPayload struct {
	Message         string              `json:"message"`
	Recommendations []recommendationDTO `json:"recommendations"`
}

type recommendationDTO struct {
	ID     flexInt `json:"id"`
	Title  string  `json:"title"`
	Year   flexInt `json:"year"`
	Genre  string  `json:"genre"`
	Reason string  `json:"reason"`
}

// flexInt accepts both 12 and "12"; models are not consistent about quoting.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// parseReply extracts the first balanced JSON object from raw model text. Any
// failure falls back to the whole text as the message with no
// recommendations, and reports false.
func parseReply(raw string) (domain.RecommendationResult, bool) {
	fallback := domain.RecommendationResult{
		Message:         strings.TrimSpace(raw),
		Recommendations: []domain.Recommendation{},
	}

	obj, ok := firstObject(raw)
	if !ok {
		return fallback, false
	}
	var p replyPayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return fallback, false
	}

	out := domain.RecommendationResult{
		Message:         p.Message,
		Recommendations: make([]domain.Recommendation, 0, len(p.Recommendations)),
	}
	for _, r := range p.Recommendations {
		out.Recommendations = append(out.Recommendations, domain.Recommendation{
			ID:     int64(r.ID),
			Title:  r.Title,
			Year:   int(r.Year),
			Genre:  r.Genre,
			Reason: r.Reason,
		})
	}
	return out, true
}

// firstObject returns the substring from the first '{' to its matching '}',
// skipping braces inside string literals.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// compactJSON is used in logs so multi-line model output stays on one line.
func compactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return buf.String()
}

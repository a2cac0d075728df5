package usecase

import (
	"strings"
	"unicode/utf8"

	"movie-recommender/internal/catalog"
)

// TriggerKind names a recommendation trigger on the wire and in cache keys.
type TriggerKind string

const (
	KindChatbotMessage   TriggerKind = "chatbot"
	KindRatingUnlock     TriggerKind = "unlock"
	KindWatchlistQueued  TriggerKind = "queued"
	KindWatchlistSimilar TriggerKind = "watched"
	KindDatabaseRandom   TriggerKind = "fresh"
)

const maxMessageLength = 1000

// Trigger is the closed set of recommendation triggers. Only the variants in
// this file implement it.
type Trigger interface {
	Kind() TriggerKind
	aiBacked() bool
	sealed()
}

// ChatbotMessage is a free-text conversational request.
type ChatbotMessage struct {
	Message string
}

// RatingUnlock fires once when a member's age crosses a rating threshold.
type RatingUnlock struct {
	Rating string
}

// WatchlistQueued replays the member's queue.
type WatchlistQueued struct{}

// WatchlistSimilar asks the model for titles like the ones already watched.
type WatchlistSimilar struct{}

// DatabaseRandom is a random age-appropriate draw from the catalog.
type DatabaseRandom struct{}

func (ChatbotMessage) Kind() TriggerKind   { return KindChatbotMessage }
func (RatingUnlock) Kind() TriggerKind     { return KindRatingUnlock }
func (WatchlistQueued) Kind() TriggerKind  { return KindWatchlistQueued }
func (WatchlistSimilar) Kind() TriggerKind { return KindWatchlistSimilar }
func (DatabaseRandom) Kind() TriggerKind   { return KindDatabaseRandom }

func (ChatbotMessage) aiBacked() bool   { return true }
func (RatingUnlock) aiBacked() bool     { return false }
func (WatchlistQueued) aiBacked() bool  { return false }
func (WatchlistSimilar) aiBacked() bool { return true }
func (DatabaseRandom) aiBacked() bool   { return false }

func (ChatbotMessage) sealed()   {}
func (RatingUnlock) sealed()     {}
func (WatchlistQueued) sealed()  {}
func (WatchlistSimilar) sealed() {}
func (DatabaseRandom) sealed()   {}

// ParseTrigger builds a Trigger from its wire kind and parameter bag.
func ParseTrigger(kind string, params map[string]string) (Trigger, error) {
	switch TriggerKind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindChatbotMessage:
		return checked(ChatbotMessage{Message: params["message"]})
	case KindRatingUnlock:
		return checked(RatingUnlock{Rating: strings.TrimSpace(params["rating"])})
	case KindWatchlistQueued:
		return WatchlistQueued{}, nil
	case KindWatchlistSimilar:
		return WatchlistSimilar{}, nil
	case KindDatabaseRandom:
		return DatabaseRandom{}, nil
	default:
		return nil, newError(ErrorInvalidInput, "unknown_trigger", nil)
	}
}

func checked(t Trigger) (Trigger, error) {
	if err := validateTrigger(t); err != nil {
		return nil, err
	}
	return t, nil
}

func validateTrigger(t Trigger) error {
	switch t := t.(type) {
	case ChatbotMessage:
		msg := strings.TrimSpace(t.Message)
		if msg == "" {
			return newError(ErrorInvalidInput, "missing_message", nil)
		}
		if utf8.RuneCountInString(msg) > maxMessageLength {
			return newError(ErrorInvalidInput, "message_too_long", nil)
		}
	case RatingUnlock:
		if t.Rating == "" {
			return newError(ErrorInvalidInput, "missing_rating", nil)
		}
		if !catalog.IsRating(t.Rating) {
			return newError(ErrorInvalidInput, "unknown_rating", nil)
		}
	}
	return nil
}

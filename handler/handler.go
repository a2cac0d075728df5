package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"movie-recommender/internal/domain"
	"movie-recommender/internal/ledger"
	"movie-recommender/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	memberHeader      = "X-Member-Id"

	errorUnauthorized = "UNAUTHORIZED"
	errorNotFound     = "ROUTE_NOT_FOUND"
)

type Recommender interface {
	Recommend(ctx context.Context, memberID string, trigger usecase.Trigger) (domain.RecommendationResult, error)
}

type ChatService interface {
	Send(ctx context.Context, memberID, message string) (usecase.ChatReply, error)
	History(ctx context.Context, memberID string) ([]usecase.HistoryItem, error)
	Clear(ctx context.Context, memberID string) (int, error)
}

type WatchlistService interface {
	List(ctx context.Context, memberID, status string) ([]domain.WatchlistEntry, error)
	Add(ctx context.Context, memberID string, movieID int64) (domain.WatchlistEntry, error)
	Remove(ctx context.Context, memberID string, movieID int64) error
	SetStatus(ctx context.Context, memberID string, movieID int64, status string) (domain.WatchlistEntry, error)
	Overview(ctx context.Context, memberID string) (usecase.Overview, error)
}

type BudgetReader interface {
	Summary(ctx context.Context, memberID string) (ledger.Summary, error)
}

type Deps struct {
	Engine    Recommender
	Chat      ChatService
	Watchlist WatchlistService
	Budget    BudgetReader
	Logger    *slog.Logger

	// TrustMemberHeader accepts X-Member-Id when no authorizer identity is
	// present. Local development only.
	TrustMemberHeader bool
}

type Handler struct {
	engine    Recommender
	chat      ChatService
	watchlist WatchlistService
	budget    BudgetReader
	log       *slog.Logger

	trustMemberHeader bool
}

type recommendRequest struct {
	Trigger string            `json:"trigger"`
	Params  map[string]string `json:"params"`
}

type recommendResponse struct {
	Trigger         usecase.TriggerKind     `json:"trigger"`
	Message         string                  `json:"message"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type historyResponse struct {
	Messages []usecase.HistoryItem `json:"messages"`
	Count    int                   `json:"count"`
}

type clearResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

type watchlistResponse struct {
	Watchlist []domain.WatchlistEntry `json:"watchlist"`
	Count     int                     `json:"count"`
}

type addRequest struct {
	MovieID int64 `json:"movieId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type entryResponse struct {
	Message string                `json:"message"`
	Entry   domain.WatchlistEntry `json:"watchlist"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type overviewResponse struct {
	Watchlist       usecase.WatchlistStats `json:"watchlist"`
	Recommendations overviewPicks          `json:"recommendations"`
}

type overviewPicks struct {
	Trigger usecase.TriggerKind `json:"trigger"`
	Movies  []domain.Movie      `json:"movies"`
	Reason  string              `json:"reason"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Engine == nil || d.Chat == nil || d.Watchlist == nil || d.Budget == nil {
		return nil, errors.New("handler: dependencies must not be nil")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{
		engine:    d.Engine,
		chat:      d.Chat,
		watchlist: d.Watchlist,
		budget:    d.Budget,
		log:       d.Logger,

		trustMemberHeader: d.TrustMemberHeader,
	}, nil
}

// Handle routes an API Gateway proxy request. Failures are always rendered
// as JSON responses; the returned error is reserved for the runtime.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := header(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	log := h.log.With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	status, body := h.route(ctx, req, log)
	log.Info("request handled", "status", status)
	return respond(status, body, corrID), nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest, log *slog.Logger) (int, any) {
	memberID := memberFrom(req, h.trustMemberHeader)
	if memberID == "" {
		return http.StatusUnauthorized, errorResponse{Error: errorUnauthorized, Reason: "missing_member"}
	}
	log = log.With("member_id", memberID)

	path := strings.TrimSuffix(req.Path, "/")
	method := strings.ToUpper(req.HTTPMethod)

	switch {
	case method == http.MethodPost && path == "/recommendations":
		return h.recommend(ctx, memberID, req.Body, log)
	case method == http.MethodPost && path == "/chat/message":
		return h.sendChat(ctx, memberID, req.Body, log)
	case method == http.MethodGet && path == "/chat/history":
		items, err := h.chat.History(ctx, memberID)
		if err != nil {
			return errorStatus(err, log)
		}
		return http.StatusOK, historyResponse{Messages: items, Count: len(items)}
	case method == http.MethodDelete && (path == "/chat/clear" || path == "/chat/history"):
		n, err := h.chat.Clear(ctx, memberID)
		if err != nil {
			return errorStatus(err, log)
		}
		return http.StatusOK, clearResponse{Message: "Chat history cleared", Deleted: n}
	case method == http.MethodGet && path == "/watchlist/overview":
		ov, err := h.watchlist.Overview(ctx, memberID)
		if err != nil {
			return errorStatus(err, log)
		}
		return http.StatusOK, overviewResponse{
			Watchlist:       ov.Watchlist,
			Recommendations: overviewPicks{Trigger: ov.Trigger, Movies: ov.Movies, Reason: ov.Reason},
		}
	case method == http.MethodGet && path == "/watchlist":
		entries, err := h.watchlist.List(ctx, memberID, req.QueryStringParameters["status"])
		if err != nil {
			return errorStatus(err, log)
		}
		return http.StatusOK, watchlistResponse{Watchlist: entries, Count: len(entries)}
	case method == http.MethodPost && path == "/watchlist":
		return h.addToWatchlist(ctx, memberID, req.Body, log)
	case method == http.MethodGet && path == "/member/discussion-power":
		summary, err := h.budget.Summary(ctx, memberID)
		if err != nil {
			return errorStatus(&usecase.Error{Code: usecase.ErrorInternal, Reason: "ledger_read_error", Err: err}, log)
		}
		return http.StatusOK, summary
	case strings.HasPrefix(path, "/watchlist/"):
		movieID, err := strconv.ParseInt(strings.TrimPrefix(path, "/watchlist/"), 10, 64)
		if err != nil || movieID <= 0 {
			return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_movie_id"}
		}
		switch method {
		case http.MethodDelete:
			if err := h.watchlist.Remove(ctx, memberID, movieID); err != nil {
				return errorStatus(err, log)
			}
			return http.StatusOK, messageResponse{Message: "Movie removed from watchlist"}
		case http.MethodPatch:
			return h.setStatus(ctx, memberID, movieID, req.Body, log)
		}
	}
	return http.StatusNotFound, errorResponse{Error: errorNotFound}
}

func (h *Handler) recommend(ctx context.Context, memberID, body string, log *slog.Logger) (int, any) {
	var in recommendRequest
	if err := decode(body, &in); err != nil {
		return badBody(err, log)
	}
	trigger, err := usecase.ParseTrigger(in.Trigger, in.Params)
	if err != nil {
		return errorStatus(err, log)
	}
	// Chat turns must land in the conversation log.
	if msg, ok := trigger.(usecase.ChatbotMessage); ok {
		reply, err := h.chat.Send(ctx, memberID, msg.Message)
		if err != nil {
			return errorStatus(err, log)
		}
		return http.StatusOK, recommendResponse{
			Trigger:         msg.Kind(),
			Message:         reply.Message,
			Recommendations: reply.Recommendations,
		}
	}
	result, err := h.engine.Recommend(ctx, memberID, trigger)
	if err != nil {
		return errorStatus(err, log)
	}
	return http.StatusOK, recommendResponse{
		Trigger:         trigger.Kind(),
		Message:         result.Message,
		Recommendations: result.Recommendations,
	}
}

func (h *Handler) sendChat(ctx context.Context, memberID, body string, log *slog.Logger) (int, any) {
	var in chatRequest
	if err := decode(body, &in); err != nil {
		return badBody(err, log)
	}
	reply, err := h.chat.Send(ctx, memberID, in.Message)
	if err != nil {
		return errorStatus(err, log)
	}
	return http.StatusOK, reply
}

func (h *Handler) addToWatchlist(ctx context.Context, memberID, body string, log *slog.Logger) (int, any) {
	var in addRequest
	if err := decode(body, &in); err != nil {
		return badBody(err, log)
	}
	entry, err := h.watchlist.Add(ctx, memberID, in.MovieID)
	if err != nil {
		return errorStatus(err, log)
	}
	return http.StatusCreated, entryResponse{Message: "Movie added to watchlist", Entry: entry}
}

func (h *Handler) setStatus(ctx context.Context, memberID string, movieID int64, body string, log *slog.Logger) (int, any) {
	var in statusRequest
	if err := decode(body, &in); err != nil {
		return badBody(err, log)
	}
	entry, err := h.watchlist.SetStatus(ctx, memberID, movieID, in.Status)
	if err != nil {
		return errorStatus(err, log)
	}
	return http.StatusOK, entryResponse{Message: "Watchlist updated", Entry: entry}
}

func decode(body string, v any) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("empty body")
	}
	return json.Unmarshal([]byte(body), v)
}

func badBody(err error, log *slog.Logger) (int, any) {
	log.Warn("invalid request body", "err", err)
	return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}
}

func errorStatus(err error, log *slog.Logger) (int, any) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		log.Error("unexpected error", "err", err)
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}

	status := http.StatusInternalServerError
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorBudgetExceeded:
		status = http.StatusPaymentRequired
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	case usecase.ErrorConflict:
		status = http.StatusConflict
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", ue.Code, "reason", ue.Reason, "err", ue.Err)
	} else {
		log.Info("request rejected", "code", ue.Code, "reason", ue.Reason)
	}
	return status, errorResponse{Error: string(ue.Code), Reason: ue.Reason}
}

func respond(status int, body any, corrID string) events.APIGatewayProxyResponse {
	headers := map[string]string{
		"Content-Type":    "application/json",
		correlationHeader: corrID,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		raw, _ = json.Marshal(errorResponse{Error: string(usecase.ErrorInternal)})
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(raw),
	}
}

// memberFrom prefers the authorizer's identity. The header is only read
// when trustHeader is set.
func memberFrom(req events.APIGatewayProxyRequest, trustHeader bool) string {
	if auth := req.RequestContext.Authorizer; auth != nil {
		for _, k := range []string{"memberId", "principalId"} {
			if v, ok := auth[k].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	if !trustHeader {
		return ""
	}
	return strings.TrimSpace(header(req.Headers, memberHeader))
}

func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

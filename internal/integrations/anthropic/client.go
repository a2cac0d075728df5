package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/goccy/go-json"

	"movie-recommender/internal/domain"
)

const DefaultModel = "claude-sonnet-4-20250514"

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// Getter batch-reads parameters; missing names are absent from the result.
type Getter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client sends one-shot message requests to the Messages API.
type Client struct {
	msgs  *sdk.MessageService
	model string
}

type settings struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

type Option func(*settings)

func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		s.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) {
		s.httpClient = httpClient
	}
}

func WithMaxRetries(n int) Option {
	return func(s *settings) {
		s.maxRetries = n
	}
}

// newSettings applies opts over the defaults. Without WithHTTPClient the SDK
// transport is used with no client timeout; the caller's ctx bounds requests.
func newSettings(opts ...Option) settings {
	s := settings{maxRetries: 2}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewClient builds a client for a known key and model.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key must not be empty")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	s := newSettings(opts...)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(s.maxRetries),
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	if s.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(s.httpClient))
	}

	client := sdk.NewClient(reqOpts...)
	return &Client{msgs: &client.Messages, model: model}, nil
}

// Load reads the API token and model name from Parameter Store and builds a
// client. The model parameter is optional.
func Load(ctx context.Context, getter Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("anthropic: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("anthropic: parameter prefix must not be empty")
	}
	tokenName := paramPrefix + "/anthropic-token"
	modelName := paramPrefix + "/config/anthropic_model"

	values, err := getter.GetParameters(ctx, tokenName, modelName)
	if err != nil {
		return nil, fmt.Errorf("anthropic: fetch parameters: %w", err)
	}
	raw, ok := values[tokenName]
	if !ok {
		return nil, fmt.Errorf("anthropic: parameter %q not found", tokenName)
	}
	token, err := parseToken(raw)
	if err != nil {
		return nil, err
	}
	return NewClient(token, values[modelName], opts...)
}

func parseToken(raw string) (string, error) {
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("anthropic: unmarshal paramstore token value as JSON: %w", err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", errors.New("anthropic: API token is empty")
	}
	return tp.Token, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the system prompt and ordered history and returns the
// concatenated text reply with usage.
func (c *Client) Complete(ctx context.Context, system string, messages []domain.ChatMessage, maxTokens int) (domain.Completion, error) {
	if maxTokens <= 0 {
		return domain.Completion{}, errors.New("anthropic: max tokens must be positive")
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  toMessageParams(messages),
	}
	if len(params.Messages) == 0 {
		return domain.Completion{}, errors.New("anthropic: no member message to send")
	}
	if s := strings.TrimSpace(system); s != "" {
		params.System = []sdk.TextBlockParam{{Text: s}}
	}

	msg, err := c.msgs.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return domain.Completion{}, &HTTPStatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error(), Err: err}
		}
		return domain.Completion{}, fmt.Errorf("anthropic: request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return domain.Completion{
		Text:         text.String(),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// toMessageParams drops leading assistant turns; the API requires the first
// message to come from the user.
func toMessageParams(messages []domain.ChatMessage) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case domain.RoleMember:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(content)))
		case domain.RoleAssistant:
			if len(out) == 0 {
				continue
			}
			out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(content)))
		}
	}
	return out
}

package anthropic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"movie-recommender/internal/domain"
)

// fakeGetter is a minimal batch getter stub for use within this package.
type fakeGetter struct {
	vals   map[string]string
	err    error
	onCall func(names []string)
}

func (f *fakeGetter) GetParameters(_ context.Context, names ...string) (map[string]string, error) {
	if f.onCall != nil {
		f.onCall(names)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for _, n := range names {
		if v, ok := f.vals[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_DefaultsModel(t *testing.T) {
	var asked []string
	g := &fakeGetter{
		vals:   map[string]string{"/movies/anthropic-token": `{"token":"sk-from-ssm"}`},
		onCall: func(names []string) { asked = names },
	}
	c, err := Load(context.Background(), g, "/movies/")
	require.NoError(t, err)
	require.Equal(t, DefaultModel, c.Model())
	require.Equal(t, []string{"/movies/anthropic-token", "/movies/config/anthropic_model"}, asked)
}

func TestLoad_UsesConfiguredModel(t *testing.T) {
	g := &fakeGetter{vals: map[string]string{
		"/movies/anthropic-token":        `{"token":"sk"}`,
		"/movies/config/anthropic_model": "claude-haiku",
	}}
	c, err := Load(context.Background(), g, "/movies")
	require.NoError(t, err)
	require.Equal(t, "claude-haiku", c.Model())
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name   string
		getter Getter
		prefix string
		want   string
	}{
		{"nil getter", nil, "/movies", "nil"},
		{"empty prefix", &fakeGetter{}, " / ", "prefix"},
		{"getter error", &fakeGetter{err: errors.New("ssm unavailable")}, "/movies", "ssm unavailable"},
		{"missing token", &fakeGetter{vals: map[string]string{}}, "/movies", "not found"},
		{"malformed token", &fakeGetter{vals: map[string]string{"/movies/anthropic-token": `{"broken`}}, "/movies", "unmarshal"},
		{"empty token", &fakeGetter{vals: map[string]string{"/movies/anthropic-token": `{"other":"x"}`}}, "/movies", "API token is empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), tc.getter, tc.prefix)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewSettings_NoClientTimeoutByDefault(t *testing.T) {
	s := newSettings()
	require.Nil(t, s.httpClient)
	require.Equal(t, 2, s.maxRetries)

	hc := &http.Client{Timeout: time.Second}
	s = newSettings(WithHTTPClient(hc), WithMaxRetries(0))
	require.Same(t, hc, s.httpClient)
	require.Zero(t, s.maxRetries)
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient(" ", "m")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Client.Complete
// ---------------------------------------------------------------------------

type textBlock struct {
	Text string `json:"text"`
}

type sentRequest struct {
	Model     string      `json:"model"`
	MaxTokens int         `json:"max_tokens"`
	System    []textBlock `json:"system"`
	Messages  []struct {
		Role    string      `json:"role"`
		Content []textBlock `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient("sk-test", "claude-mock",
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
		WithMaxRetries(0),
	)
	require.NoError(t, err)
	return c
}

func TestClient_Complete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "sk-test", r.Header.Get("X-Api-Key"))
		var body sentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "claude-mock", body.Model)
		require.Equal(t, 300, body.MaxTokens)
		require.Len(t, body.System, 1)
		require.Equal(t, "You recommend movies.", body.System[0].Text)
		require.Len(t, body.Messages, 1)
		require.Equal(t, "user", body.Messages[0].Role)
		require.Equal(t, "something scary", body.Messages[0].Content[0].Text)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"model": "claude-mock",
			"content": [{"type": "text", "text": "{\"message\":\"Boo\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Complete(context.Background(), "You recommend movies.", []domain.ChatMessage{
		{Role: domain.RoleMember, Content: "something scary"},
	}, 300)
	require.NoError(t, err)
	require.Equal(t, `{"message":"Boo"}`, out.Text)
	require.Equal(t, int64(120), out.InputTokens)
	require.Equal(t, int64(30), out.OutputTokens)
}

func TestClient_Complete_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), "s", []domain.ChatMessage{{Role: domain.RoleMember, Content: "hi"}}, 300)
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestClient_Complete_RejectsEmptyHistory(t *testing.T) {
	c, err := NewClient("sk", "m")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "s", []domain.ChatMessage{{Role: domain.RoleAssistant, Content: "hello"}}, 300)
	require.Error(t, err)
	_, err = c.Complete(context.Background(), "s", []domain.ChatMessage{{Role: domain.RoleMember, Content: "hi"}}, 0)
	require.Error(t, err)
}

func TestToMessageParams_DropsLeadingAssistantAndBlanks(t *testing.T) {
	got := toMessageParams([]domain.ChatMessage{
		{Role: domain.RoleAssistant, Content: "earlier reply"},
		{Role: domain.RoleMember, Content: "  "},
		{Role: domain.RoleMember, Content: "first"},
		{Role: domain.RoleAssistant, Content: "answer"},
		{Role: domain.RoleMember, Content: "second"},
	})
	require.Len(t, got, 3)
	require.Equal(t, "user", string(got[0].Role))
	require.Equal(t, "assistant", string(got[1].Role))
	require.Equal(t, "user", string(got[2].Role))
}

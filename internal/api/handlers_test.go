package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/auth"
	"gwi.com/support-copilot/internal/core"
	"gwi.com/support-copilot/internal/metrics"
	"gwi.com/support-copilot/internal/store"
)

const goodToken = "good-token"

type fakeCopilot struct {
	draftErr    error
	gotDraft    core.DraftRequest
	gotAgentID  int64
	gotLimit    int
	gotOffset   int
	gotNegative bool
	reindexErr  error
}

func (f *fakeCopilot) SignUp(_ context.Context, username, password string) (*store.Agent, error) {
	if username == "taken" {
		return nil, fmt.Errorf("agent %q: %w", username, store.ErrAlreadyExists)
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", core.ErrInvalidInput)
	}
	return &store.Agent{ID: 3, Username: username, PasswordHash: "hash"}, nil
}

func (f *fakeCopilot) Login(_ context.Context, username, password string) (string, error) {
	if username == "agent" && password == "pw" {
		return goodToken, nil
	}
	return "", core.ErrInvalidCredentials
}

func (f *fakeCopilot) Authenticate(_ context.Context, token string) (*store.Agent, error) {
	if token != goodToken {
		return nil, auth.ErrInvalidToken
	}
	return &store.Agent{ID: 7, Username: "agent"}, nil
}

func (f *fakeCopilot) AnalyzeTone(_ context.Context, message string) core.ToneResult {
	return core.ToneResult{Tone: core.ToneUrgent, Analyzed: len(message) > 20}
}

func (f *fakeCopilot) Draft(_ context.Context, agentID int64, req core.DraftRequest) (*store.Draft, error) {
	f.gotAgentID = agentID
	f.gotDraft = req
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	return &store.Draft{ID: "d-1", AgentID: agentID, Issue: req.Issue, Response: "Thanks!", Sources: []string{}, ModelUsed: "gpt-4"}, nil
}

func (f *fakeCopilot) History(_ context.Context, agentID int64, limit, offset int) ([]store.Draft, error) {
	f.gotAgentID, f.gotLimit, f.gotOffset = agentID, limit, offset
	return []store.Draft{{ID: "d-2"}, {ID: "d-1"}}, nil
}

func (f *fakeCopilot) GetDraft(_ context.Context, agentID int64, draftID string) (*store.Draft, error) {
	if draftID != "d-1" {
		return nil, fmt.Errorf("draft %s: %w", draftID, store.ErrNotFound)
	}
	return &store.Draft{ID: draftID, AgentID: agentID}, nil
}

func (f *fakeCopilot) ClearHistory(_ context.Context, agentID int64) (int, error) {
	return 2, nil
}

func (f *fakeCopilot) SetFeedback(_ context.Context, agentID int64, draftID string, negative bool) error {
	if draftID != "d-1" {
		return store.ErrNotFound
	}
	f.gotNegative = negative
	return nil
}

func (f *fakeCopilot) Stats(context.Context, int64) (core.AgentStats, error) {
	return core.AgentStats{ResponsesGenerated: 2, TotalWords: 50, HoursSaved: 1}, nil
}

func (f *fakeCopilot) Reindex(context.Context) (core.ReindexResult, error) {
	if f.reindexErr != nil {
		return core.ReindexResult{}, f.reindexErr
	}
	return core.ReindexResult{Chunks: 12}, nil
}

func (f *fakeCopilot) Status(context.Context) core.Status {
	return core.Status{Provider: "openai", VectorStore: "pinecone", Vectors: 12, Dimension: 1536, Healthy: true}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeCopilot) {
	t.Helper()
	fake := &fakeCopilot{}
	router := NewRouter(NewAPIHandler(fake, zap.NewNop()), metrics.New("test"), zap.NewNop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, fake
}

func do(t *testing.T, srv *httptest.Server, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload["error"]
}

func TestPublicRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/api/health/", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = do(t, srv, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "Customer Support Co-Pilot")

	resp, body = do(t, srv, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `test_http_requests_total{method="GET",status="200"}`)
}

func TestSignupAndLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/api/signup", "", `{"username":"agent","password":"pw"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotContains(t, string(body), "hash")

	resp, _ = do(t, srv, http.MethodPost, "/api/signup", "", `{"username":"taken","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, "/api/signup", "", `{"username":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorMessage(t, body), "username and password are required")

	resp, body = do(t, srv, http.MethodPost, "/api/login", "", `{"username":"agent","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", errorMessage(t, body))

	resp, body = do(t, srv, http.MethodPost, "/api/login", "", `{"username":"agent","password":"pw"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"token":"good-token"}`, string(body))

	resp, body = do(t, srv, http.MethodPost, "/api/login", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorMessage(t, body), "Invalid request body")
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/api/drafts", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authorization header is required", errorMessage(t, body))

	resp, body = do(t, srv, http.MethodGet, "/api/drafts", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid token", errorMessage(t, body))
}

func TestDraftRoutes(t *testing.T) {
	srv, fake := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/api/drafts", goodToken,
		`{"issue":"Order late","tone":"formal","context_sensitivity":4}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var draft store.Draft
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Equal(t, "d-1", draft.ID)
	assert.Equal(t, int64(7), fake.gotAgentID)
	assert.Equal(t, core.DraftRequest{Issue: "Order late", Tone: "formal", ContextSensitivity: 4}, fake.gotDraft)

	fake.draftErr = fmt.Errorf("%w: issue is required", core.ErrInvalidInput)
	resp, body = do(t, srv, http.MethodPost, "/api/drafts", goodToken, `{"issue":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid input: issue is required", errorMessage(t, body))

	fake.draftErr = errors.New("disk full")
	resp, body = do(t, srv, http.MethodPost, "/api/drafts", goodToken, `{"issue":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", errorMessage(t, body))

	resp, body = do(t, srv, http.MethodGet, "/api/drafts?limit=5&offset=10", goodToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":"d-2"},{"id":"d-1"}]`, onlyIDs(t, body))
	assert.Equal(t, 5, fake.gotLimit)
	assert.Equal(t, 10, fake.gotOffset)

	resp, _ = do(t, srv, http.MethodGet, "/api/drafts/d-1", goodToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/api/drafts/missing", goodToken, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", errorMessage(t, body))

	resp, _ = do(t, srv, http.MethodPost, "/api/drafts/d-1/feedback", goodToken, `{"negative":true}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, fake.gotNegative)

	resp, _ = do(t, srv, http.MethodPost, "/api/drafts/missing/feedback", goodToken, `{"negative":true}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, srv, http.MethodDelete, "/api/drafts", goodToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"deleted":2}`, string(body))
}

func onlyIDs(t *testing.T, body []byte) string {
	t.Helper()
	var drafts []store.Draft
	require.NoError(t, json.Unmarshal(body, &drafts))
	ids := make([]map[string]string, 0, len(drafts))
	for _, d := range drafts {
		ids = append(ids, map[string]string{"id": d.ID})
	}
	out, err := json.Marshal(ids)
	require.NoError(t, err)
	return string(out)
}

func TestToneStatsStatusAndReindex(t *testing.T) {
	srv, fake := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/api/tone", goodToken, `{"message":"I need this fixed right now please!"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"tone":"urgent","analyzed":true}`, string(body))

	resp, body = do(t, srv, http.MethodGet, "/api/stats", goodToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"responses_generated":2,"total_words":50,"hours_saved":1}`, string(body))

	resp, body = do(t, srv, http.MethodGet, "/api/status", goodToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"provider":"openai","vector_store":"pinecone","vectors":12,"dimension":1536,"healthy":true}`, string(body))

	resp, body = do(t, srv, http.MethodPost, "/api/knowledge/reindex", goodToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"chunks":12}`, string(body))

	fake.reindexErr = core.ErrKnowledgeBaseEmpty
	resp, _ = do(t, srv, http.MethodPost, "/api/knowledge/reindex", goodToken, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

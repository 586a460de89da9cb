package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/auth"
	"gwi.com/support-copilot/internal/core"
	"gwi.com/support-copilot/internal/store"
)

// Copilot is the service surface the HTTP layer drives.
type Copilot interface {
	SignUp(ctx context.Context, username, password string) (*store.Agent, error)
	Login(ctx context.Context, username, password string) (string, error)
	Authenticate(ctx context.Context, token string) (*store.Agent, error)
	AnalyzeTone(ctx context.Context, message string) core.ToneResult
	Draft(ctx context.Context, agentID int64, req core.DraftRequest) (*store.Draft, error)
	History(ctx context.Context, agentID int64, limit, offset int) ([]store.Draft, error)
	GetDraft(ctx context.Context, agentID int64, draftID string) (*store.Draft, error)
	ClearHistory(ctx context.Context, agentID int64) (int, error)
	SetFeedback(ctx context.Context, agentID int64, draftID string, negative bool) error
	Stats(ctx context.Context, agentID int64) (core.AgentStats, error)
	Reindex(ctx context.Context) (core.ReindexResult, error)
	Status(ctx context.Context) core.Status
}

type contextKey string

const agentKey contextKey = "agent"

type APIHandler struct {
	copilot Copilot
	log     *zap.Logger
}

func NewAPIHandler(c Copilot, log *zap.Logger) *APIHandler {
	return &APIHandler{copilot: c, log: log}
}

func agentFrom(ctx context.Context) *store.Agent {
	agent, _ := ctx.Value(agentKey).(*store.Agent)
	return agent
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		agent, err := h.copilot.Authenticate(r.Context(), tokenString)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), agentKey, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	agent, err := h.copilot.SignUp(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	token, err := h.copilot.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.copilot.Status(r.Context()))
}

type toneRequest struct {
	Message string `json:"message"`
}

func (h *APIHandler) ToneHandler(w http.ResponseWriter, r *http.Request) {
	var req toneRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.copilot.AnalyzeTone(r.Context(), req.Message))
}

func (h *APIHandler) CreateDraftHandler(w http.ResponseWriter, r *http.Request) {
	agent := agentFrom(r.Context())

	var req core.DraftRequest
	if !decode(w, r, &req) {
		return
	}

	draft, err := h.copilot.Draft(r.Context(), agent.ID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (h *APIHandler) ListDraftsHandler(w http.ResponseWriter, r *http.Request) {
	agent := agentFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	drafts, err := h.copilot.History(r.Context(), agent.ID, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (h *APIHandler) ClearDraftsHandler(w http.ResponseWriter, r *http.Request) {
	agent := agentFrom(r.Context())

	n, err := h.copilot.ClearHistory(r.Context(), agent.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *APIHandler) GetDraftHandler(w http.ResponseWriter, r *http.Request) {
	agent := agentFrom(r.Context())
	draftID := chi.URLParam(r, "draftID")

	draft, err := h.copilot.GetDraft(r.Context(), agent.ID, draftID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

type feedbackRequest struct {
	Negative bool `json:"negative"`
}

func (h *APIHandler) DraftFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	agent := agentFrom(r.Context())
	draftID := chi.URLParam(r, "draftID")

	var req feedbackRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.copilot.SetFeedback(r.Context(), agent.ID, draftID, req.Negative); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	agent := agentFrom(r.Context())

	stats, err := h.copilot.Stats(r.Context(), agent.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) ReindexHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.copilot.Reindex(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fail maps service errors to status codes. Only unexpected errors are
// logged; their message is not sent to the client.
func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "Already exists")
	default:
		h.log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

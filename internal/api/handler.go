// Package api provides the HTTP handlers of the companion service.
package api //nolint:revive // package name is intentional

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/blueberrycongee/grandpal/internal/brain"
	"github.com/blueberrycongee/grandpal/internal/httputil"
	"github.com/blueberrycongee/grandpal/internal/memory"
	"github.com/blueberrycongee/grandpal/internal/observability"
	"github.com/blueberrycongee/grandpal/internal/voice"
	llmerrors "github.com/blueberrycongee/grandpal/pkg/errors"
)

const (
	serviceName = "grandpal-api"

	agentNotConfigured = "No agent configured. Create one in ElevenLabs dashboard and add ELEVENLABS_AGENT_ID to .env"
	noMemories         = "No memories found for this user"
)

// VoiceService is the subset of the voice agent API the handlers use.
type VoiceService interface {
	SignedURL(ctx context.Context, agentID string) (string, error)
	Agent(ctx context.Context, agentID string) (*voice.Agent, error)
	Voices(ctx context.Context) ([]voice.Voice, error)
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Sessions     *brain.Registry
	Memories     *memory.Registry
	Voice        VoiceService
	AgentID      string
	Logger       *slog.Logger
	NewSessionID func() string
}

// Handler serves the conversation, agent and memory endpoints.
type Handler struct {
	sessions *brain.Registry
	memories *memory.Registry
	voice    VoiceService
	agentID  string
	logger   *slog.Logger
	newID    func() string
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		sessions: cfg.Sessions,
		memories: cfg.Memories,
		voice:    cfg.Voice,
		agentID:  cfg.AgentID,
		logger:   cfg.Logger,
		newID:    cfg.NewSessionID,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}
	return h
}

// StartConversationRequest is the body of POST /api/conversation/start.
type StartConversationRequest struct {
	UserName string `json:"userName"`
}

// StartConversationResponse is returned when a session starts.
type StartConversationResponse struct {
	SessionID string  `json:"sessionId"`
	SignedURL *string `json:"signedUrl"`
	AgentID   string  `json:"agentId"`
	Greeting  string  `json:"greeting"`
}

// MessageRequest is the body of POST /api/conversation/message.
type MessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// MessageResponse carries the reply and the detected tone of the message.
type MessageResponse struct {
	Response string        `json:"response"`
	Emotion  brain.Emotion `json:"emotion"`
}

// EndConversationRequest is the body of POST /api/conversation/end.
type EndConversationRequest struct {
	SessionID string `json:"sessionId"`
}

// EndConversationResponse confirms a session end.
type EndConversationResponse struct {
	Status        string `json:"status"`
	SessionID     string `json:"sessionId"`
	MemoriesSaved bool   `json:"memories_saved"`
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

// StartConversation handles POST /api/conversation/start.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req StartConversationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, llmerrors.NewInvalidRequestError("", "", err.Error()))
		return
	}
	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		h.writeError(w, llmerrors.NewInvalidRequestError("", "", "userName is required"))
		return
	}

	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, h.logger)

	sessionID := h.newID()
	b, err := h.sessions.GetOrCreate(ctx, sessionID, userName)
	if errors.Is(err, memory.ErrInvalidUserID) {
		h.writeError(w, llmerrors.NewInvalidRequestError("", "", "userName cannot be used as a memory key"))
		return
	}
	if err != nil {
		logger.Error("starting conversation failed", "error", err)
		h.writeError(w, llmerrors.NewInternalError("", "", "failed to start conversation"))
		return
	}

	greeting := b.Greeting(ctx)

	var signedURL *string
	if h.agentID != "" && h.voice != nil {
		url, err := h.voice.SignedURL(ctx, h.agentID)
		if err != nil {
			logger.Warn("could not get signed URL", "session_id", sessionID, "error", err)
		} else {
			signedURL = &url
		}
	}

	h.writeJSON(w, http.StatusOK, StartConversationResponse{
		SessionID: sessionID,
		SignedURL: signedURL,
		AgentID:   h.agentID,
		Greeting:  greeting,
	})
}

// SendMessage handles POST /api/conversation/message.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, llmerrors.NewInvalidRequestError("", "", err.Error()))
		return
	}
	if req.SessionID == "" {
		h.writeError(w, llmerrors.NewInvalidRequestError("", "", "sessionId is required"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(w, llmerrors.NewInvalidRequestError("", "", "message is required"))
		return
	}

	b, err := h.sessions.Get(req.SessionID)
	if err != nil {
		h.writeError(w, llmerrors.NewNotFoundError("", "", "Session not found"))
		return
	}

	ctx := r.Context()
	h.writeJSON(w, http.StatusOK, MessageResponse{
		Response: b.Respond(ctx, req.Message),
		Emotion:  b.AnalyzeEmotion(ctx, req.Message),
	})
}

// EndConversation handles POST /api/conversation/end. Unknown sessions are
// reported as ended.
func (h *Handler) EndConversation(w http.ResponseWriter, r *http.Request) {
	var req EndConversationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, llmerrors.NewInvalidRequestError("", "", err.Error()))
		return
	}
	if req.SessionID == "" {
		h.writeError(w, llmerrors.NewInvalidRequestError("", "", "sessionId is required"))
		return
	}

	if err := h.sessions.End(r.Context(), req.SessionID); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("ending conversation failed",
			"session_id", req.SessionID, "error", err)
		h.writeError(w, llmerrors.NewInternalError("", "", "failed to save memories"))
		return
	}

	h.writeJSON(w, http.StatusOK, EndConversationResponse{
		Status:        "ended",
		SessionID:     req.SessionID,
		MemoriesSaved: true,
	})
}

// AgentInfo handles GET /api/agent/info.
func (h *Handler) AgentInfo(w http.ResponseWriter, r *http.Request) {
	notConfigured := map[string]any{"configured": false, "message": agentNotConfigured}
	if h.agentID == "" || h.voice == nil {
		h.writeJSON(w, http.StatusOK, notConfigured)
		return
	}

	agent, err := h.voice.Agent(r.Context(), h.agentID)
	if err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Warn("getting agent info failed", "error", err)
		h.writeJSON(w, http.StatusOK, notConfigured)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"configured": true,
		"agent_id":   agent.AgentID,
		"name":       agent.Name,
	})
}

// ListVoices handles GET /api/voices. Provider failures yield an empty list.
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	voices := []voice.Voice{}
	if h.voice != nil {
		got, err := h.voice.Voices(r.Context())
		if err != nil {
			observability.LoggerFromContext(r.Context(), h.logger).Warn("listing voices failed", "error", err)
		} else {
			voices = got
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

// GetMemories handles GET /api/memories/{user_name}. It reads the persisted
// record, not the live one.
func (h *Handler) GetMemories(w http.ResponseWriter, r *http.Request) {
	userID := memory.NormalizeUserID(r.PathValue("user_name"))

	rec, err := h.memories.Lookup(r.Context(), userID)
	if errors.Is(err, memory.ErrNotFound) {
		h.writeJSON(w, http.StatusOK, map[string]string{"message": noMemories})
		return
	}
	if err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("reading memories failed",
			"user_id", userID, "error", err)
		h.writeError(w, llmerrors.NewInternalError("", "", "failed to read memories"))
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

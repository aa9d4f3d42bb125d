package api //nolint:revive // package name is intentional

import "net/http"

// RegisterRoutes registers every API route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("POST /api/conversation/start", h.StartConversation)
	mux.HandleFunc("POST /api/conversation/message", h.SendMessage)
	mux.HandleFunc("POST /api/conversation/end", h.EndConversation)

	mux.HandleFunc("GET /api/agent/info", h.AgentInfo)
	mux.HandleFunc("GET /api/voices", h.ListVoices)
	mux.HandleFunc("GET /api/memories/{user_name}", h.GetMemories)
}

package api //nolint:revive // package name is intentional

import (
	"net/http"

	"github.com/goccy/go-json"

	llmerrors "github.com/blueberrycongee/grandpal/pkg/errors"
)

// ErrorResponse is the error envelope of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the error payload.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	llmErr, ok := llmerrors.As(err)
	if !ok {
		llmErr = llmerrors.NewInternalError("", "", err.Error())
	}
	h.writeJSON(w, llmErr.HTTPStatusCode(), ErrorResponse{
		Error: ErrorDetail{
			Message: llmErr.Message,
			Type:    llmErr.Type,
		},
	})
}

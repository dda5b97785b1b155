package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/auth"
	"github.com/gatherly/event-chat/internal/core/domain"
	apperrors "github.com/gatherly/event-chat/internal/core/errors"
)

// TokenHandler mints short-lived access tokens for development and testing.
// In production, tokens come from the ticketing platform's identity service;
// this handler must only be mounted when running in development mode.
type TokenHandler struct {
	tm           *auth.TokenManager
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(tm *auth.TokenManager, errorHandler *ErrorHandler, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		tm:           tm,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "token"),
	}
}

// DevTokenRequest defines the expected JSON body for minting a dev token
type DevTokenRequest struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Role        string `json:"role,omitempty"`
}

// DevTokenResponse carries the minted token and the identity baked into it
type DevTokenResponse struct {
	Token       string             `json:"token"`
	Participant domain.Participant `json:"participant"`
}

// HandleDevToken mints a token for an ad-hoc participant identity.
func (h *TokenHandler) HandleDevToken(w http.ResponseWriter, r *http.Request) {
	var req DevTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid request body"))
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "displayName is required"))
		return
	}

	role := domain.Role(req.Role)
	if req.Role == "" {
		role = domain.RoleParticipant
	}
	if !role.IsValid() {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "role must be ORGANIZER or PARTICIPANT"))
		return
	}

	participant := domain.Participant{
		ID:          uuid.New(),
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		Role:        role,
	}

	token, err := h.tm.GenerateToken(participant)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	h.logger.Info("minted dev token",
		"participant_id", participant.ID,
		"role", participant.Role,
	)

	WriteJSON(w, http.StatusCreated, DevTokenResponse{Token: token, Participant: participant})
}

package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/gatherly/event-chat/internal/core/errors"
	"github.com/gatherly/event-chat/internal/core/ports"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// RoomHandler handles the REST surface for rooms: message history and the
// current presence set. Live traffic goes over the websocket.
type RoomHandler struct {
	roomService  ports.RoomService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(
	roomService ports.RoomService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *RoomHandler {
	return &RoomHandler{
		roomService:  roomService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "room"),
	}
}

// Router sets up a new chi Router for all room-related routes.
func (h *RoomHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all room endpoints.
func (h *RoomHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{roomID}", func(r chi.Router) {
		r.Get("/messages", h.HandleHistory)
		r.Get("/participants/online", h.HandleOnline)
	})
}

// OnlineResponse lists the participants currently online in a room.
type OnlineResponse struct {
	ParticipantIDs []uuid.UUID `json:"participantIds"`
	Count          int         `json:"count"`
}

// HandleHistory returns the most recent messages for a room, oldest first.
func (h *RoomHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		h.errorHandler.Handle(w, r, apperrors.ErrRoomIDRequired)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := h.roomService.History(r.Context(), roomID, limit)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteList(w, messages)
}

// HandleOnline returns the current presence set for a room.
func (h *RoomHandler) HandleOnline(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		h.errorHandler.Handle(w, r, apperrors.ErrRoomIDRequired)
		return
	}

	online, err := h.roomService.Online(r.Context(), roomID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteSuccess(w, OnlineResponse{ParticipantIDs: online, Count: len(online)})
}

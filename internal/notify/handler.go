package notify

import (
	"errors"
	"net/http"

	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/middleware"
	"github.com/roundtable/service/internal/request"
	"github.com/roundtable/service/internal/response"
)

// Handler holds HTTP handlers for notification endpoints.
type Handler struct {
	svc *Service
	hub *Hub
	log logging.Logger
}

// NewHandler creates a new notification Handler.
func NewHandler(svc *Service, hub *Hub, log logging.Logger) *Handler {
	return &Handler{svc: svc, hub: hub, log: log}
}

type listData struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
	Total         int            `json:"total"`
	TotalPages    int            `json:"totalPages"`
}

// List godoc
//
//	@Summary		List notifications
//	@Tags			notifications
//	@Produce		json
//	@Security		BearerAuth
//	@Param			page	query		int	false	"Page (1-based)"
//	@Param			limit	query		int	false	"Page size"
//	@Success		200		{object}	response.Envelope{data=listData}
//	@Failure		401		{object}	response.Envelope
//	@Router			/notifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	page, limit := request.Pagination(r)

	items, total, err := h.svc.List(r.Context(), userID, limit, request.Offset(page, limit))
	if err != nil {
		h.log.Error(r.Context(), "list notifications", "error", err)
		response.InternalError(w)
		return
	}
	unread, err := h.svc.UnreadCount(r.Context(), userID)
	if err != nil {
		h.log.Error(r.Context(), "count unread notifications", "error", err)
		response.InternalError(w)
		return
	}

	p := response.NewPage(items, page, limit, total)
	response.OK(w, listData{
		Notifications: p.Items,
		Unread:        unread,
		Page:          p.Page,
		Limit:         p.Limit,
		Total:         p.Total,
		TotalPages:    p.TotalPages,
	})
}

// MarkRead godoc
//
//	@Summary	Mark a notification as read
//	@Tags		notifications
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Notification ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/notifications/{id}/read [post]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "notification not found")
		return
	}

	err := h.svc.MarkRead(r.Context(), id, userID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "notification not found")
		return
	}
	if err != nil {
		h.log.Error(r.Context(), "mark notification read", "error", err)
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

// Socket upgrades to a websocket that receives the caller's notifications
// as JSON text frames.
//
//	@Summary	Notification socket
//	@Tags		notifications
//	@Param		token	query	string	true	"JWT access token"
//	@Success	101
//	@Router		/ws [get]
func (h *Handler) Socket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	if err := h.hub.ServeWS(w, r, userID); err != nil {
		// The upgrader has already answered the client.
		h.log.Warn(r.Context(), "websocket upgrade failed", "error", err)
	}
}

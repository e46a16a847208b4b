package auth

import (
	"errors"
	"net/http"

	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/middleware"
	"github.com/roundtable/service/internal/request"
	"github.com/roundtable/service/internal/response"
	"github.com/roundtable/service/internal/user"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
	log logging.Logger
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, log logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type registerRequest struct {
	Name     string `json:"name"     validate:"required,max=100" example:"Ada Lovelace"`
	Email    string `json:"email"    validate:"required,email"   example:"ada@example.com"`
	Password string `json:"password" validate:"required,min=6"   example:"s3cret!"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email" example:"ada@example.com"`
	Password string `json:"password" validate:"required"       example:"s3cret!"`
}

type googleRequest struct {
	Credential string `json:"credential" validate:"required" example:"eyJhbGciOiJSUzI1NiIs..."`
}

// Register godoc
//
//	@Summary		Register with email and password
//	@Description	Creates an account and returns a bearer token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		registerRequest	true	"Registration details"
//	@Success		201		{object}	response.Envelope{data=Result}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(w, err.Error())
		return
	}
	if err != nil {
		h.log.Error(r.Context(), "register", "error", err)
		response.InternalError(w)
		return
	}
	response.Created(w, res)
}

// Login godoc
//
//	@Summary	Sign in with email and password
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		loginRequest	true	"Credentials"
//	@Success	200		{object}	response.Envelope{data=Result}
//	@Failure	400		{object}	response.Envelope
//	@Failure	401		{object}	response.Envelope
//	@Router		/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, err.Error())
		return
	}
	if err != nil {
		h.log.Error(r.Context(), "login", "error", err)
		response.InternalError(w)
		return
	}
	response.OK(w, res)
}

// Google godoc
//
//	@Summary		Sign in with Google
//	@Description	Verifies a Google Sign-In ID token, linking or creating the account.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		googleRequest	true	"Google ID token"
//	@Success		200		{object}	response.Envelope{data=Result}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Router			/auth/google [post]
func (h *Handler) Google(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.svc.GoogleLogin(r.Context(), req.Credential)
	if errors.Is(err, ErrInvalidGoogleToken) {
		h.log.Warn(r.Context(), "google sign-in rejected", "error", err)
		response.Unauthorized(w, ErrInvalidGoogleToken.Error())
		return
	}
	if err != nil {
		h.log.Error(r.Context(), "google sign-in", "error", err)
		response.InternalError(w)
		return
	}
	response.OK(w, res)
}

// Me godoc
//
//	@Summary	Get current user
//	@Tags		auth
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=user.User}
//	@Failure	401	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.Me(r.Context(), userID)
	if errors.Is(err, user.ErrNotFound) {
		response.NotFound(w, "user not found")
		return
	}
	if err != nil {
		h.log.Error(r.Context(), "get current user", "error", err)
		response.InternalError(w)
		return
	}
	response.OK(w, u)
}

package user

import (
	"errors"
	"net/http"

	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/middleware"
	"github.com/roundtable/service/internal/request"
	"github.com/roundtable/service/internal/response"
	"github.com/roundtable/service/internal/upload"
)

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	svc    *Service
	images *upload.Pipeline
	log    logging.Logger
}

// NewHandler creates a new user Handler. images stores profile pictures.
func NewHandler(svc *Service, images *upload.Pipeline, log logging.Logger) *Handler {
	return &Handler{svc: svc, images: images, log: log}
}

type profileImageData struct {
	ProfileURL string `json:"profileUrl" example:"http://localhost:9000/recipe-images/profile-images/1700000000000000000-me.png"`
	User       *User  `json:"user"`
}

// Get godoc
//
//	@Summary		Get user profile
//	@Description	Returns a user with follower, following and recipe counts.
//	@Tags			users
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	response.Envelope{data=Profile}
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/users/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "user not found")
		return
	}

	p, err := h.svc.GetProfile(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get profile", err)
		return
	}
	response.OK(w, p)
}

// Update godoc
//
//	@Summary	Update own profile
//	@Tags		users
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string		true	"User ID"
//	@Param		request	body		UpdateInput	true	"Fields to change"
//	@Success	200		{object}	response.Envelope{data=User}
//	@Failure	400		{object}	response.Envelope
//	@Failure	403		{object}	response.Envelope
//	@Router		/users/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.principalAndTarget(w, r)
	if !ok {
		return
	}

	var in UpdateInput
	if err := request.DecodeJSON(r, &in); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	u, err := h.svc.Update(r.Context(), actorID, id, in)
	if err != nil {
		h.fail(w, r, "update user", err)
		return
	}
	response.OK(w, u)
}

// RequireSelf rejects requests whose principal is not the {id} user. It runs
// in front of the upload pipeline so nothing is stored for a forbidden caller.
func (h *Handler) RequireSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, id, ok := h.principalAndTarget(w, r)
		if !ok {
			return
		}
		if actorID != id {
			response.Forbidden(w, "you can only change your own profile")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UploadImage godoc
//
//	@Summary		Upload profile image
//	@Description	Stores a JPEG or PNG and links it as the user's profile image.
//	@Tags			users
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id				path		string	true	"User ID"
//	@Param			profileImage	formData	file	true	"Image file"
//	@Success		200				{object}	response.Envelope{data=profileImageData}
//	@Failure		400				{object}	response.Envelope
//	@Failure		403				{object}	response.Envelope
//	@Failure		413				{object}	response.Envelope
//	@Failure		415				{object}	response.Envelope
//	@Failure		500				{object}	response.Envelope
//	@Router			/users/{id}/upload-image [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	res, ok := upload.FromContext(r.Context())
	if !ok {
		response.BadRequest(w, "No file uploaded")
		return
	}
	actorID, id, ok := h.principalAndTarget(w, r)
	if !ok {
		h.images.Discard(r.Context(), res)
		return
	}

	u, err := h.svc.SetProfileImage(r.Context(), actorID, id, res.URL)
	if err != nil {
		h.images.Discard(r.Context(), res)
		h.fail(w, r, "set profile image", err)
		return
	}
	response.OK(w, profileImageData{ProfileURL: res.URL, User: u})
}

// Follow godoc
//
//	@Summary	Follow or unfollow a user
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	400	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/users/{id}/follow [post]
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.principalAndTarget(w, r)
	if !ok {
		return
	}

	following, err := h.svc.ToggleFollow(r.Context(), actorID, id)
	if err != nil {
		h.fail(w, r, "toggle follow", err)
		return
	}
	response.OK(w, map[string]bool{"following": following})
}

// FollowStatus godoc
//
//	@Summary	Whether the caller follows a user
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	response.Envelope
//	@Router		/users/{id}/follow-status [get]
func (h *Handler) FollowStatus(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.principalAndTarget(w, r)
	if !ok {
		return
	}

	following, err := h.svc.IsFollowing(r.Context(), actorID, id)
	if err != nil {
		h.fail(w, r, "follow status", err)
		return
	}
	response.OK(w, map[string]bool{"followStatus": following})
}

// Followers godoc
//
//	@Summary	List followers
//	@Tags		users
//	@Produce	json
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	response.Envelope{data=[]Summary}
//	@Failure	404	{object}	response.Envelope
//	@Router		/users/{id}/followers [get]
func (h *Handler) Followers(w http.ResponseWriter, r *http.Request) {
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "user not found")
		return
	}
	list, err := h.svc.Followers(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list followers", err)
		return
	}
	response.OK(w, map[string][]Summary{"followers": list})
}

// Followings godoc
//
//	@Summary	List followed users
//	@Tags		users
//	@Produce	json
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	response.Envelope{data=[]Summary}
//	@Failure	404	{object}	response.Envelope
//	@Router		/users/{id}/followings [get]
func (h *Handler) Followings(w http.ResponseWriter, r *http.Request) {
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "user not found")
		return
	}
	list, err := h.svc.Followings(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list followings", err)
		return
	}
	response.OK(w, map[string][]Summary{"followings": list})
}

// principalAndTarget returns the caller and the {id} path user, writing the
// error response itself when either is missing.
func (h *Handler) principalAndTarget(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	actorID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return "", "", false
	}
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "user not found")
		return "", "", false
	}
	return actorID, id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "user not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "you can only change your own profile")
	case errors.Is(err, ErrSelfFollow):
		response.BadRequest(w, ErrSelfFollow.Error())
	default:
		h.log.Error(r.Context(), op, "error", err)
		response.InternalError(w)
	}
}

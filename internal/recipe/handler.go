package recipe

import (
	"errors"
	"net/http"
	"strings"

	"github.com/roundtable/service/internal/category"
	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/middleware"
	"github.com/roundtable/service/internal/request"
	"github.com/roundtable/service/internal/response"
	"github.com/roundtable/service/internal/upload"
)

// Handler holds HTTP handlers for recipe endpoints.
type Handler struct {
	svc    *Service
	images *upload.Pipeline
	log    logging.Logger
}

// NewHandler creates a new recipe Handler. images stores recipe pictures.
func NewHandler(svc *Service, images *upload.Pipeline, log logging.Logger) *Handler {
	return &Handler{svc: svc, images: images, log: log}
}

type listData struct {
	Recipes    []Summary `json:"recipes"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
}

type categoryListData struct {
	Category *category.Category `json:"category"`
	listData
}

type imageData struct {
	RecipeURL string `json:"recipeUrl" example:"http://localhost:9000/recipe-images/recipe-images/1700000000000000000-photo.png"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

func newListData(items []Summary, page, limit, total int) listData {
	p := response.NewPage(items, page, limit, total)
	return listData{Recipes: p.Items, Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages}
}

// List godoc
//
//	@Summary	List recipes
//	@Tags		recipes
//	@Produce	json
//	@Param		page	query		int	false	"Page (1-based)"
//	@Param		limit	query		int	false	"Page size"
//	@Success	200		{object}	response.Envelope{data=listData}
//	@Router		/recipes [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, Filter{})
}

// UserRecipes godoc
//
//	@Summary	List recipes written by a user
//	@Tags		users
//	@Produce	json
//	@Param		id		path		string	true	"User ID"
//	@Param		page	query		int		false	"Page (1-based)"
//	@Param		limit	query		int		false	"Page size"
//	@Success	200		{object}	response.Envelope{data=listData}
//	@Router		/users/{id}/recipes [get]
func (h *Handler) UserRecipes(w http.ResponseWriter, r *http.Request) {
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "user not found")
		return
	}
	h.list(w, r, Filter{UserID: id})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, f Filter) {
	page, limit := request.Pagination(r)
	items, total, err := h.svc.List(r.Context(), f, limit, request.Offset(page, limit))
	if err != nil {
		h.fail(w, r, "list recipes", err)
		return
	}
	response.OK(w, newListData(items, page, limit, total))
}

// Bookmarks godoc
//
//	@Summary	List own bookmarked recipes
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string	true	"User ID"
//	@Param		page	query		int		false	"Page (1-based)"
//	@Param		limit	query		int		false	"Page size"
//	@Success	200		{object}	response.Envelope{data=listData}
//	@Failure	403		{object}	response.Envelope
//	@Router		/users/{id}/bookmarks [get]
func (h *Handler) Bookmarks(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "user not found")
		return
	}

	page, limit := request.Pagination(r)
	items, total, err := h.svc.Bookmarks(r.Context(), actorID, id, limit, request.Offset(page, limit))
	if err != nil {
		h.fail(w, r, "list bookmarks", err)
		return
	}
	response.OK(w, newListData(items, page, limit, total))
}

// CategoryRecipes godoc
//
//	@Summary	List recipes in a category
//	@Tags		categories
//	@Produce	json
//	@Param		id		path		int	true	"Category ID"
//	@Param		page	query		int	false	"Page (1-based)"
//	@Param		limit	query		int	false	"Page size"
//	@Success	200		{object}	response.Envelope{data=categoryListData}
//	@Failure	404		{object}	response.Envelope
//	@Router		/categories/{id}/recipes [get]
func (h *Handler) CategoryRecipes(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IntParam(r, "id")
	if !ok {
		response.NotFound(w, "category not found")
		return
	}

	page, limit := request.Pagination(r)
	c, items, total, err := h.svc.ListByCategory(r.Context(), id, limit, request.Offset(page, limit))
	if err != nil {
		h.fail(w, r, "list category recipes", err)
		return
	}
	response.OK(w, categoryListData{Category: c, listData: newListData(items, page, limit, total)})
}

// Get godoc
//
//	@Summary		Get recipe
//	@Description	Returns a recipe with ingredients, steps and categories. With a token, bookmarked reflects the caller.
//	@Tags			recipes
//	@Produce		json
//	@Param			id	path		string	true	"Recipe ID"
//	@Success		200	{object}	response.Envelope{data=Recipe}
//	@Failure		404	{object}	response.Envelope
//	@Router			/recipes/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "recipe not found")
		return
	}
	viewerID, _ := middleware.UserID(r.Context())

	rec, err := h.svc.Get(r.Context(), id, viewerID)
	if err != nil {
		h.fail(w, r, "get recipe", err)
		return
	}
	response.OK(w, rec)
}

// Create godoc
//
//	@Summary	Create recipe
//	@Tags		recipes
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		Input	true	"Recipe"
//	@Success	201		{object}	response.Envelope{data=Recipe}
//	@Failure	400		{object}	response.Envelope
//	@Router		/recipes [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	var in Input
	if err := request.DecodeJSON(r, &in); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.svc.Create(r.Context(), actorID, in)
	if err != nil {
		h.fail(w, r, "create recipe", err)
		return
	}
	response.Created(w, rec)
}

// Update godoc
//
//	@Summary	Update recipe
//	@Tags		recipes
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string	true	"Recipe ID"
//	@Param		request	body		Input	true	"Recipe"
//	@Success	200		{object}	response.Envelope{data=Recipe}
//	@Failure	400		{object}	response.Envelope
//	@Failure	403		{object}	response.Envelope
//	@Failure	404		{object}	response.Envelope
//	@Router		/recipes/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.principalAndRecipe(w, r)
	if !ok {
		return
	}
	var in Input
	if err := request.DecodeJSON(r, &in); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.svc.Update(r.Context(), actorID, id, in)
	if err != nil {
		h.fail(w, r, "update recipe", err)
		return
	}
	response.OK(w, rec)
}

// Delete godoc
//
//	@Summary	Delete recipe
//	@Tags		recipes
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Recipe ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	403	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/recipes/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.principalAndRecipe(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actorID, id); err != nil {
		h.fail(w, r, "delete recipe", err)
		return
	}
	response.OK(w, map[string]bool{"deleted": true})
}

// RequireOwner rejects callers who do not own the {id} recipe. It runs in
// front of the upload pipeline so nothing is stored for them.
func (h *Handler) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, id, ok := h.principalAndRecipe(w, r)
		if !ok {
			return
		}
		if err := h.svc.CheckOwner(r.Context(), actorID, id); err != nil {
			h.fail(w, r, "check recipe owner", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UploadImage godoc
//
//	@Summary		Upload recipe image
//	@Description	Stores a JPEG or PNG and links its public URL to the recipe.
//	@Tags			recipes
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		string	true	"Recipe ID"
//	@Param			recipeImage	formData	file	true	"Image file"
//	@Success		200			{object}	response.Envelope{data=imageData}
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		403			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		415			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/recipes/{id}/upload-image [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	res, ok := upload.FromContext(r.Context())
	if !ok {
		response.BadRequest(w, "No file uploaded")
		return
	}
	actorID, id, ok := h.principalAndRecipe(w, r)
	if !ok {
		h.images.Discard(r.Context(), res)
		return
	}

	if err := h.svc.SetImage(r.Context(), actorID, id, res.URL); err != nil {
		h.images.Discard(r.Context(), res)
		h.fail(w, r, "link recipe image", err)
		return
	}
	response.OK(w, imageData{RecipeURL: res.URL})
}

// Bookmark godoc
//
//	@Summary	Bookmark or unbookmark a recipe
//	@Tags		recipes
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Recipe ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/recipes/{id}/bookmark [post]
func (h *Handler) Bookmark(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.principalAndRecipe(w, r)
	if !ok {
		return
	}
	bookmarked, err := h.svc.ToggleBookmark(r.Context(), actorID, id)
	if err != nil {
		h.fail(w, r, "toggle bookmark", err)
		return
	}
	response.OK(w, map[string]bool{"bookmarked": bookmarked})
}

// Comments godoc
//
//	@Summary	List comments on a recipe
//	@Tags		comments
//	@Produce	json
//	@Param		id	path		string	true	"Recipe ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/recipes/{id}/comments [get]
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "recipe not found")
		return
	}
	list, err := h.svc.Comments(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list comments", err)
		return
	}
	response.OK(w, map[string][]Comment{"comments": list})
}

// AddComment godoc
//
//	@Summary	Comment on a recipe
//	@Tags		comments
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string			true	"Recipe ID"
//	@Param		request	body		commentRequest	true	"Comment"
//	@Success	201		{object}	response.Envelope{data=Comment}
//	@Failure	400		{object}	response.Envelope
//	@Failure	404		{object}	response.Envelope
//	@Router		/recipes/{id}/comments [post]
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.principalAndRecipe(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		response.BadRequest(w, "text is required")
		return
	}

	c, err := h.svc.AddComment(r.Context(), actorID, id, text)
	if err != nil {
		h.fail(w, r, "add comment", err)
		return
	}
	response.Created(w, c)
}

// DeleteComment godoc
//
//	@Summary	Delete own comment
//	@Tags		comments
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Comment ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	403	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/comments/{id} [delete]
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "comment not found")
		return
	}
	if err := h.svc.DeleteComment(r.Context(), actorID, id); err != nil {
		h.fail(w, r, "delete comment", err)
		return
	}
	response.OK(w, map[string]bool{"deleted": true})
}

func (h *Handler) principalAndRecipe(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	actorID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return "", "", false
	}
	id, ok := request.UUIDParam(r, "id")
	if !ok {
		response.NotFound(w, "recipe not found")
		return "", "", false
	}
	return actorID, id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "recipe not found")
	case errors.Is(err, ErrCommentNotFound):
		response.NotFound(w, "comment not found")
	case errors.Is(err, category.ErrNotFound):
		response.NotFound(w, "category not found")
	case errors.Is(err, ErrUnknownCategory):
		response.BadRequest(w, "unknown category")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "you do not own this resource")
	default:
		h.log.Error(r.Context(), op, "error", err)
		response.InternalError(w)
	}
}

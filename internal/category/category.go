// Package category serves the fixed set of recipe categories.
package category

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/roundtable/service/internal/db"
	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/response"
)

// Category is a recipe category.
type Category struct {
	ID   int    `json:"id"   example:"3"`
	Name string `json:"name" example:"Dinner"`
}

// ErrNotFound is returned when a category does not exist.
var ErrNotFound = errors.New("category not found")

// Repository reads categories.
type Repository struct {
	db db.DBTX
}

// NewRepository creates a new category Repository.
func NewRepository(db db.DBTX) *Repository {
	return &Repository{db: db}
}

// List returns all categories ordered by name.
func (r *Repository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByID fetches one category.
func (r *Repository) GetByID(ctx context.Context, id int) (*Category, error) {
	c := &Category{}
	err := r.db.QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// Store is the persistence the Service needs.
type Store interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id int) (*Category, error)
}

// Service exposes categories to handlers and other packages.
type Service struct {
	repo Store
}

// NewService creates a new category Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// List returns all categories.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

// Get returns one category.
func (s *Service) Get(ctx context.Context, id int) (*Category, error) {
	return s.repo.GetByID(ctx, id)
}

// Handler holds HTTP handlers for category endpoints.
type Handler struct {
	svc *Service
	log logging.Logger
}

// NewHandler creates a new category Handler.
func NewHandler(svc *Service, log logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// List godoc
//
//	@Summary	List categories
//	@Tags		categories
//	@Produce	json
//	@Success	200	{object}	response.Envelope
//	@Failure	500	{object}	response.Envelope
//	@Router		/categories [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.log.Error(r.Context(), "list categories", "error", err)
		response.InternalError(w)
		return
	}
	response.OK(w, map[string][]Category{"categories": list})
}

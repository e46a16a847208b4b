package recipe

import (
	"context"
	"errors"

	"github.com/roundtable/service/internal/category"
	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/notify"
)

// ErrForbidden is returned when the actor does not own the recipe or comment.
var ErrForbidden = errors.New("forbidden")

// Store is the persistence the Service needs.
type Store interface {
	Create(ctx context.Context, userID string, in Input) (string, error)
	Update(ctx context.Context, id string, in Input) error
	Get(ctx context.Context, id, viewerID string) (*Recipe, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]Summary, int, error)
	OwnerID(ctx context.Context, id string) (string, error)
	Title(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
	SetImageURL(ctx context.Context, id, url string) error
	ToggleBookmark(ctx context.Context, userID, recipeID string) (bool, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	UserName(ctx context.Context, userID string) (string, error)
	Comments(ctx context.Context, recipeID string) ([]Comment, error)
	AddComment(ctx context.Context, recipeID, userID, text string) (*Comment, error)
	CommentAuthor(ctx context.Context, id string) (string, error)
	DeleteComment(ctx context.Context, id string) error
}

// Categories resolves category IDs.
type Categories interface {
	Get(ctx context.Context, id int) (*category.Category, error)
}

// Notifier delivers notifications; it never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// Service contains recipe business logic.
type Service struct {
	repo       Store
	categories Categories
	notifier   Notifier
	log        logging.Logger
}

// NewService creates a new recipe Service.
func NewService(repo Store, categories Categories, notifier Notifier, log logging.Logger) *Service {
	return &Service{repo: repo, categories: categories, notifier: notifier, log: log}
}

// List returns a page of recipes matching f.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]Summary, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// ListByCategory returns the category and a page of its recipes.
func (s *Service) ListByCategory(ctx context.Context, categoryID, limit, offset int) (*category.Category, []Summary, int, error) {
	c, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return nil, nil, 0, err
	}
	items, total, err := s.repo.List(ctx, Filter{CategoryID: categoryID}, limit, offset)
	if err != nil {
		return nil, nil, 0, err
	}
	return c, items, total, nil
}

// Bookmarks returns a page of the recipes userID bookmarked. Bookmarks are
// private to their owner.
func (s *Service) Bookmarks(ctx context.Context, actorID, userID string, limit, offset int) ([]Summary, int, error) {
	if actorID != userID {
		return nil, 0, ErrForbidden
	}
	return s.repo.List(ctx, Filter{BookmarkedBy: userID}, limit, offset)
}

// Get returns one recipe as seen by viewerID, which may be empty.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*Recipe, error) {
	return s.repo.Get(ctx, id, viewerID)
}

// Create stores a new recipe for actorID and notifies their followers.
func (s *Service) Create(ctx context.Context, actorID string, in Input) (*Recipe, error) {
	in.normalize()
	id, err := s.repo.Create(ctx, actorID, in)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	s.notifyFollowers(ctx, rec)
	return rec, nil
}

func (s *Service) notifyFollowers(ctx context.Context, rec *Recipe) {
	followers, err := s.repo.FollowerIDs(ctx, rec.UserID)
	if err != nil {
		s.log.Warn(ctx, "list followers for notification", "recipe_id", rec.ID, "error", err)
		return
	}
	for _, fid := range followers {
		s.notifier.Notify(ctx, notify.Notification{
			UserID:   fid,
			ActorID:  &rec.UserID,
			Type:     notify.TypeNewRecipe,
			Message:  rec.Author.Name + " posted a new recipe: " + rec.Title,
			RecipeID: &rec.ID,
		})
	}
}

// Update replaces a recipe owned by actorID.
func (s *Service) Update(ctx context.Context, actorID, id string, in Input) (*Recipe, error) {
	if err := s.CheckOwner(ctx, actorID, id); err != nil {
		return nil, err
	}
	in.normalize()
	if err := s.repo.Update(ctx, id, in); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id, actorID)
}

// Delete removes a recipe owned by actorID.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if err := s.CheckOwner(ctx, actorID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// CheckOwner returns ErrForbidden unless actorID wrote the recipe.
func (s *Service) CheckOwner(ctx context.Context, actorID, id string) error {
	owner, err := s.repo.OwnerID(ctx, id)
	if err != nil {
		return err
	}
	if owner != actorID {
		return ErrForbidden
	}
	return nil
}

// SetImage links an uploaded image URL to a recipe owned by actorID. The
// previously linked object, if any, stays in storage.
func (s *Service) SetImage(ctx context.Context, actorID, id, url string) error {
	if err := s.CheckOwner(ctx, actorID, id); err != nil {
		return err
	}
	return s.repo.SetImageURL(ctx, id, url)
}

// ToggleBookmark adds or removes actorID's bookmark; adding one notifies the author.
func (s *Service) ToggleBookmark(ctx context.Context, actorID, id string) (bool, error) {
	owner, err := s.repo.OwnerID(ctx, id)
	if err != nil {
		return false, err
	}
	bookmarked, err := s.repo.ToggleBookmark(ctx, actorID, id)
	if err != nil {
		return false, err
	}
	if bookmarked {
		s.notifyOwner(ctx, actorID, owner, id, notify.TypeBookmark, "bookmarked your recipe")
	}
	return bookmarked, nil
}

// Comments lists the comments on a recipe.
func (s *Service) Comments(ctx context.Context, id string) ([]Comment, error) {
	if _, err := s.repo.OwnerID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Comments(ctx, id)
}

// AddComment posts a comment and notifies the recipe's author.
func (s *Service) AddComment(ctx context.Context, actorID, id, text string) (*Comment, error) {
	owner, err := s.repo.OwnerID(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.AddComment(ctx, id, actorID, text)
	if err != nil {
		return nil, err
	}
	s.notifyOwner(ctx, actorID, owner, id, notify.TypeComment, "commented on your recipe")
	return c, nil
}

// DeleteComment removes a comment written by actorID.
func (s *Service) DeleteComment(ctx context.Context, actorID, commentID string) error {
	author, err := s.repo.CommentAuthor(ctx, commentID)
	if err != nil {
		return err
	}
	if author != actorID {
		return ErrForbidden
	}
	return s.repo.DeleteComment(ctx, commentID)
}

func (s *Service) notifyOwner(ctx context.Context, actorID, ownerID, recipeID string, typ notify.Type, verb string) {
	if actorID == ownerID {
		return
	}
	name, err := s.repo.UserName(ctx, actorID)
	if err != nil {
		name = "Someone"
	}
	msg := name + " " + verb
	if title, err := s.repo.Title(ctx, recipeID); err == nil {
		msg += ": " + title
	}
	s.notifier.Notify(ctx, notify.Notification{
		UserID:   ownerID,
		ActorID:  &actorID,
		Type:     typ,
		Message:  msg,
		RecipeID: &recipeID,
	})
}

package recipe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roundtable/service/internal/category"
	"github.com/roundtable/service/internal/notify"
)

type fakeRecipe struct {
	Recipe
	order int
}

type fakeComment struct {
	Comment
	userID string
}

// fakeStore keeps recipes in memory with the same ownership and not-found
// behaviour as Repository.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]string
	categories map[int]string
	recipes    map[string]*fakeRecipe
	bookmarks  map[[2]string]bool
	follows    map[string][]string
	comments   map[string]*fakeComment
	seq        int
	setURLErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      map[string]string{alice: "Alice", bob: "Bob", carol: "Carol"},
		categories: map[int]string{1: "Breakfast", 2: "Dinner"},
		recipes:    map[string]*fakeRecipe{},
		bookmarks:  map[[2]string]bool{},
		follows:    map[string][]string{},
		comments:   map[string]*fakeComment{},
	}
}

func (f *fakeStore) nextID() string {
	f.seq++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", f.seq)
}

func (f *fakeStore) apply(rec *Recipe, in Input) error {
	var cats []category.Category
	for _, id := range in.CategoryList() {
		name, ok := f.categories[id]
		if !ok {
			return ErrUnknownCategory
		}
		cats = append(cats, category.Category{ID: id, Name: name})
	}
	rec.Title, rec.Description, rec.ServingSize = in.Title, in.Description, in.ServingSize
	rec.Ingredients = append([]Ingredient{}, in.Ingredients...)
	rec.Steps = append([]Step{}, in.Steps...)
	rec.Categories = cats
	rec.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) Create(_ context.Context, userID string, in Input) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &fakeRecipe{order: f.seq}
	rec.ID = f.nextID()
	rec.UserID = userID
	rec.Author = Author{ID: userID, Name: f.users[userID]}
	rec.CreatedAt = time.Now()
	if err := f.apply(&rec.Recipe, in); err != nil {
		return "", err
	}
	f.recipes[rec.ID] = rec
	return rec.ID, nil
}

func (f *fakeStore) Update(_ context.Context, id string, in Input) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipes[id]
	if !ok {
		return ErrNotFound
	}
	return f.apply(&rec.Recipe, in)
}

func (f *fakeStore) Get(_ context.Context, id, viewerID string) (*Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := rec.Recipe
	cp.BookmarkCount = f.bookmarkCount(id)
	cp.Bookmarked = viewerID != "" && f.bookmarks[[2]string{viewerID, id}]
	return &cp, nil
}

func (f *fakeStore) bookmarkCount(id string) int {
	n := 0
	for k := range f.bookmarks {
		if k[1] == id {
			n++
		}
	}
	return n
}

func (f *fakeStore) List(_ context.Context, flt Filter, limit, offset int) ([]Summary, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*fakeRecipe
	for _, rec := range f.recipes {
		if flt.UserID != "" && rec.UserID != flt.UserID {
			continue
		}
		if flt.BookmarkedBy != "" && !f.bookmarks[[2]string{flt.BookmarkedBy, rec.ID}] {
			continue
		}
		if flt.CategoryID > 0 {
			found := false
			for _, c := range rec.Categories {
				found = found || c.ID == flt.CategoryID
			}
			if !found {
				continue
			}
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].order > matched[j].order })

	out := []Summary{}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		s := matched[i].Summary
		s.BookmarkCount = f.bookmarkCount(s.ID)
		out = append(out, s)
	}
	return out, len(matched), nil
}

func (f *fakeStore) OwnerID(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipes[id]
	if !ok {
		return "", ErrNotFound
	}
	return rec.UserID, nil
}

func (f *fakeStore) Title(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipes[id]
	if !ok {
		return "", ErrNotFound
	}
	return rec.Title, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recipes[id]; !ok {
		return ErrNotFound
	}
	delete(f.recipes, id)
	return nil
}

func (f *fakeStore) SetImageURL(_ context.Context, id, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setURLErr != nil {
		return f.setURLErr
	}
	rec, ok := f.recipes[id]
	if !ok {
		return ErrNotFound
	}
	rec.RecipeURL = &url
	return nil
}

func (f *fakeStore) ToggleBookmark(_ context.Context, userID, recipeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]string{userID, recipeID}
	if f.bookmarks[k] {
		delete(f.bookmarks, k)
		return false, nil
	}
	f.bookmarks[k] = true
	return true, nil
}

func (f *fakeStore) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follows[userID], nil
}

func (f *fakeStore) UserName(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID], nil
}

func (f *fakeStore) Comments(_ context.Context, recipeID string) ([]Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Comment{}
	for _, c := range f.comments {
		if c.RecipeID == recipeID {
			out = append(out, c.Comment)
		}
	}
	return out, nil
}

func (f *fakeStore) AddComment(_ context.Context, recipeID, userID, text string) (*Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeComment{userID: userID}
	c.ID = f.nextID()
	c.RecipeID = recipeID
	c.Text = text
	c.Author = Author{ID: userID, Name: f.users[userID]}
	c.CreatedAt = time.Now()
	f.comments[c.ID] = c
	cp := c.Comment
	return &cp, nil
}

func (f *fakeStore) CommentAuthor(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return "", ErrCommentNotFound
	}
	return c.userID, nil
}

func (f *fakeStore) DeleteComment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return ErrCommentNotFound
	}
	delete(f.comments, id)
	return nil
}

type fakeCategories map[int]string

func (c fakeCategories) Get(_ context.Context, id int) (*category.Category, error) {
	name, ok := c[id]
	if !ok {
		return nil, category.ErrNotFound
	}
	return &category.Category{ID: id, Name: name}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) all() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification{}, n.sent...)
}

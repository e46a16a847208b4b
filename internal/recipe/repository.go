package recipe

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/roundtable/service/internal/category"
	"github.com/roundtable/service/internal/db"
)

// ErrNotFound is returned when a recipe does not exist.
var ErrNotFound = errors.New("recipe not found")

// ErrCommentNotFound is returned when a comment does not exist.
var ErrCommentNotFound = errors.New("comment not found")

// ErrUnknownCategory is returned when an input names a category that does not exist.
var ErrUnknownCategory = errors.New("unknown category")

// Filter narrows a recipe listing. Zero fields do not filter.
type Filter struct {
	UserID       string
	CategoryID   int
	BookmarkedBy string
}

const summaryColumns = `r.id, r.user_id, r.title, r.description, r.serving_size, r.recipe_url,
	u.id, u.name, u.profile_url,
	(SELECT COUNT(*) FROM bookmarks b WHERE b.recipe_id = r.id),
	r.created_at, r.updated_at`

// Repository handles recipe persistence.
type Repository struct {
	db db.DBTX
}

// NewRepository creates a new recipe Repository.
func NewRepository(db db.DBTX) *Repository {
	return &Repository{db: db}
}

func scanSummary(row pgx.Row, s *Summary) error {
	return row.Scan(&s.ID, &s.UserID, &s.Title, &s.Description, &s.ServingSize, &s.RecipeURL,
		&s.Author.ID, &s.Author.Name, &s.Author.ProfileURL,
		&s.BookmarkCount, &s.CreatedAt, &s.UpdatedAt)
}

// Create inserts a recipe with its ingredients, steps and categories in one
// transaction and returns the new ID.
func (r *Repository) Create(ctx context.Context, userID string, in Input) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id string
	err = tx.QueryRow(ctx,
		`INSERT INTO recipes (user_id, title, description, serving_size)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		userID, in.Title, in.Description, in.ServingSize,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert recipe: %w", err)
	}

	if err := insertChildren(ctx, tx, id, in); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit recipe: %w", err)
	}
	return id, nil
}

// Update replaces a recipe's fields, ingredients, steps and categories in
// one transaction. The image URL is left alone.
func (r *Repository) Update(ctx context.Context, id string, in Input) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE recipes
		 SET title = $2, description = $3, serving_size = $4, updated_at = NOW()
		 WHERE id = $1`,
		id, in.Title, in.Description, in.ServingSize,
	)
	if err != nil {
		return fmt.Errorf("update recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, table := range []string{"ingredients", "steps", "recipe_categories"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE recipe_id = $1`, id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := insertChildren(ctx, tx, id, in); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit recipe: %w", err)
	}
	return nil
}

func insertChildren(ctx context.Context, tx pgx.Tx, recipeID string, in Input) error {
	for i, ing := range in.Ingredients {
		_, err := tx.Exec(ctx,
			`INSERT INTO ingredients (recipe_id, position, ingredient_name, quantity_amount, quantity_unit)
			 VALUES ($1, $2, $3, $4, $5)`,
			recipeID, i+1, ing.IngredientName, ing.QuantityAmount, ing.QuantityUnit,
		)
		if err != nil {
			return fmt.Errorf("insert ingredient: %w", err)
		}
	}
	for _, st := range in.Steps {
		_, err := tx.Exec(ctx,
			`INSERT INTO steps (recipe_id, step_number, instruction) VALUES ($1, $2, $3)`,
			recipeID, st.StepNumber, st.Instruction,
		)
		if err != nil {
			return fmt.Errorf("insert step: %w", err)
		}
	}
	for _, cid := range in.CategoryList() {
		_, err := tx.Exec(ctx,
			`INSERT INTO recipe_categories (recipe_id, category_id) VALUES ($1, $2)`,
			recipeID, cid,
		)
		if db.IsForeignKeyViolation(err) {
			return ErrUnknownCategory
		}
		if err != nil {
			return fmt.Errorf("insert recipe category: %w", err)
		}
	}
	return nil
}

// Get fetches a recipe with its children. viewerID, when set, fills Bookmarked.
func (r *Repository) Get(ctx context.Context, id, viewerID string) (*Recipe, error) {
	rec := &Recipe{}
	err := scanSummary(r.db.QueryRow(ctx,
		`SELECT `+summaryColumns+`
		 FROM recipes r JOIN users u ON u.id = r.user_id
		 WHERE r.id = $1`, id), &rec.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}

	if rec.Ingredients, err = r.ingredients(ctx, id); err != nil {
		return nil, err
	}
	if rec.Steps, err = r.steps(ctx, id); err != nil {
		return nil, err
	}
	if rec.Categories, err = r.categories(ctx, id); err != nil {
		return nil, err
	}
	if viewerID != "" {
		if rec.Bookmarked, err = r.IsBookmarked(ctx, viewerID, id); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (r *Repository) ingredients(ctx context.Context, recipeID string) ([]Ingredient, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ingredient_name, quantity_amount, quantity_unit
		 FROM ingredients WHERE recipe_id = $1 ORDER BY position`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	defer rows.Close()

	out := []Ingredient{}
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.IngredientName, &ing.QuantityAmount, &ing.QuantityUnit); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (r *Repository) steps(ctx context.Context, recipeID string) ([]Step, error) {
	rows, err := r.db.Query(ctx,
		`SELECT step_number, instruction FROM steps WHERE recipe_id = $1 ORDER BY step_number`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	out := []Step{}
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.StepNumber, &st.Instruction); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *Repository) categories(ctx context.Context, recipeID string) ([]category.Category, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.name
		 FROM recipe_categories rc JOIN categories c ON c.id = rc.category_id
		 WHERE rc.recipe_id = $1 ORDER BY c.name`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("list recipe categories: %w", err)
	}
	defer rows.Close()

	out := []category.Category{}
	for rows.Next() {
		var c category.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// filterClause builds the FROM/WHERE part shared by List and its count.
func filterClause(f Filter) (string, []any) {
	from := ` FROM recipes r JOIN users u ON u.id = r.user_id`
	where := ` WHERE TRUE`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.BookmarkedBy != "" {
		from += ` JOIN bookmarks bm ON bm.recipe_id = r.id AND bm.user_id = ` + arg(f.BookmarkedBy)
	}
	if f.CategoryID > 0 {
		from += ` JOIN recipe_categories rc ON rc.recipe_id = r.id AND rc.category_id = ` + arg(f.CategoryID)
	}
	if f.UserID != "" {
		where += ` AND r.user_id = ` + arg(f.UserID)
	}
	return from + where, args
}

// List returns a page of recipe summaries, newest first, and the total count.
func (r *Repository) List(ctx context.Context, f Filter, limit, offset int) ([]Summary, int, error) {
	clause, args := filterClause(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	n := len(args)
	query := `SELECT ` + summaryColumns + clause +
		` ORDER BY r.created_at DESC, r.id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := scanSummary(rows, &s); err != nil {
			return nil, 0, fmt.Errorf("scan recipe: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	return out, total, nil
}

// OwnerID returns the author of a recipe.
func (r *Repository) OwnerID(ctx context.Context, id string) (string, error) {
	var owner string
	err := r.db.QueryRow(ctx, `SELECT user_id FROM recipes WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get recipe owner: %w", err)
	}
	return owner, nil
}

// Title returns the title of a recipe.
func (r *Repository) Title(ctx context.Context, id string) (string, error) {
	var title string
	err := r.db.QueryRow(ctx, `SELECT title FROM recipes WHERE id = $1`, id).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get recipe title: %w", err)
	}
	return title, nil
}

// Delete removes a recipe; children cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetImageURL stores the public URL of the recipe's image.
func (r *Repository) SetImageURL(ctx context.Context, id, url string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE recipes SET recipe_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("set recipe url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleBookmark adds or removes a bookmark and reports whether it now exists.
func (r *Repository) ToggleBookmark(ctx context.Context, userID, recipeID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM bookmarks WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
	if err != nil {
		return false, fmt.Errorf("remove bookmark: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO bookmarks (user_id, recipe_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, recipeID)
	if db.IsForeignKeyViolation(err) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("add bookmark: %w", err)
	}
	return true, nil
}

// IsBookmarked reports whether userID bookmarked recipeID.
func (r *Repository) IsBookmarked(ctx context.Context, userID, recipeID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookmarks WHERE user_id = $1 AND recipe_id = $2)`,
		userID, recipeID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	return ok, nil
}

// FollowerIDs lists the users following userID.
func (r *Repository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT follower_id FROM follows WHERE following_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list follower ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follower id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserName returns a user's display name.
func (r *Repository) UserName(ctx context.Context, userID string) (string, error) {
	var name string
	if err := r.db.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name); err != nil {
		return "", fmt.Errorf("get user name: %w", err)
	}
	return name, nil
}

const commentColumns = `c.id, c.recipe_id, c.text, u.id, u.name, u.profile_url, c.created_at`

func scanComment(row pgx.Row, c *Comment) error {
	return row.Scan(&c.ID, &c.RecipeID, &c.Text, &c.Author.ID, &c.Author.Name, &c.Author.ProfileURL, &c.CreatedAt)
}

// Comments lists a recipe's comments, oldest first.
func (r *Repository) Comments(ctx context.Context, recipeID string) ([]Comment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+commentColumns+`
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.recipe_id = $1
		 ORDER BY c.created_at`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := []Comment{}
	for rows.Next() {
		var c Comment
		if err := scanComment(rows, &c); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddComment inserts a comment and returns it with its author.
func (r *Repository) AddComment(ctx context.Context, recipeID, userID, text string) (*Comment, error) {
	c := &Comment{}
	err := scanComment(r.db.QueryRow(ctx,
		`WITH c AS (
		   INSERT INTO comments (recipe_id, user_id, text) VALUES ($1, $2, $3)
		   RETURNING id, recipe_id, user_id, text, created_at
		 )
		 SELECT `+commentColumns+` FROM c JOIN users u ON u.id = c.user_id`,
		recipeID, userID, text), c)
	if db.IsForeignKeyViolation(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return c, nil
}

// CommentAuthor returns who wrote a comment.
func (r *Repository) CommentAuthor(ctx context.Context, id string) (string, error) {
	var author string
	err := r.db.QueryRow(ctx, `SELECT user_id FROM comments WHERE id = $1`, id).Scan(&author)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrCommentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get comment author: %w", err)
	}
	return author, nil
}

// DeleteComment removes a comment.
func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// Package user manages user accounts, profiles and the follow graph.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roundtable/service/internal/db"
)

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	GoogleID     *string   `json:"-"`
	Bio          *string   `json:"bio,omitempty"`
	ProfileURL   *string   `json:"profileUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is a user with public counters.
type Profile struct {
	User
	FollowerCount  int `json:"followerCount"`
	FollowingCount int `json:"followingCount"`
	RecipeCount    int `json:"recipeCount"`
}

// Summary is the compact form used in follower lists.
type Summary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ProfileURL *string `json:"profileUrl,omitempty"`
}

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// ErrAlreadyExists is returned when an email or Google account is already registered.
var ErrAlreadyExists = errors.New("user already exists")

const userColumns = `id, name, email, password_hash, google_id, bio, profile_url, created_at, updated_at`

// Repository handles all user database operations.
type Repository struct {
	db db.DBTX
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db db.DBTX) *Repository {
	return &Repository{db: db}
}

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.GoogleID, &u.Bio, &u.ProfileURL, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// Create inserts a new user and returns the created record. Either
// passwordHash or googleID may be nil.
func (r *Repository) Create(ctx context.Context, name, email string, passwordHash, googleID *string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, google_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		name, email, passwordHash, googleID,
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID fetches a user by their UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, err
}

// GetByEmail fetches a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, err
}

// GetByGoogleID fetches a user by their Google subject identifier.
func (r *Repository) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user by google id: %w", err)
	}
	return u, err
}

// LinkGoogleID attaches a Google account to an existing user.
func (r *Repository) LinkGoogleID(ctx context.Context, id, googleID string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET google_id = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, googleID,
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("link google id: %w", err)
	}
	return u, nil
}

// Update overwrites the name and bio of a user. Nil fields are left unchanged.
func (r *Repository) Update(ctx context.Context, id string, name, bio *string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users
		 SET name = COALESCE($2, name), bio = COALESCE($3, bio), updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, name, bio,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, err
}

// SetProfileURL stores the public URL of the user's profile image.
func (r *Repository) SetProfileURL(ctx context.Context, id, url string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET profile_url = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, url,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("set profile url: %w", err)
	}
	return u, err
}

// GetProfile fetches a user together with follower, following and recipe counts.
func (r *Repository) GetProfile(ctx context.Context, id string) (*Profile, error) {
	p := &Profile{}
	err := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`,
		        (SELECT COUNT(*) FROM follows WHERE following_id = users.id),
		        (SELECT COUNT(*) FROM follows WHERE follower_id = users.id),
		        (SELECT COUNT(*) FROM recipes WHERE user_id = users.id)
		 FROM users WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.GoogleID, &p.Bio, &p.ProfileURL, &p.CreatedAt, &p.UpdatedAt,
		&p.FollowerCount, &p.FollowingCount, &p.RecipeCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// ToggleFollow makes followerID follow followingID, or unfollow when the
// edge already exists. It reports whether the follower now follows.
func (r *Repository) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`,
		followerID, followingID,
	)
	if err != nil {
		return false, fmt.Errorf("unfollow: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		followerID, followingID,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("follow: %w", err)
	}
	return true, nil
}

// IsFollowing reports whether followerID follows followingID.
func (r *Repository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`,
		followerID, followingID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return ok, nil
}

// Followers lists the users who follow id, most recent first.
func (r *Repository) Followers(ctx context.Context, id string) ([]Summary, error) {
	return r.summaries(ctx,
		`SELECT u.id, u.name, u.profile_url
		 FROM follows f JOIN users u ON u.id = f.follower_id
		 WHERE f.following_id = $1
		 ORDER BY f.created_at DESC`, id)
}

// Followings lists the users id follows, most recent first.
func (r *Repository) Followings(ctx context.Context, id string) ([]Summary, error) {
	return r.summaries(ctx,
		`SELECT u.id, u.name, u.profile_url
		 FROM follows f JOIN users u ON u.id = f.following_id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at DESC`, id)
}

func (r *Repository) summaries(ctx context.Context, query string, id string) ([]Summary, error) {
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.ProfileURL); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Package notify persists user notifications and pushes them to connected
// clients over websockets, fanning out through a pub/sub broker.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roundtable/service/internal/db"
)

// Type classifies a notification.
type Type string

const (
	TypeFollow    Type = "follow"
	TypeBookmark  Type = "bookmark"
	TypeComment   Type = "comment"
	TypeNewRecipe Type = "new_recipe"
)

// Notification is a message addressed to one user.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	ActorID   *string    `json:"actorId,omitempty"`
	Type      Type       `json:"type"`
	Message   string     `json:"message"`
	RecipeID  *string    `json:"recipeId,omitempty"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ErrNotFound is returned when a notification does not exist for the user.
var ErrNotFound = errors.New("notification not found")

// Repository handles notification persistence.
type Repository struct {
	db db.DBTX
}

// NewRepository creates a new notification Repository.
func NewRepository(db db.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts n and fills in its ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO notifications (user_id, actor_id, type, message, recipe_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		n.UserID, n.ActorID, string(n.Type), n.Message, n.RecipeID,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns a page of the user's notifications, newest first, and the total count.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, actor_id, type, message, recipe_id, read_at, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &typ, &n.Message, &n.RecipeID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return out, total, nil
}

// MarkRead sets read_at on the user's notification.
func (r *Repository) MarkRead(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadCount returns how many of the user's notifications are unread.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

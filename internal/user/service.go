package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/roundtable/service/internal/notify"
)

// ErrForbidden is returned when the actor may not modify the target user.
var ErrForbidden = errors.New("forbidden")

// ErrSelfFollow is returned when a user tries to follow themselves.
var ErrSelfFollow = errors.New("cannot follow yourself")

// Store is the persistence the Service needs.
type Store interface {
	Create(ctx context.Context, name, email string, passwordHash, googleID *string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
	LinkGoogleID(ctx context.Context, id, googleID string) (*User, error)
	Update(ctx context.Context, id string, name, bio *string) (*User, error)
	SetProfileURL(ctx context.Context, id, url string) (*User, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	Followers(ctx context.Context, id string) ([]Summary, error)
	Followings(ctx context.Context, id string) ([]Summary, error)
}

// Notifier delivers notifications; it never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// UpdateInput holds the editable profile fields.
type UpdateInput struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
	Bio  *string `json:"bio" validate:"omitempty,max=500"`
}

// Service contains business logic for user management.
type Service struct {
	repo     Store
	notifier Notifier
}

// NewService creates a new user Service.
func NewService(repo Store, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// Create registers a new user account.
func (s *Service) Create(ctx context.Context, name, email string, passwordHash, googleID *string) (*User, error) {
	u, err := s.repo.Create(ctx, name, email, passwordHash, googleID)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns a user by email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// GetByGoogleID returns the user linked to a Google account.
func (s *Service) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return s.repo.GetByGoogleID(ctx, googleID)
}

// LinkGoogleID links a Google account to the user.
func (s *Service) LinkGoogleID(ctx context.Context, id, googleID string) (*User, error) {
	return s.repo.LinkGoogleID(ctx, id, googleID)
}

// GetProfile returns the public profile of a user.
func (s *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	return s.repo.GetProfile(ctx, id)
}

// Update edits the target user's profile on behalf of actorID.
func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (*User, error) {
	if actorID != id {
		return nil, ErrForbidden
	}
	return s.repo.Update(ctx, id, in.Name, in.Bio)
}

// SetProfileImage records url as the user's profile image. The previously
// referenced object is left in storage.
func (s *Service) SetProfileImage(ctx context.Context, actorID, id, url string) (*User, error) {
	if actorID != id {
		return nil, ErrForbidden
	}
	return s.repo.SetProfileURL(ctx, id, url)
}

// ToggleFollow follows or unfollows targetID and reports the resulting state.
// A new follow notifies the followed user.
func (s *Service) ToggleFollow(ctx context.Context, followerID, targetID string) (bool, error) {
	if followerID == targetID {
		return false, ErrSelfFollow
	}
	if _, err := s.repo.GetByID(ctx, targetID); err != nil {
		return false, err
	}

	following, err := s.repo.ToggleFollow(ctx, followerID, targetID)
	if err != nil {
		return false, err
	}
	if following {
		s.notifyFollow(ctx, followerID, targetID)
	}
	return following, nil
}

func (s *Service) notifyFollow(ctx context.Context, followerID, targetID string) {
	name := "Someone"
	if follower, err := s.repo.GetByID(ctx, followerID); err == nil {
		name = follower.Name
	}
	s.notifier.Notify(ctx, notify.Notification{
		UserID:  targetID,
		ActorID: &followerID,
		Type:    notify.TypeFollow,
		Message: name + " started following you",
	})
}

// IsFollowing reports whether followerID follows targetID.
func (s *Service) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	return s.repo.IsFollowing(ctx, followerID, targetID)
}

// Followers lists who follows id.
func (s *Service) Followers(ctx context.Context, id string) ([]Summary, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Followers(ctx, id)
}

// Followings lists whom id follows.
func (s *Service) Followings(ctx context.Context, id string) ([]Summary, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Followings(ctx, id)
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

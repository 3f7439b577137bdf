package inapp

import (
	"context"

	"github.com/google/uuid"
)

// Service provides in-app notification operations. Creation is invoked by
// the fan-out coordinator; reads and read-marking are user-facing.
type Service struct {
	repo *Repository
}

// NewService creates a new in-app notification service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create records one notification for a user.
func (s *Service) Create(ctx context.Context, p CreateParams) (Notification, error) {
	return s.repo.Create(ctx, p)
}

// ListPage is a paginated notification listing with unread count.
type ListPage struct {
	Items  []Notification `json:"items"`
	Total  int            `json:"total"`
	Unread int            `json:"unread"`
}

// List retrieves a page of the user's notifications.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) (ListPage, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.repo.List(ctx, userID, limit, offset)
	if err != nil {
		return ListPage{}, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return ListPage{}, err
	}
	return ListPage{Items: items, Total: total, Unread: unread}, nil
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

// MarkAllRead marks all of the user's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

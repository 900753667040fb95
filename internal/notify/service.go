package notify

import (
	"context"
	"strings"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// RepositoryPort abstracts notification storage.
type RepositoryPort interface {
	ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Create(ctx context.Context, n Notification) (Notification, error)
	Delete(ctx context.Context, userID, id int64) error
}

// Service exposes a user's notification inbox.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListForUser returns at most limit notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	if userID <= 0 {
		return nil, shared.Validationf("notify: user required")
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.repo.ListForUser(ctx, userID, limit)
}

// UnreadCount returns how many notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, shared.Validationf("notify: user required")
	}
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead flags one notification as read. Notifications of other users are
// reported as missing.
func (s *Service) MarkRead(ctx context.Context, userID, id int64) error {
	if userID <= 0 {
		return shared.Validationf("notify: user required")
	}
	return s.repo.MarkRead(ctx, userID, id)
}

// MarkAllRead flags the whole inbox as read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, shared.Validationf("notify: user required")
	}
	return s.repo.MarkAllRead(ctx, userID)
}

// Create addresses a notification to n.UserID on behalf of actorID.
func (s *Service) Create(ctx context.Context, actorID int64, n Notification) (Notification, error) {
	if actorID <= 0 {
		return Notification{}, shared.Validationf("notify: user required")
	}
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	return s.repo.Create(ctx, n)
}

// Delete removes one notification from the user's inbox. Notifications of
// other users are reported as missing.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if userID <= 0 {
		return shared.Validationf("notify: user required")
	}
	return s.repo.Delete(ctx, userID, id)
}

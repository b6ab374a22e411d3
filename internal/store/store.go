package store

import (
	"context"

	"github.com/nhle/mail-filing/internal/model"
)

// FilingFilter controls filtering and pagination for filing history queries.
type FilingFilter struct {
	CaseID *string
	Limit  int
	Offset int
}

// Store defines the persistence interface for filing history and user
// notifications. The key-value side of the SQLite database is exposed
// separately through the kvstore.Backend interface.
type Store interface {
	// === Filing history ===

	RecordFiling(ctx context.Context, f model.Filing) error
	GetFilings(ctx context.Context, filter FilingFilter) ([]model.Filing, error)

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

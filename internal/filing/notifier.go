package filing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-filing/internal/model"
)

// notificationSink is the subset of the store used by StoreNotifier.
type notificationSink interface {
	CreateNotification(ctx context.Context, n model.Notification) error
}

// StoreNotifier persists user notifications in the local database, where
// the status view picks them up. Show never reports failure; notifications
// are best-effort by contract.
type StoreNotifier struct {
	sink notificationSink
	log  *logrus.Entry
}

// NewStoreNotifier creates a StoreNotifier over the given store.
func NewStoreNotifier(sink notificationSink) *StoreNotifier {
	return &StoreNotifier{
		sink: sink,
		log:  logrus.WithField("pkg", "filing"),
	}
}

// Show records a notification, swallowing any storage failure.
func (n *StoreNotifier) Show(eventID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := n.sink.CreateNotification(ctx, model.Notification{
		EventID:   eventID,
		Message:   message,
		CreatedAt: time.Now(),
	})
	if err != nil {
		n.log.WithError(err).Warn("failed to persist notification")
	}
}

package lib

import (
	"context"
	"fmt"
	"strings"

	"github.com/fiffu/timetablewatch/lib/models"
	"github.com/fiffu/timetablewatch/lib/store"
	"go.uber.org/zap"
)

type subscribe struct {
	log   *zap.Logger
	store store.Store
}

// ErrInvalidSubscriber is returned for ids without a usable identifier.
type ErrInvalidSubscriber struct {
	ID string
}

func (e ErrInvalidSubscriber) Error() string {
	return fmt.Sprintf("invalid subscriber id %q", e.ID)
}

// Subscribe enables notifications for a line. Subscribing twice is a no-op.
func (svc *subscribe) Subscribe(ctx context.Context, code, subscriberID string) (*models.Line, error) {
	id, err := validSubscriber(subscriberID)
	if err != nil {
		return nil, err
	}

	line, err := svc.store.AddSubscriber(ctx, code, id)
	if err != nil {
		return nil, err
	}
	svc.log.Sugar().Infow("Subscribed to line", "code", code, "subscriber", id)
	return line, nil
}

// Unsubscribe disables notifications for a line. Unknown subscribers are ignored.
func (svc *subscribe) Unsubscribe(ctx context.Context, code, subscriberID string) (*models.Line, error) {
	id, err := validSubscriber(subscriberID)
	if err != nil {
		return nil, err
	}

	line, err := svc.store.RemoveSubscriber(ctx, code, id)
	if err != nil {
		return nil, err
	}
	svc.log.Sugar().Infow("Unsubscribed from line", "code", code, "subscriber", id)
	return line, nil
}

// validSubscriber returns the canonical form of id, so "telegram:42" and
// "42" are stored as the same subscriber.
func validSubscriber(id string) (string, error) {
	id = strings.TrimSpace(id)
	sub := models.ParseSubscriber(id)
	if sub.Identifier == "" {
		return "", ErrInvalidSubscriber{id}
	}
	return sub.ID(), nil
}

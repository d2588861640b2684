package service

import (
	"context"

	"github.com/okian/gridpick/internal/domain/notify"
)

// RecentNotifications returns the caller's most recent notifications.
func (s *Service) RecentNotifications(ctx context.Context, n int) ([]notify.Notification, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return s.notes.RecentFor(sess.UserID, n), nil
}

// DismissNotification removes one of the caller's own notifications.
// Broadcasts and other users' notifications are left alone.
func (s *Service) DismissNotification(ctx context.Context, id string) (bool, error) {
	sess, err := session(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range s.notes.RecentFor(sess.UserID, 0) {
		if n.ID == id && n.UserID == sess.UserID {
			return s.notes.Dismiss(id), nil
		}
	}
	return false, nil
}

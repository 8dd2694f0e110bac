package app

import (
	"context"

	"tradepost/api/internal/store"
)

// The ledger is stored in append (chronological) order on the user document.
// Every mutation is load, transform in memory, single write back; concurrent
// writers against the same user race and the last write wins.

// appendNotification unconditionally appends an entry to the target's ledger.
// A missing target user is a hard error for the caller to handle.
func (s *Service) appendNotification(ctx context.Context, targetUserID string, note store.Notification) error {
	user, err := s.store.GetUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	user.Notifications = append(user.Notifications, note)
	return s.store.SetUserNotifications(ctx, targetUserID, user.Notifications)
}

// refreshOrAppendNotification dedups by (kind, subject, actor): a repeat from
// the same actor on the same subject bumps the existing entry's date instead
// of stacking a new one.
func (s *Service) refreshOrAppendNotification(ctx context.Context, targetUserID string, note store.Notification) error {
	user, err := s.store.GetUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	for i := range user.Notifications {
		existing := &user.Notifications[i]
		if existing.Kind == note.Kind && existing.SubjectID == note.SubjectID && existing.ActorID == note.ActorID {
			existing.Date = note.Date
			return s.store.SetUserNotifications(ctx, targetUserID, user.Notifications)
		}
	}
	user.Notifications = append(user.Notifications, note)
	return s.store.SetUserNotifications(ctx, targetUserID, user.Notifications)
}

// upsertNotificationBySubject dedups by (kind, subject) regardless of actor.
// Accept and unaccept share an endpoint keyed by current state, so a match
// here should be unreachable on accept; refresh defensively if it happens.
func (s *Service) upsertNotificationBySubject(ctx context.Context, targetUserID string, note store.Notification) error {
	user, err := s.store.GetUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	for i := range user.Notifications {
		existing := &user.Notifications[i]
		if existing.Kind == note.Kind && existing.SubjectID == note.SubjectID {
			existing.Date = note.Date
			existing.Message = note.Message
			existing.ActorID = note.ActorID
			return s.store.SetUserNotifications(ctx, targetUserID, user.Notifications)
		}
	}
	user.Notifications = append(user.Notifications, note)
	return s.store.SetUserNotifications(ctx, targetUserID, user.Notifications)
}

// removeNotificationBySubject deletes every (kind, subject) match from the
// target's ledger. No match is a no-op, but the write still happens only on
// change.
func (s *Service) removeNotificationBySubject(ctx context.Context, targetUserID, kind, subjectID string) error {
	user, err := s.store.GetUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	kept := user.Notifications[:0]
	for _, note := range user.Notifications {
		if note.Kind == kind && note.SubjectID == subjectID {
			continue
		}
		kept = append(kept, note)
	}
	if len(kept) == len(user.Notifications) {
		return nil
	}
	return s.store.SetUserNotifications(ctx, targetUserID, kept)
}

// ListNotifications returns the caller's ledger newest first.
func (s *Service) ListNotifications(ctx context.Context, sess Session) ([]store.Notification, error) {
	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	reversed := make([]store.Notification, 0, len(user.Notifications))
	for i := len(user.Notifications) - 1; i >= 0; i-- {
		reversed = append(reversed, user.Notifications[i])
	}
	return reversed, nil
}

// DismissNotification removes the entry at a display position. The UI shows
// newest first while storage is oldest first, so the display index inverts:
// storage = len-1-display. An out-of-range index is a silent no-op.
func (s *Service) DismissNotification(ctx context.Context, sess Session, displayIndex int) error {
	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return err
	}
	storageIndex := len(user.Notifications) - 1 - displayIndex
	if storageIndex < 0 || storageIndex >= len(user.Notifications) {
		return nil
	}
	notifications := append(user.Notifications[:storageIndex], user.Notifications[storageIndex+1:]...)
	return s.store.SetUserNotifications(ctx, sess.UserID, notifications)
}

// Package notifystore holds the client-side copy of an account's notifications
// and unread count. All changes to either go through a Store.
package notifystore

import (
	"context"
	"sync"
	"time"

	"github.com/theleywin/Collab-Nest/src/models"
)

// Service is the subset of the API client the store talks to.
type Service interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// Snapshot is a copy of the store state handed to readers and listeners.
type Snapshot struct {
	Notifications []models.Notification
	UnreadCount   int64
}

type Store struct {
	svc Service

	mu            sync.Mutex
	notifications []models.Notification
	unread        int64
	refreshToken  uint64
	// countGen moves whenever a fetch of the count starts or a fetched count
	// replaces unread. Fetches and optimistic reverts apply only if it has not moved.
	countGen      uint64
	listeners     map[int]func(Snapshot)
	nextListener  int
}

func New(svc Service) *Store {
	return &Store{svc: svc, listeners: make(map[int]func(Snapshot))}
}

// OnChange registers fn to run after every state change. The returned func unsubscribes.
func (s *Store) OnChange(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) UnreadCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Refresh reloads the list and the unread count. Only the latest refresh is applied.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.refreshToken++
	token := s.refreshToken
	gen := s.startCountLocked()
	s.mu.Unlock()

	list, err := s.svc.Notifications(ctx)
	if err != nil {
		return err
	}
	count, err := s.svc.UnreadCount(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	changed := false
	if token == s.refreshToken {
		s.notifications = list
		changed = true
	}
	if s.applyCountLocked(gen, count) {
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.emit()
	}
	return nil
}

// RefreshUnreadCount reloads only the badge count. A result overtaken by a
// later count fetch is dropped.
func (s *Store) RefreshUnreadCount(ctx context.Context) error {
	s.mu.Lock()
	gen := s.startCountLocked()
	s.mu.Unlock()

	count, err := s.svc.UnreadCount(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	applied := s.applyCountLocked(gen, count)
	s.mu.Unlock()

	if applied {
		s.emit()
	}
	return nil
}

// MarkAsRead flips the local entry and the count immediately and reverts both
// if the server refuses. An entry that is already read is left alone.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		if _, err := s.svc.MarkRead(ctx, id); err != nil {
			return err
		}
		return s.RefreshUnreadCount(ctx)
	}
	if s.notifications[i].IsRead {
		s.mu.Unlock()
		return nil
	}

	now := time.Now()
	s.notifications[i].IsRead = true
	s.notifications[i].ReadAt = &now
	decremented := s.unread > 0
	if decremented {
		s.unread--
	}
	gen := s.countGen
	s.mu.Unlock()
	s.emit()

	if _, err := s.svc.MarkRead(ctx, id); err != nil {
		s.mu.Lock()
		if j := s.indexLocked(id); j >= 0 && s.notifications[j].IsRead {
			s.notifications[j].IsRead = false
			s.notifications[j].ReadAt = nil
		}
		if decremented && gen == s.countGen {
			s.unread++
		}
		s.mu.Unlock()
		s.emit()
		return err
	}
	return nil
}

// MarkAllAsRead changes local state only once the server has accepted it.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	if err := s.svc.MarkAllRead(ctx); err != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	for i := range s.notifications {
		if !s.notifications[i].IsRead {
			s.notifications[i].IsRead = true
			s.notifications[i].ReadAt = &now
		}
	}
	s.unread = 0
	s.countGen++
	s.mu.Unlock()

	s.emit()
	return nil
}

// Delete removes the entry immediately and puts it back at its old position if
// the server refuses.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return s.svc.DeleteNotification(ctx, id)
	}

	removed := s.notifications[i]
	s.notifications = append(s.notifications[:i:i], s.notifications[i+1:]...)
	decremented := !removed.IsRead && s.unread > 0
	if decremented {
		s.unread--
	}
	gen := s.countGen
	s.mu.Unlock()
	s.emit()

	if err := s.svc.DeleteNotification(ctx, id); err != nil {
		s.mu.Lock()
		if s.indexLocked(id) < 0 {
			at := i
			if at > len(s.notifications) {
				at = len(s.notifications)
			}
			s.notifications = append(s.notifications[:at:at], append([]models.Notification{removed}, s.notifications[at:]...)...)
		}
		if decremented && gen == s.countGen {
			s.unread++
		}
		s.mu.Unlock()
		s.emit()
		return err
	}
	return nil
}

func (s *Store) startCountLocked() uint64 {
	s.countGen++
	return s.countGen
}

// applyCountLocked stores a count fetched under gen unless a newer fetch or
// overwrite happened since.
func (s *Store) applyCountLocked(gen uint64, count int64) bool {
	if gen != s.countGen {
		return false
	}
	s.unread = count
	s.countGen++
	return true
}

func (s *Store) indexLocked(id string) int {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() Snapshot {
	list := make([]models.Notification, len(s.notifications))
	copy(list, s.notifications)
	return Snapshot{Notifications: list, UnreadCount: s.unread}
}

func (s *Store) emit() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

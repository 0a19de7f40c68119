package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/theleywin/Collab-Nest/src/audit"
	"github.com/theleywin/Collab-Nest/src/cache"
	"github.com/theleywin/Collab-Nest/src/lib"
	"github.com/theleywin/Collab-Nest/src/logger"
	"github.com/theleywin/Collab-Nest/src/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Notification
}

func (p *recordingPublisher) NotificationCreated(_ context.Context, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, n)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *memoryRecorder) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memoryRecorder) Close(context.Context) error { return nil }

type fixture struct {
	db            *gorm.DB
	redis         *miniredis.Miniredis
	publisher     *recordingPublisher
	recorder      *memoryRecorder
	notifications *NotificationService
	connections   *ConnectionService
	alice         models.User
	bob           models.User
	carol         models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, lib.OpenTestDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	unread := cache.NewRedisUnreadCounter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	log := logger.NewTestLogger(t)
	pub := &recordingPublisher{}
	rec := &memoryRecorder{}
	notifications := NewNotificationService(db, unread, pub, log)

	return &fixture{
		db:            db,
		redis:         mr,
		publisher:     pub,
		recorder:      rec,
		notifications: notifications,
		connections:   NewConnectionService(db, notifications, rec, log, 50),
		alice:         lib.SeedUser(t, db, "alice"),
		bob:           lib.SeedUser(t, db, "bob"),
		carol:         lib.SeedUser(t, db, "carol"),
	}
}

func (f *fixture) notificationsOf(t *testing.T, accountID uint) []models.Notification {
	t.Helper()
	list, err := f.notifications.List(context.Background(), accountID, 0)
	require.NoError(t, err)
	return list
}

func (f *fixture) unread(t *testing.T, accountID uint) int64 {
	t.Helper()
	n, err := f.notifications.UnreadCount(context.Background(), accountID)
	require.NoError(t, err)
	return n
}

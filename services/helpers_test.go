package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"meetup-engagement-system/models"
	"meetup-engagement-system/utils"
)

// testToday is "now" for every engine under test; events dated on or before it are past.
var testToday = time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "engagement.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection serializes transactions, so concurrent tests here check the outcome
	// (no duplicates, capacity held) but not the FOR UPDATE row lock, which SQLite ignores.
	// The lock path only runs against Postgres.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db            *gorm.DB
	store         *Store
	hub           *Hub
	profiles      *ProfileService
	friendships   *FriendshipService
	badges        *BadgeService
	gamification  *GamificationService
	events        *EventService
	registrations *RegistrationService
	leaderboard   *LeaderboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	store := NewStore(db, 10*time.Second, 5, nil)
	hub := NewHub(nil)
	badges := NewBadgeService(store, hub)
	if err := badges.SeedBadges(context.Background()); err != nil {
		t.Fatalf("seed badges: %v", err)
	}
	gamification := NewGamificationService(store, badges, DefaultCadenceDays)
	registrations := NewRegistrationService(store, gamification, 20, time.UTC)
	registrations.Now = func() time.Time { return testToday.Add(12 * time.Hour) }

	return &testEnv{
		db:            db,
		store:         store,
		hub:           hub,
		profiles:      NewProfileService(store),
		friendships:   NewFriendshipService(store, hub),
		badges:        badges,
		gamification:  gamification,
		events:        NewEventService(store, 20),
		registrations: registrations,
		leaderboard:   NewLeaderboardService(store, time.UTC),
	}
}

func (e *testEnv) createUser(t *testing.T, id, name string, vis models.Visibility) models.UserProfile {
	t.Helper()
	p := models.UserProfile{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  name,
		SearchName:   utils.SearchKey(name),
		FitnessLevel: models.FitnessBeginner,
		Visibility:   vis,
	}
	if err := e.db.Create(&p).Error; err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return p
}

func (e *testEnv) createEvent(t *testing.T, date time.Time, capacity int) models.Event {
	t.Helper()
	ev := models.Event{
		ID:       uuid.NewString(),
		Title:    "Morning run",
		Date:     date,
		Time:     "09:00",
		Capacity: capacity,
	}
	ev.Slug = utils.EventSlug(ev.Title, date) + "-" + ev.ID[:8]
	if err := e.db.Create(&ev).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func (e *testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	id, err := e.friendships.SendRequest(ctx, a, b)
	if err != nil {
		t.Fatalf("send request %s->%s: %v", a, b, err)
	}
	if _, err := e.friendships.AcceptRequest(ctx, id, b); err != nil {
		t.Fatalf("accept request %s: %v", id, err)
	}
}

func (e *testEnv) stats(t *testing.T, userID string) models.AttendanceStats {
	t.Helper()
	s, err := e.gamification.GetStats(context.Background(), userID)
	if err != nil {
		t.Fatalf("get stats %s: %v", userID, err)
	}
	return *s
}

func day(offset int) time.Time {
	return time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

// receive waits briefly for the next notification on sub.
func receive(t *testing.T, sub *Subscription) (models.NotificationEvent, bool) {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt, true
	case <-time.After(2 * time.Second):
		return models.NotificationEvent{}, false
	}
}

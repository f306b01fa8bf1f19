package services

import (
	"context"
	"testing"

	"meetup-engagement-system/models"
)

func badgeCount(t *testing.T, env *testEnv, userID, code string) int64 {
	t.Helper()
	var n int64
	err := env.db.Model(&models.UserBadge{}).
		Joins("JOIN badges ON badges.id = user_badges.badge_id").
		Where("user_badges.user_id = ? AND badges.code = ?", userID, code).
		Count(&n).Error
	if err != nil {
		t.Fatalf("count badges: %v", err)
	}
	return n
}

func TestFifthAttendanceAwardsRegularBadgeOnce(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)

	sub, err := env.hub.Subscribe(ctx, "alice")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	for i := 0; i < 5; i++ {
		ev := env.createEvent(t, day(7*i), 20)
		if _, err := env.registrations.Register(ctx, "alice", ev.ID, false); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		want := int64(0)
		if i == 4 {
			want = 1
		}
		if got := badgeCount(t, env, "alice", "REGULAR_5"); got != want {
			t.Fatalf("after attendance %d: REGULAR_5 count = %d, want %d", i+1, got, want)
		}
	}

	st := env.stats(t, "alice")
	awarded, err := env.badges.EvaluateBadges(ctx, "alice", st)
	if err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("re-evaluation awarded %d badges, want 0", len(awarded))
	}
	if got := badgeCount(t, env, "alice", "REGULAR_5"); got != 1 {
		t.Fatalf("REGULAR_5 count = %d, want 1", got)
	}

	// FIRST_EVENT, STREAK_3, REGULAR_5 and STREAK_5, one notification each.
	codes := map[string]bool{}
	for i := 0; i < 4; i++ {
		evt, ok := receive(t, sub)
		if !ok {
			t.Fatalf("got %d badge notifications, want 4", i)
		}
		if evt.Type != models.NotificationBadgeEarned || evt.Badge == nil {
			t.Fatalf("event = %+v, want badge_earned", evt)
		}
		codes[evt.Badge.Code] = true
	}
	for _, code := range []string{"FIRST_EVENT", "STREAK_3", "REGULAR_5", "STREAK_5"} {
		if !codes[code] {
			t.Fatalf("missing %s notification, got %v", code, codes)
		}
	}
	select {
	case evt := <-sub.Events():
		t.Fatalf("unexpected extra notification %+v", evt)
	default:
	}
}

func TestSeedBadgesIsIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	if err := env.badges.SeedBadges(context.Background()); err != nil {
		t.Fatalf("seed again: %v", err)
	}
	var n int64
	env.db.Model(&models.Badge{}).Count(&n)
	if n != int64(len(models.DefaultBadges)) {
		t.Fatalf("badges = %d, want %d", n, len(models.DefaultBadges))
	}
}

func TestReconcileBadgesConverges(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	env.createUser(t, "bob", "Bob", models.VisibilityPublic)

	// Counters written without evaluation, as if the award step had failed.
	env.db.Model(&models.UserProfile{}).Where("id = ?", "alice").
		Updates(map[string]any{"total_events_attended": 10, "current_streak": 1, "longest_streak": 10})

	n, err := env.badges.ReconcileBadges(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// FIRST_EVENT, REGULAR_5, REGULAR_10, LONGEST_10
	if n != 4 {
		t.Fatalf("awarded = %d, want 4", n)
	}
	if n, err := env.badges.ReconcileBadges(ctx); err != nil || n != 0 {
		t.Fatalf("second reconcile = %d, %v; want 0", n, err)
	}

	list, err := env.badges.ListBadges(ctx, "alice")
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	earned := 0
	for _, b := range list {
		if b.Earned {
			earned++
			if b.EarnedAt == nil {
				t.Fatalf("badge %s earned without timestamp", b.Code)
			}
		}
	}
	if len(list) != len(models.DefaultBadges) || earned != 4 {
		t.Fatalf("list = %d badges with %d earned, want %d and 4", len(list), earned, len(models.DefaultBadges))
	}
}

func TestBadgeRuleNeedsEveryThreshold(t *testing.T) {
	t.Parallel()
	b := models.Badge{Rule: map[string]int64{
		models.StatTotalEventsAttended: 5,
		models.StatCurrentStreak:       3,
	}}
	if b.Satisfied(models.AttendanceStats{TotalEventsAttended: 5, CurrentStreak: 2}) {
		t.Fatal("rule satisfied with streak below threshold")
	}
	if !b.Satisfied(models.AttendanceStats{TotalEventsAttended: 6, CurrentStreak: 3}) {
		t.Fatal("rule not satisfied when every threshold holds")
	}
	if (models.Badge{}).Satisfied(models.AttendanceStats{TotalEventsAttended: 100}) {
		t.Fatal("empty rule awarded")
	}
}

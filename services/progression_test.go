package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"meetup-engagement-system/models"
)

func TestNextStreak(t *testing.T) {
	t.Parallel()
	prior := day(0)
	tests := []struct {
		name    string
		current int64
		prior   *time.Time
		event   time.Time
		want    int64
	}{
		{"first attendance", 0, nil, day(0), 1},
		{"same day", 2, &prior, day(0), 3},
		{"one week later", 1, &prior, day(7), 2},
		{"eight days later", 4, &prior, day(8), 1},
		{"a month later", 3, &prior, day(30), 1},
		{"older event credited late", 3, &prior, day(-7), 3},
		{"older event with no streak", 0, &prior, day(-7), 1},
	}
	for _, tc := range tests {
		if got := nextStreak(tc.current, tc.prior, tc.event, 7); got != tc.want {
			t.Fatalf("%s: nextStreak = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestWeeklyAttendanceBuildsStreak(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)

	want := []int64{1, 2, 3}
	for i, offset := range []int{0, 7, 14} {
		ev := env.createEvent(t, day(offset), 20)
		if _, err := env.registrations.Register(ctx, "alice", ev.ID, false); err != nil {
			t.Fatalf("register day %d: %v", offset, err)
		}
		st := env.stats(t, "alice")
		if st.CurrentStreak != want[i] {
			t.Fatalf("day %d: current streak = %d, want %d", offset, st.CurrentStreak, want[i])
		}
		if st.TotalEventsAttended != int64(i+1) {
			t.Fatalf("day %d: total = %d, want %d", offset, st.TotalEventsAttended, i+1)
		}
	}
	if got := env.stats(t, "alice").LongestStreak; got != 3 {
		t.Fatalf("longest streak = %d, want 3", got)
	}
}

func TestLongGapResetsStreak(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)

	for _, offset := range []int{0, 30} {
		ev := env.createEvent(t, day(offset), 20)
		if _, err := env.registrations.Register(ctx, "alice", ev.ID, false); err != nil {
			t.Fatalf("register day %d: %v", offset, err)
		}
	}
	st := env.stats(t, "alice")
	if st.CurrentStreak != 1 || st.LongestStreak != 1 || st.TotalEventsAttended != 2 {
		t.Fatalf("stats = %+v, want streak 1, longest 1, total 2", st)
	}
}

func TestCancelledAttendanceDoesNotCarryStreak(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)

	first := env.createEvent(t, day(0), 20)
	reg, err := env.registrations.Register(ctx, "alice", first.ID, false)
	if err != nil {
		t.Fatalf("register day 0: %v", err)
	}
	if _, err := env.registrations.Cancel(ctx, reg.ID, "alice"); err != nil {
		t.Fatalf("cancel day 0: %v", err)
	}
	next := env.createEvent(t, day(7), 20)
	if _, err := env.registrations.Register(ctx, "alice", next.ID, false); err != nil {
		t.Fatalf("register day 7: %v", err)
	}
	st := env.stats(t, "alice")
	if st.CurrentStreak != 1 {
		t.Fatalf("current streak = %d, want 1", st.CurrentStreak)
	}
	if st.TotalEventsAttended != 2 {
		t.Fatalf("total = %d, want 2", st.TotalEventsAttended)
	}
}

func TestOnAttendanceConfirmedIsIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	ev := env.createEvent(t, day(0), 20)

	if _, err := env.registrations.Register(ctx, "alice", ev.ID, false); err != nil {
		t.Fatalf("register: %v", err)
	}
	st, err := env.gamification.OnAttendanceConfirmed(ctx, "alice", ev.ID, ev.Date)
	if err != nil {
		t.Fatalf("credit again: %v", err)
	}
	if st.TotalEventsAttended != 1 {
		t.Fatalf("total = %d, want 1", st.TotalEventsAttended)
	}
}

func TestConcurrentCreditsDoNotLoseUpdates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)

	// Register for future events so nothing is credited yet.
	var evs []models.Event
	for i := 0; i < 6; i++ {
		ev := env.createEvent(t, testToday.AddDate(0, 0, 7*(i+1)), 20)
		if _, err := env.registrations.Register(ctx, "alice", ev.ID, false); err != nil {
			t.Fatalf("register: %v", err)
		}
		evs = append(evs, ev)
	}

	var wg sync.WaitGroup
	for _, ev := range evs {
		wg.Add(1)
		go func(ev models.Event) {
			defer wg.Done()
			if _, err := env.gamification.OnAttendanceConfirmed(ctx, "alice", ev.ID, ev.Date); err != nil {
				t.Errorf("credit %s: %v", ev.ID, err)
			}
		}(ev)
	}
	wg.Wait()

	if got := env.stats(t, "alice").TotalEventsAttended; got != int64(len(evs)) {
		t.Fatalf("total = %d, want %d", got, len(evs))
	}
}

func TestCreditDueAttendanceCreditsOnce(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	env.createUser(t, "bob", "Bob", models.VisibilityPublic)
	ev := env.createEvent(t, testToday.AddDate(0, 0, 2), 20)
	later := env.createEvent(t, testToday.AddDate(0, 0, 9), 20)

	for _, id := range []string{"alice", "bob"} {
		if _, err := env.registrations.Register(ctx, id, ev.ID, false); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	if _, err := env.registrations.Register(ctx, "alice", later.ID, false); err != nil {
		t.Fatalf("register later: %v", err)
	}
	if got := env.stats(t, "alice").TotalEventsAttended; got != 0 {
		t.Fatalf("total before event day = %d, want 0", got)
	}

	n, err := env.gamification.CreditDueAttendance(ctx, ev.Date)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if n != 2 {
		t.Fatalf("credited = %d, want 2", n)
	}
	n, err = env.gamification.CreditDueAttendance(ctx, ev.Date)
	if err != nil {
		t.Fatalf("credit again: %v", err)
	}
	if n != 0 {
		t.Fatalf("credited on rerun = %d, want 0", n)
	}
	if got := env.stats(t, "alice").TotalEventsAttended; got != 1 {
		t.Fatalf("total after credit = %d, want 1", got)
	}
}

func TestCreditSkipsCancelledRegistrations(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	ev := env.createEvent(t, testToday.AddDate(0, 0, 1), 20)

	reg, err := env.registrations.Register(ctx, "alice", ev.ID, false)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := env.registrations.Cancel(ctx, reg.ID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	n, err := env.gamification.CreditDueAttendance(ctx, ev.Date)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if n != 0 {
		t.Fatalf("credited = %d, want 0", n)
	}
}

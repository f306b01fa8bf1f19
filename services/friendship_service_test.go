package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"meetup-engagement-system/models"
)

func TestSendRequestThenReverseIsDuplicate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	env.createUser(t, "bob", "Bob", models.VisibilityPublic)

	if _, err := env.friendships.SendRequest(ctx, "alice", "bob"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err := env.friendships.SendRequest(ctx, "bob", "alice")
	if !errors.Is(err, ErrDuplicateRelationship) {
		t.Fatalf("reverse request error = %v, want %v", err, ErrDuplicateRelationship)
	}
	_, err = env.friendships.SendRequest(ctx, "alice", "bob")
	if !errors.Is(err, ErrDuplicateRelationship) {
		t.Fatalf("repeat request error = %v, want %v", err, ErrDuplicateRelationship)
	}
}

func TestSendRequestRejectsSelfAndUnknownUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)

	if _, err := env.friendships.SendRequest(ctx, "alice", "alice"); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("self request error = %v, want %v", err, ErrSelfReference)
	}
	if _, err := env.friendships.SendRequest(ctx, "alice", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown recipient error = %v, want %v", err, ErrNotFound)
	}
}

func TestConcurrentCrossRequestsCreateOneFriendship(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	env.createUser(t, "bob", "Bob", models.VisibilityPublic)

	pairs := [][2]string{{"alice", "bob"}, {"bob", "alice"}, {"alice", "bob"}, {"bob", "alice"}}
	errs := make([]error, len(pairs))
	var wg sync.WaitGroup
	for i, p := range pairs {
		wg.Add(1)
		go func(i int, from, to string) {
			defer wg.Done()
			_, errs[i] = env.friendships.SendRequest(context.Background(), from, to)
		}(i, p[0], p[1])
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateRelationship):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("successful requests = %d, want 1", ok)
	}
	var rows int64
	env.db.Model(&models.Friendship{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("friendship rows = %d, want 1", rows)
	}
}

func TestAcceptRequestOnlyByRecipient(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	env.createUser(t, "bob", "Bob", models.VisibilityPublic)
	env.createUser(t, "carol", "Carol", models.VisibilityPublic)

	id, err := env.friendships.SendRequest(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := env.friendships.AcceptRequest(ctx, id, "alice"); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("accept by requester error = %v, want %v", err, ErrAuthorization)
	}
	if _, err := env.friendships.AcceptRequest(ctx, id, "carol"); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("accept by stranger error = %v, want %v", err, ErrAuthorization)
	}

	f, err := env.friendships.AcceptRequest(ctx, id, "bob")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if f.Status != models.FriendshipAccepted || f.AcceptedAt == nil {
		t.Fatalf("friendship = %+v, want accepted", f)
	}
	if _, err := env.friendships.AcceptRequest(ctx, id, "bob"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second accept error = %v, want %v", err, ErrInvalidState)
	}
	if _, err := env.friendships.AcceptRequest(ctx, "missing", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("accept unknown error = %v, want %v", err, ErrNotFound)
	}

	friends, err := env.friendships.AreFriends(ctx, "bob", "alice")
	if err != nil || !friends {
		t.Fatalf("AreFriends = %v, %v; want true", friends, err)
	}
}

func TestRemoveFriendshipAllowsNewRequest(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	env.createUser(t, "bob", "Bob", models.VisibilityPublic)
	env.createUser(t, "carol", "Carol", models.VisibilityPublic)

	id, err := env.friendships.SendRequest(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := env.friendships.RemoveFriendship(ctx, id, "carol"); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("remove by stranger error = %v, want %v", err, ErrAuthorization)
	}
	// Declining is a delete by the recipient.
	if err := env.friendships.RemoveFriendship(ctx, id, "bob"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := env.friendships.RemoveFriendship(ctx, id, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove error = %v, want %v", err, ErrNotFound)
	}
	if _, err := env.friendships.SendRequest(ctx, "bob", "alice"); err != nil {
		t.Fatalf("request after decline: %v", err)
	}
}

func TestFriendListsAndPendingRequests(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	env.createUser(t, "bob", "Bob", models.VisibilityPublic)
	env.createUser(t, "carol", "Carol", models.VisibilityPrivate)

	env.befriend(t, "alice", "bob")
	if _, err := env.friendships.SendRequest(ctx, "carol", "alice"); err != nil {
		t.Fatalf("send: %v", err)
	}

	friends, err := env.friendships.ListFriends(ctx, "alice")
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friends) != 1 || friends[0].ID != "bob" {
		t.Fatalf("friends = %+v, want [bob]", friends)
	}

	incoming, err := env.friendships.ListIncomingRequests(ctx, "alice")
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if len(incoming) != 1 || incoming[0].User.ID != "carol" {
		t.Fatalf("incoming = %+v, want request from carol", incoming)
	}
	outgoing, err := env.friendships.ListOutgoingRequests(ctx, "carol")
	if err != nil {
		t.Fatalf("outgoing: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].User.ID != "alice" {
		t.Fatalf("outgoing = %+v, want request to alice", outgoing)
	}
}

func TestSendRequestNotifiesRecipient(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice", models.VisibilityPublic)
	env.createUser(t, "bob", "Bob", models.VisibilityPublic)

	sub, err := env.hub.Subscribe(ctx, "bob")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	id, err := env.friendships.SendRequest(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	evt, ok := receive(t, sub)
	if !ok {
		t.Fatal("no notification received")
	}
	if evt.Type != models.NotificationFriendRequestReceived {
		t.Fatalf("type = %q, want %q", evt.Type, models.NotificationFriendRequestReceived)
	}
	if evt.FriendshipID != id || evt.From == nil || evt.From.ID != "alice" {
		t.Fatalf("event = %+v, want request %s from alice", evt, id)
	}
}

func TestFriendshipPairsWithSeparatorInIDs(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b|c", "a|b", "c"} {
		env.createUser(t, id, "Runner", models.VisibilityPrivate)
	}
	env.befriend(t, "a", "b|c")

	ok, err := env.friendships.AreFriends(ctx, "a|b", "c")
	if err != nil {
		t.Fatalf("are friends: %v", err)
	}
	if ok {
		t.Fatalf("AreFriends(a|b, c) = true, want false")
	}
	if _, err := env.profiles.GetProfile(ctx, "a|b", "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("private profile error = %v, want %v", err, ErrNotFound)
	}
	if _, err := env.friendships.SendRequest(ctx, "a|b", "c"); err != nil {
		t.Fatalf("send request a|b -> c: %v", err)
	}
	if ok, _ := env.friendships.AreFriends(ctx, "b|c", "a"); !ok {
		t.Fatalf("AreFriends(b|c, a) = false, want true")
	}
}

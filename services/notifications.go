package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"meetup-engagement-system/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broker is the Notification Channel: per-user, best-effort, at-most-once delivery to
// live sessions. Publish never blocks and never reports failure; events published
// while nobody is subscribed are dropped.
type Broker interface {
	Publish(ctx context.Context, userID string, evt models.NotificationEvent)
	Subscribe(ctx context.Context, userID string) (*Subscription, error)
}

const subscriptionBuffer = 16

// Subscription is one session's live stream. It has a single consumer.
type Subscription struct {
	UserID string

	events chan models.NotificationEvent
	once   sync.Once
	done   chan struct{}
	close  func()
}

func newSubscription(userID string) *Subscription {
	return &Subscription{
		UserID: userID,
		events: make(chan models.NotificationEvent, subscriptionBuffer),
		done:   make(chan struct{}),
	}
}

// Events yields notifications until Close is called or the broker goes away.
func (s *Subscription) Events() <-chan models.NotificationEvent {
	return s.events
}

// Done is closed once the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.close != nil {
			s.close()
		}
	})
}

// offer hands evt to the consumer without blocking; a full buffer drops it.
func (s *Subscription) offer(evt models.NotificationEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- evt:
		return true
	default:
		return false
	}
}

// Hub is the in-process Broker used by single-instance deployments and tests.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), log: log.Named("hub")}
}

func (h *Hub) Subscribe(_ context.Context, userID string) (*Subscription, error) {
	sub := newSubscription(userID)
	sub.close = func() { h.remove(sub) }

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()
	return sub, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.subs[sub.UserID]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.UserID)
		}
	}
}

func (h *Hub) Publish(_ context.Context, userID string, evt models.NotificationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		if !sub.offer(evt) {
			h.log.Debug("notification dropped", zap.String("user_id", userID), zap.String("type", string(evt.Type)))
		}
	}
}

// Subscribers returns the number of live sessions of userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// RedisBroker fans notifications out across instances through Redis PUBLISH/SUBSCRIBE,
// which has the same at-most-once, no-persistence contract.
type RedisBroker struct {
	rdb            *redis.Client
	log            *zap.Logger
	publishTimeout time.Duration
}

func NewRedisBroker(rdb *redis.Client, log *zap.Logger) *RedisBroker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroker{rdb: rdb, log: log.Named("redis_broker"), publishTimeout: 2 * time.Second}
}

func notificationChannel(userID string) string {
	return "notifications:" + userID
}

// Publish sends in the background so commits never wait on Redis.
func (b *RedisBroker) Publish(_ context.Context, userID string, evt models.NotificationEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		b.log.Debug("notification encode failed", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
		defer cancel()
		if err := b.rdb.Publish(ctx, notificationChannel(userID), payload).Err(); err != nil {
			b.log.Debug("notification publish failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	ps := b.rdb.Subscribe(context.Background(), notificationChannel(userID))
	// Wait for the confirmation so events published right after Subscribe returns are seen.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := newSubscription(userID)
	sub.close = func() { _ = ps.Close() }

	go func() {
		msgs := ps.Channel()
		for {
			select {
			case <-sub.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					sub.Close()
					return
				}
				var evt models.NotificationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.log.Debug("notification decode failed", zap.Error(err))
					continue
				}
				sub.offer(evt)
			}
		}
	}()
	return sub, nil
}

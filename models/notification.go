package models

import (
	"time"
)

// NotificationType indicates which payload a NotificationEvent carries
type NotificationType string

const (
	NotificationFriendRequestReceived NotificationType = "friend_request_received"
	NotificationBadgeEarned           NotificationType = "badge_earned"
)

// NotificationEvent is pushed to a user's live sessions. Never persisted.
type NotificationEvent struct {
	Type         NotificationType `json:"type"`
	From         *ProfileSummary  `json:"from,omitempty"`
	FriendshipID string           `json:"friendship_id,omitempty"`
	Badge        *Badge           `json:"badge,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

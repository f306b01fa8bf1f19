package models

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship is a directed request that becomes a mutual friendship once accepted.
// Rejected and removed friendships are deleted, so every row is active.
type Friendship struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	RequesterID string           `gorm:"size:64;not null;index" json:"requester_id"`
	RecipientID string           `gorm:"size:64;not null;index" json:"recipient_id"`
	UserLow     string           `gorm:"size:64;not null;uniqueIndex:idx_friendship_pair" json:"-"`
	UserHigh    string           `gorm:"size:64;not null;uniqueIndex:idx_friendship_pair" json:"-"`
	Status      FriendshipStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
}

// OrderedPair orders the two ids so (a,b) and (b,a) map to the same row.
func OrderedPair(a, b string) (low, high string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Other returns the counterpart of userID in the friendship.
func (f Friendship) Other(userID string) string {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}

// FriendRequest is a pending friendship together with the counterpart's profile.
type FriendRequest struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	User      ProfileSummary `json:"user"`
}

package models

import (
	"time"
)

// Badge: static catalogue entry, seeded from DefaultBadges.
type Badge struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	Code        string           `gorm:"uniqueIndex;size:64;not null" json:"code"` // e.g., "FIRST_EVENT", "STREAK_3"
	Name        string           `gorm:"not null" json:"name"`
	Description string           `json:"description"`
	IconRef     string           `gorm:"type:text" json:"icon_ref"`
	Rule        map[string]int64 `gorm:"serializer:json" json:"rule"` // e.g., {"total_events_attended": 5}
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// Satisfied reports whether every threshold of the rule holds for stats.
// Unknown keys never hold, and an empty rule never awards.
func (b Badge) Satisfied(stats AttendanceStats) bool {
	if len(b.Rule) == 0 {
		return false
	}
	for key, required := range b.Rule {
		got, ok := stats.Value(key)
		if !ok || got < required {
			return false
		}
	}
	return true
}

// UserBadge: awarded instance, append-only.
type UserBadge struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	UserID   string    `gorm:"size:64;not null;uniqueIndex:idx_user_badge" json:"user_id"`
	BadgeID  string    `gorm:"size:36;not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	EarnedAt time.Time `gorm:"not null" json:"earned_at"`

	Badge Badge `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

// BadgeStatus is one catalogue entry as seen by a given user.
type BadgeStatus struct {
	Badge
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// DefaultBadges is the catalogue seeded at boot.
var DefaultBadges = []Badge{
	{
		Code:        "FIRST_EVENT",
		Name:        "Primer Entreno",
		Description: "Attended your first community event",
		IconRef:     "🏁",
		Rule:        map[string]int64{StatTotalEventsAttended: 1},
	},
	{
		Code:        "REGULAR_5",
		Name:        "Habitual",
		Description: "Attended 5 events",
		IconRef:     "💪",
		Rule:        map[string]int64{StatTotalEventsAttended: 5},
	},
	{
		Code:        "REGULAR_10",
		Name:        "Veterano",
		Description: "Attended 10 events",
		IconRef:     "🏅",
		Rule:        map[string]int64{StatTotalEventsAttended: 10},
	},
	{
		Code:        "REGULAR_25",
		Name:        "Leyenda",
		Description: "Attended 25 events",
		IconRef:     "🏆",
		Rule:        map[string]int64{StatTotalEventsAttended: 25},
	},
	{
		Code:        "STREAK_3",
		Name:        "En Racha",
		Description: "Three weeks in a row",
		IconRef:     "🔥",
		Rule:        map[string]int64{StatCurrentStreak: 3},
	},
	{
		Code:        "STREAK_5",
		Name:        "Imparable",
		Description: "Five weeks in a row",
		IconRef:     "⚡",
		Rule:        map[string]int64{StatCurrentStreak: 5},
	},
	{
		Code:        "LONGEST_10",
		Name:        "Constancia",
		Description: "Reached a ten week streak at some point",
		IconRef:     "📅",
		Rule:        map[string]int64{StatLongestStreak: 10},
	},
}

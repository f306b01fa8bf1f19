package models

import (
	"time"
)

type Visibility string

const (
	VisibilityPublic      Visibility = "public"
	VisibilityMembersOnly Visibility = "members_only"
	VisibilityPrivate     Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityMembersOnly, VisibilityPrivate:
		return true
	}
	return false
}

type FitnessLevel string

const (
	FitnessBeginner     FitnessLevel = "beginner"
	FitnessIntermediate FitnessLevel = "intermediate"
	FitnessAdvanced     FitnessLevel = "advanced"
)

func (f FitnessLevel) Valid() bool {
	switch f {
	case FitnessBeginner, FitnessIntermediate, FitnessAdvanced:
		return true
	}
	return false
}

// UserProfile is the Profile Store row. ID is the identity gateway's user id.
// Counters are written only by the gamification engine.
type UserProfile struct {
	ID           string       `gorm:"primaryKey;size:64" json:"id"`
	Email        string       `gorm:"size:255" json:"email,omitempty"`
	DisplayName  string       `gorm:"size:80;not null" json:"display_name"`
	SearchName   string       `gorm:"type:text;index" json:"-"`
	Bio          string       `gorm:"type:text" json:"bio"`
	FitnessLevel FitnessLevel `gorm:"type:varchar(16);not null;default:'beginner'" json:"fitness_level"`
	Visibility   Visibility   `gorm:"type:varchar(16);not null;default:'members_only'" json:"visibility"`
	PhotoURL     *string      `json:"photo_url,omitempty"`

	AttendanceStats

	// Bumped on every counter write; guards against lost updates.
	Version int64 `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ProfileSummary is the public projection used in lists (search, friends, attendees).
type ProfileSummary struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	FitnessLevel FitnessLevel `json:"fitness_level"`
	PhotoURL     *string      `json:"photo_url,omitempty"`
}

func (p UserProfile) Summary() ProfileSummary {
	return ProfileSummary{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		FitnessLevel: p.FitnessLevel,
		PhotoURL:     p.PhotoURL,
	}
}

package models

import "time"

type RegistrationStatus string

const (
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Registration = sign-up of one user to one event. At most one row per (user, event);
// a cancelled row is re-confirmed in place when the user signs up again.
type Registration struct {
	ID          string             `gorm:"primaryKey;size:36" json:"id"`
	UserID      string             `gorm:"size:64;not null;uniqueIndex:idx_registration_user_event" json:"user_id"`
	EventID     string             `gorm:"size:36;not null;uniqueIndex:idx_registration_user_event;index" json:"event_id"`
	LunchOption bool               `gorm:"not null;default:false" json:"lunch_option"`
	Status      RegistrationStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	CancelledAt *time.Time         `json:"cancelled_at,omitempty"`

	// Set once, when the attendance has been counted into the user's stats.
	CreditedAt *time.Time `gorm:"index" json:"credited_at,omitempty"`

	Event *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

// Attendee is a confirmed registration as shown on an event page.
type Attendee struct {
	ProfileSummary
	LunchOption bool `json:"lunch_option"`
	IsFriend    bool `json:"is_friend"`
	IsSelf      bool `json:"is_self"`
}

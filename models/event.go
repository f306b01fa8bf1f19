package models

import (
	"time"
)

// Event is a scheduled community meetup. Administrative edits happen outside the core.
type Event struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Slug        string    `json:"slug" gorm:"size:160;uniqueIndex;not null"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	Date        time.Time `json:"date" gorm:"not null;index"` // civil day, stored as UTC midnight
	Time        string    `json:"time" gorm:"size:5"`         // "HH:MM" local to the community
	Location    string    `json:"location"`
	Price       float64   `json:"price" gorm:"default:0"`
	Capacity    int       `json:"capacity" gorm:"not null;default:20"`
	CoverImage  string    `json:"cover_image" gorm:"type:text"`
	Images      []string  `json:"images" gorm:"serializer:json"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated fields (not stored in DB)
	ConfirmedCount int64 `json:"confirmed_count" gorm:"-"`
	AvailableSlots int64 `json:"available_slots" gorm:"-"`
}

// CivilDate truncates t to its calendar day in loc and returns that day as UTC midnight,
// the representation used for Event.Date.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

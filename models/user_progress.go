package models

// AttendanceStats tracks gamified progression for each user (denormalized for leaderboard reads).
type AttendanceStats struct {
	TotalEventsAttended int64 `json:"total_events_attended" gorm:"not null;default:0;index"`
	CurrentStreak       int64 `json:"current_streak" gorm:"not null;default:0"`
	LongestStreak       int64 `json:"longest_streak" gorm:"not null;default:0"`
}

// Stat keys usable in badge rules.
const (
	StatTotalEventsAttended = "total_events_attended"
	StatCurrentStreak       = "current_streak"
	StatLongestStreak       = "longest_streak"
)

// Value returns the counter named by key and whether the key is known.
func (s AttendanceStats) Value(key string) (int64, bool) {
	switch key {
	case StatTotalEventsAttended:
		return s.TotalEventsAttended, true
	case StatCurrentStreak:
		return s.CurrentStreak, true
	case StatLongestStreak:
		return s.LongestStreak, true
	}
	return 0, false
}

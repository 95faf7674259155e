package models

import "time"

type Event struct {
	ID          int        `gorm:"primaryKey" json:"id"`
	PostID      int        `gorm:"uniqueIndex;not null" json:"post_id"`
	StartDate   time.Time  `gorm:"index;not null" json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Duration    int        `json:"duration"` // minutes
	Location    string     `gorm:"not null" json:"location"`
	OrganizerID int        `gorm:"index;not null" json:"organizer_id"`
	Organizer   *User      `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`

	Attendees []EventAttendee `gorm:"foreignKey:EventID" json:"attendees,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventAttendee is one row per (event, user); the composite key makes a
// second attend a constraint violation.
type EventAttendee struct {
	EventID   int       `gorm:"primaryKey" json:"event_id"`
	UserID    int       `gorm:"primaryKey" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type EventInput struct {
	StartDate time.Time  `json:"start_date" binding:"required"`
	EndDate   *time.Time `json:"end_date"`
	Duration  int        `json:"duration" binding:"omitempty,min=0"`
	Location  string     `json:"location" binding:"required"`
}

// ValidRange reports whether the end date, if set, is not before the start.
func (e EventInput) ValidRange() bool {
	return e.EndDate == nil || !e.EndDate.Before(e.StartDate)
}

type UpdateEventRequest struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Duration  *int       `json:"duration" binding:"omitempty,min=0"`
	Location  *string    `json:"location" binding:"omitempty,min=1"`
}

type ListEventsQuery struct {
	From *time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To   *time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
	Page
}

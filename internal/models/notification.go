package models

import "time"

type Notification struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	UserID    int       `gorm:"index;not null" json:"user_id"`
	Locality  string    `gorm:"not null" json:"locality"`
	PostID    *int      `gorm:"index" json:"post_id,omitempty"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type ListNotificationsQuery struct {
	Unread bool `form:"unread"`
	Page
}

// All lists every model managed by migrations.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Post{},
		&Event{},
		&EventAttendee{},
		&Poll{},
		&PollOption{},
		&PollVote{},
		&Petition{},
		&PetitionSignature{},
		&Discussion{},
		&Notification{},
	}
}

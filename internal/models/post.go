package models

import (
	"strings"
	"time"
)

type PostType string

const (
	PostGeneral      PostType = "general"
	PostEvent        PostType = "event"
	PostPoll         PostType = "poll"
	PostPetition     PostType = "petition"
	PostAnnouncement PostType = "announcement"
)

func (t PostType) Valid() bool {
	switch t {
	case PostGeneral, PostEvent, PostPoll, PostPetition, PostAnnouncement:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Post is the base content entity. Event, poll and petition posts carry a
// back-linked sub-entity created in the same transaction as the post.
type Post struct {
	ID          int      `gorm:"primaryKey" json:"id"`
	Type        PostType `gorm:"type:varchar(20);not null;index" json:"type"`
	Title       string   `gorm:"not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	Summary     *string  `gorm:"type:text" json:"summary,omitempty"`
	Locality    string   `gorm:"index;not null" json:"locality"`
	Priority    Priority `gorm:"type:varchar(10);not null;default:medium" json:"priority"`
	CreatedBy   int      `gorm:"index;not null" json:"created_by"`
	Creator     *User    `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`

	EventID    *int      `json:"event_id,omitempty"`
	Event      *Event    `gorm:"foreignKey:EventID" json:"event,omitempty"`
	PollID     *int      `json:"poll_id,omitempty"`
	Poll       *Poll     `gorm:"foreignKey:PollID" json:"poll,omitempty"`
	PetitionID *int      `json:"petition_id,omitempty"`
	Petition   *Petition `gorm:"foreignKey:PetitionID" json:"petition,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notifies reports whether creating the post should alert the locality.
func (p *Post) Notifies() bool {
	return p.Type != PostGeneral || p.Priority == PriorityHigh
}

type CreatePostRequest struct {
	Type        PostType       `json:"type" binding:"required,post_type"`
	Title       string         `json:"title" binding:"required,max=200"`
	Description string         `json:"description" binding:"required"`
	Priority    Priority       `json:"priority" binding:"omitempty,priority"`
	Event       *EventInput    `json:"event"`
	Poll        *PollInput     `json:"poll"`
	Petition    *PetitionInput `json:"petition"`
}

// Normalize trims the free-text fields of the post and its sub-entity.
// Binding validation sees the raw input, so emptiness is checked after this.
func (r *CreatePostRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if r.Event != nil {
		r.Event.Location = strings.TrimSpace(r.Event.Location)
	}
	if r.Poll != nil {
		r.Poll.Normalize()
	}
	if r.Petition != nil {
		r.Petition.Target = strings.TrimSpace(r.Petition.Target)
	}
}

type UpdatePostRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string   `json:"description"`
	Priority    *Priority `json:"priority" binding:"omitempty,priority"`
}

type ListPostsQuery struct {
	Type     PostType `form:"type" binding:"omitempty,post_type"`
	Priority Priority `form:"priority" binding:"omitempty,priority"`
	Page
}

// Page is skip/limit pagination shared by list endpoints.
type Page struct {
	Skip  int `form:"skip" binding:"omitempty,min=0"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

const DefaultPageLimit = 20

// Normalize fills in the default limit.
func (p Page) Normalize() Page {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	return p
}

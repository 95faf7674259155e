package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether the role may moderate content in its locality.
func (r Role) Privileged() bool {
	return r == RoleModerator || r == RoleAdmin
}

type User struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;default:user" json:"role"`
	Locality string `gorm:"index;not null" json:"locality"`
	Phone    string `json:"-"` // E.164, used only for SMS alerts

	Points             int `gorm:"not null;default:0" json:"points"`
	EventsHosted       int `gorm:"not null;default:0" json:"events_hosted"`
	PollsVoted         int `gorm:"not null;default:0" json:"polls_voted"`
	DiscussionsStarted int `gorm:"not null;default:0" json:"discussions_started"`
	PetitionsCreated   int `gorm:"not null;default:0" json:"petitions_created"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stat names a per-user counter column.
type Stat string

const (
	StatEventsHosted       Stat = "events_hosted"
	StatPollsVoted         Stat = "polls_voted"
	StatDiscussionsStarted Stat = "discussions_started"
	StatPetitionsCreated   Stat = "petitions_created"
)

// Points awarded per action.
const (
	PointsPost       = 5
	PointsEvent      = 10
	PointsPetition   = 10
	PointsDiscussion = 2
	PointsVote       = 1
	PointsSignature  = 1
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Locality string `json:"locality" binding:"required,max=100"`
	Phone    string `json:"phone" binding:"omitempty,e164"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateRoleRequest struct {
	Role Role `json:"role" binding:"required,role"`
}

type AuthResponse struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}

package models

import "time"

type Petition struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	PostID     int       `gorm:"uniqueIndex;not null" json:"post_id"`
	Target     string    `gorm:"not null" json:"target"`
	Goal       int       `gorm:"not null" json:"goal"`
	Signatures int       `gorm:"not null;default:0" json:"signatures"`
	Poll       *Poll     `gorm:"foreignKey:PetitionID" json:"poll,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PetitionSignature is one supporter; one per (petition, user).
type PetitionSignature struct {
	PetitionID int       `gorm:"primaryKey" json:"petition_id"`
	UserID     int       `gorm:"primaryKey" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaxPetitionGoal bounds goals so that milestone arithmetic cannot overflow.
const MaxPetitionGoal = 10_000_000

// Milestones are the goal percentages that alert the locality.
var Milestones = []int{50, 75, 100}

// Milestone returns the percentage milestone that signatures lands on
// exactly, or 0. A goal that does not divide evenly can skip a milestone.
func Milestone(signatures, goal int) int {
	if goal <= 0 || goal > MaxPetitionGoal || signatures <= 0 || signatures > goal {
		return 0
	}
	for _, pct := range Milestones {
		if signatures*100 == goal*pct {
			return pct
		}
	}
	return 0
}

// Percent is the signature count as a percentage of the goal, capped at 100.
func (p *Petition) Percent() float64 {
	if p.Goal <= 0 {
		return 0
	}
	pct := float64(p.Signatures) * 100 / float64(p.Goal)
	if pct > 100 {
		return 100
	}
	return pct
}

type PetitionInput struct {
	Target   string `json:"target" binding:"required,max=200"`
	Goal     int    `json:"goal" binding:"required,gt=0,max=10000000"`
	WithPoll bool   `json:"with_poll"`
}

type PetitionResult struct {
	Petition
	Progress  float64 `json:"progress"`
	HasSigned bool    `json:"has_signed"`
}

type SignResult struct {
	Signatures int `json:"signatures"`
	Milestone  int `json:"milestone,omitempty"`
}

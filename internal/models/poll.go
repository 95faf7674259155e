package models

import (
	"strings"
	"time"
)

// Poll belongs to a poll post, or to a petition as its companion Yes/No poll.
type Poll struct {
	ID         int          `gorm:"primaryKey" json:"id"`
	PostID     int          `gorm:"index;not null" json:"post_id"`
	PetitionID *int         `gorm:"index" json:"petition_id,omitempty"`
	Question   string       `json:"question"`
	Options    []PollOption `gorm:"foreignKey:PollID" json:"options"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// PollOption is one entry of the ordered tally.
type PollOption struct {
	ID       int    `gorm:"primaryKey" json:"-"`
	PollID   int    `gorm:"uniqueIndex:idx_poll_option_label;not null" json:"-"`
	Label    string `gorm:"uniqueIndex:idx_poll_option_label;not null" json:"label"`
	Position int    `gorm:"not null" json:"-"`
	Votes    int    `gorm:"not null;default:0" json:"votes"`
}

// PollVote records who voted; one per (poll, user).
type PollVote struct {
	PollID    int       `gorm:"primaryKey" json:"poll_id"`
	UserID    int       `gorm:"primaryKey" json:"user_id"`
	OptionID  int       `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// CompanionOptions are the options of a petition's companion poll.
var CompanionOptions = []string{"Yes", "No"}

// Total sums the tally.
func (p *Poll) Total() int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}

// Option finds an option by label.
func (p *Poll) Option(label string) (*PollOption, bool) {
	for i := range p.Options {
		if p.Options[i].Label == label {
			return &p.Options[i], true
		}
	}
	return nil, false
}

type PollInput struct {
	Question string   `json:"question" binding:"max=300"`
	Options  []string `json:"options" binding:"required,min=2,max=10,unique,dive,required,max=100"`
}

// Normalize trims the question and every option label.
func (p *PollInput) Normalize() {
	p.Question = strings.TrimSpace(p.Question)
	for i := range p.Options {
		p.Options[i] = strings.TrimSpace(p.Options[i])
	}
}

// Problem reports why the normalized options cannot make a poll, or "".
func (p *PollInput) Problem() string {
	seen := make(map[string]struct{}, len(p.Options))
	for _, label := range p.Options {
		if label == "" {
			return "Poll options cannot be empty"
		}
		if _, dup := seen[label]; dup {
			return "Poll options must be unique"
		}
		seen[label] = struct{}{}
	}
	return ""
}

type VoteRequest struct {
	Option string `json:"option" binding:"required"`
}

type PollResult struct {
	Poll
	TotalVotes int  `json:"total_votes"`
	HasVoted   bool `json:"has_voted"`
}

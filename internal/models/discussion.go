package models

import "time"

// DeletedPlaceholder replaces the content of a soft-deleted discussion.
const DeletedPlaceholder = "[This comment has been deleted]"

// Discussion is a comment on a post. Replies point at a top-level parent;
// threading is one level deep.
type Discussion struct {
	ID        int          `gorm:"primaryKey" json:"id"`
	PostID    int          `gorm:"index;not null" json:"post_id"`
	Content   string       `gorm:"type:text;not null" json:"content"`
	CreatedBy int          `gorm:"index;not null" json:"created_by"`
	Creator   *User        `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	ParentID  *int         `gorm:"index" json:"parent_id,omitempty"`
	IsDeleted bool         `gorm:"not null;default:false" json:"is_deleted"`
	Replies   []Discussion `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type CreateDiscussionRequest struct {
	Content  string `json:"content" binding:"required,max=5000"`
	ParentID *int   `json:"parent_id" binding:"omitempty,gt=0"`
}

type UpdateDiscussionRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

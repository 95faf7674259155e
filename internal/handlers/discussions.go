package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

type DiscussionHandler struct {
	base
}

func discussionResource(d *models.Discussion, post *models.Post) authz.Resource {
	return authz.Resource{Kind: authz.KindDiscussion, OwnerID: d.CreatedBy, Locality: post.Locality}
}

// GetDiscussions returns the top-level discussions of a post, oldest first,
// each with its replies
func (h *DiscussionHandler) GetDiscussions(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var post models.Post
	if !h.find(c, h.db.WithContext(ctx), &post, postID, "Post") {
		return
	}
	res := authz.Resource{Kind: authz.KindDiscussion, Locality: post.Locality}
	if !h.authorize(c, user, res, authz.ActRead) {
		return
	}

	discussions := []models.Discussion{}
	if err := h.db.WithContext(ctx).
		Where("post_id = ? AND parent_id IS NULL", post.ID).
		Preload("Creator").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at").Order("id")
		}).
		Preload("Replies.Creator").
		Order("created_at").
		Order("id").
		Find(&discussions).Error; err != nil {
		h.internalError(c, err, "Failed to fetch discussions")
		return
	}

	c.JSON(http.StatusOK, discussions)
}

// CreateDiscussion starts a discussion on a post, or replies to a top-level
// one
func (h *DiscussionHandler) CreateDiscussion(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.CreateDiscussionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content cannot be empty"})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var post models.Post
	if !h.find(c, h.db.WithContext(ctx), &post, postID, "Post") {
		return
	}
	res := authz.Resource{Kind: authz.KindDiscussion, Locality: post.Locality}
	if !h.authorize(c, user, res, authz.ActCreate) {
		return
	}

	if input.ParentID != nil {
		var parent models.Discussion
		if !h.find(c, h.db.WithContext(ctx), &parent, *input.ParentID, "Parent discussion") {
			return
		}
		if parent.PostID != post.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parent discussion belongs to a different post"})
			return
		}
		if parent.ParentID != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Replies cannot be nested"})
			return
		}
	}

	discussion := models.Discussion{
		PostID:    post.ID,
		Content:   content,
		CreatedBy: user.ID,
		ParentID:  input.ParentID,
	}
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&discussion).Error; err != nil {
			return err
		}
		if discussion.ParentID != nil {
			return nil
		}
		return award(tx, user.ID, models.PointsDiscussion, models.StatDiscussionsStarted)
	})
	if err != nil {
		h.internalError(c, err, "Failed to create discussion")
		return
	}
	h.metrics.Actions.WithLabelValues("discussion").Inc()

	discussion.Creator = user
	c.JSON(http.StatusCreated, discussion)
}

// UpdateDiscussion edits a discussion (creator only)
func (h *DiscussionHandler) UpdateDiscussion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.UpdateDiscussionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content cannot be empty"})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var discussion models.Discussion
	if !h.find(c, h.db.WithContext(ctx), &discussion, id, "Discussion") {
		return
	}
	var post models.Post
	if !h.find(c, h.db.WithContext(ctx), &post, discussion.PostID, "Post") {
		return
	}
	if !h.authorize(c, user, discussionResource(&discussion, &post), authz.ActUpdate) {
		return
	}
	if discussion.IsDeleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot edit a deleted discussion"})
		return
	}

	if err := h.db.WithContext(ctx).Model(&discussion).Update("content", content).Error; err != nil {
		h.internalError(c, err, "Failed to update discussion")
		return
	}
	discussion.Content = content

	c.JSON(http.StatusOK, discussion)
}

// DeleteDiscussion removes a discussion (creator or moderator). A discussion
// with replies keeps its place in the thread with placeholder content.
func (h *DiscussionHandler) DeleteDiscussion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var discussion models.Discussion
	if !h.find(c, h.db.WithContext(ctx), &discussion, id, "Discussion") {
		return
	}
	var post models.Post
	if !h.find(c, h.db.WithContext(ctx), &post, discussion.PostID, "Post") {
		return
	}
	if !h.authorize(c, user, discussionResource(&discussion, &post), authz.ActDelete) {
		return
	}

	var replies int64
	if err := h.db.WithContext(ctx).Model(&models.Discussion{}).Where("parent_id = ?", discussion.ID).Count(&replies).Error; err != nil {
		h.internalError(c, err, "Failed to delete discussion")
		return
	}

	if replies > 0 {
		err := h.db.WithContext(ctx).Model(&discussion).Updates(map[string]interface{}{
			"content":    models.DeletedPlaceholder,
			"is_deleted": true,
		}).Error
		if err != nil {
			h.internalError(c, err, "Failed to delete discussion")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Discussion deleted", "soft_deleted": true})
		return
	}

	if err := h.db.WithContext(ctx).Delete(&models.Discussion{}, discussion.ID).Error; err != nil {
		h.internalError(c, err, "Failed to delete discussion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Discussion deleted", "soft_deleted": false})
}

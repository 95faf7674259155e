package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
	"github.com/emilythestrangee/lokniti/backend/internal/notify"
)

type PostHandler struct {
	base
}

// GetPosts lists the posts of the caller's locality, newest first
func (h *PostHandler) GetPosts(c *gin.Context) {
	var query models.ListPostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page := query.Page.Normalize()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).Where("locality = ?", user.Locality)
	if query.Type != "" {
		q = q.Where("type = ?", query.Type)
	}
	if query.Priority != "" {
		q = q.Where("priority = ?", query.Priority)
	}

	posts := []models.Post{}
	if err := q.Preload("Creator").
		Order("created_at desc").
		Order("id desc").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&posts).Error; err != nil {
		h.internalError(c, err, "Failed to fetch posts")
		return
	}

	c.JSON(http.StatusOK, posts)
}

// GetPost returns a single post with its event, poll or petition
func (h *PostHandler) GetPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var post models.Post
	if !h.find(c, withPostDetails(h.db.WithContext(c.Request.Context())), &post, id, "Post") {
		return
	}
	if !h.authorize(c, user, postResource(authz.KindPost, &post), authz.ActRead) {
		return
	}

	c.JSON(http.StatusOK, post)
}

// CreatePost creates a post in the author's locality together with its
// sub-entity, awards points and notifies the locality when relevant.
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := checkSubEntity(&input); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	kind := authz.KindPost
	if input.Type == models.PostAnnouncement {
		kind = authz.KindAnnouncement
	}
	if !h.authorize(c, user, authz.Resource{Kind: kind, Locality: user.Locality}, authz.ActCreate) {
		return
	}

	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}
	post := models.Post{
		Type:        input.Type,
		Title:       input.Title,
		Description: input.Description,
		Locality:    user.Locality,
		Priority:    input.Priority,
		CreatedBy:   user.ID,
	}

	ctx := c.Request.Context()
	var batch *notify.Batch
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}

		points, stat := models.PointsPost, models.Stat("")
		link := map[string]interface{}{}
		switch post.Type {
		case models.PostEvent:
			event, err := createEvent(tx, &post, input.Event)
			if err != nil {
				return err
			}
			post.EventID = &event.ID
			link["event_id"] = event.ID
			points, stat = models.PointsEvent, models.StatEventsHosted
		case models.PostPoll:
			poll, err := createPoll(tx, post.ID, nil, input.Poll.Question, input.Poll.Options)
			if err != nil {
				return err
			}
			post.PollID = &poll.ID
			link["poll_id"] = poll.ID
		case models.PostPetition:
			petition, err := createPetition(tx, &post, input.Petition)
			if err != nil {
				return err
			}
			post.PetitionID = &petition.ID
			link["petition_id"] = petition.ID
			points, stat = models.PointsPetition, models.StatPetitionsCreated
		}
		if len(link) > 0 {
			if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(link).Error; err != nil {
				return err
			}
		}

		if err := award(tx, user.ID, points, stat); err != nil {
			return err
		}

		if post.Notifies() {
			var err error
			batch, err = h.notifier.Locality(ctx, tx, notify.Message{
				Text:     fmt.Sprintf("New %s in %s: %s", post.Type, post.Locality, post.Title),
				Locality: post.Locality,
				PostID:   &post.ID,
				Urgent:   post.Priority == models.PriorityHigh,
			})
			return err
		}
		return nil
	})
	if err != nil {
		h.fail(c, err, "Failed to create post")
		return
	}

	h.notifier.DeliverAsync(ctx, batch)
	h.metrics.Actions.WithLabelValues("post").Inc()
	logging.Ctx(ctx).Info().
		Int("post_id", post.ID).
		Str("type", string(post.Type)).
		Str("locality", post.Locality).
		Msg("post created")

	var created models.Post
	if err := withPostDetails(h.db.WithContext(ctx)).First(&created, post.ID).Error; err != nil {
		h.internalError(c, err, "Failed to load post")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// checkSubEntity normalizes the input and makes sure the payload for the
// post type is present and non-blank.
func checkSubEntity(input *models.CreatePostRequest) string {
	input.Normalize()
	if input.Title == "" {
		return "Title cannot be empty"
	}
	if input.Description == "" {
		return "Description cannot be empty"
	}

	switch input.Type {
	case models.PostEvent:
		if input.Event == nil {
			return "Event details are required for event posts"
		}
		if input.Event.Location == "" {
			return "Event location cannot be empty"
		}
		if !input.Event.ValidRange() {
			return "Event end date cannot be before its start date"
		}
	case models.PostPoll:
		if input.Poll == nil {
			return "Poll options are required for poll posts"
		}
		if msg := input.Poll.Problem(); msg != "" {
			return msg
		}
	case models.PostPetition:
		if input.Petition == nil {
			return "Petition details are required for petition posts"
		}
		if input.Petition.Target == "" {
			return "Petition target cannot be empty"
		}
	}
	return ""
}

// createEvent stores the event of post; the organizer attends it.
func createEvent(tx *gorm.DB, post *models.Post, in *models.EventInput) (*models.Event, error) {
	event := models.Event{
		PostID:      post.ID,
		StartDate:   in.StartDate.UTC(),
		EndDate:     utcPtr(in.EndDate),
		Duration:    in.Duration,
		Location:    strings.TrimSpace(in.Location),
		OrganizerID: post.CreatedBy,
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, err
	}
	attendee := models.EventAttendee{EventID: event.ID, UserID: post.CreatedBy}
	if err := tx.Create(&attendee).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// createPoll stores a poll with its options in the given order.
func createPoll(tx *gorm.DB, postID int, petitionID *int, question string, labels []string) (*models.Poll, error) {
	poll := models.Poll{
		PostID:     postID,
		PetitionID: petitionID,
		Question:   strings.TrimSpace(question),
	}
	for i, label := range labels {
		poll.Options = append(poll.Options, models.PollOption{Label: strings.TrimSpace(label), Position: i})
	}
	if err := tx.Create(&poll).Error; err != nil {
		return nil, err
	}
	return &poll, nil
}

// createPetition stores the petition of post and, if asked, its Yes/No
// companion poll.
func createPetition(tx *gorm.DB, post *models.Post, in *models.PetitionInput) (*models.Petition, error) {
	petition := models.Petition{
		PostID: post.ID,
		Target: strings.TrimSpace(in.Target),
		Goal:   in.Goal,
	}
	if err := tx.Create(&petition).Error; err != nil {
		return nil, err
	}
	if in.WithPoll {
		question := fmt.Sprintf("Do you support: %s?", post.Title)
		if _, err := createPoll(tx, post.ID, &petition.ID, question, models.CompanionOptions); err != nil {
			return nil, err
		}
	}
	return &petition, nil
}

// UpdatePost updates an existing post (owner or moderator)
func (h *PostHandler) UpdatePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.UpdatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var post models.Post
	if !h.find(c, h.db.WithContext(ctx), &post, id, "Post") {
		return
	}
	if !h.authorize(c, user, postResource(authz.KindPost, &post), authz.ActUpdate) {
		return
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
			return
		}
		updates["title"] = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Description cannot be empty"})
			return
		}
		updates["description"] = description
	}
	if input.Priority != nil {
		updates["priority"] = *input.Priority
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	if err := h.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).Updates(updates).Error; err != nil {
		h.internalError(c, err, "Failed to update post")
		return
	}

	var updated models.Post
	if err := withPostDetails(h.db.WithContext(ctx)).First(&updated, post.ID).Error; err != nil {
		h.internalError(c, err, "Failed to load post")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeletePost removes a post with its sub-entities, discussions and
// notifications (owner or moderator)
func (h *PostHandler) DeletePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var post models.Post
	if !h.find(c, h.db.WithContext(ctx), &post, id, "Post") {
		return
	}
	if !h.authorize(c, user, postResource(authz.KindPost, &post), authz.ActDelete) {
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deletePostTree(tx, &post)
	})
	if err != nil {
		h.internalError(c, err, "Failed to delete post")
		return
	}

	logging.Ctx(ctx).Info().Int("post_id", post.ID).Int("deleted_by", user.ID).Msg("post deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func deletePostTree(tx *gorm.DB, post *models.Post) error {
	if err := tx.Where("post_id = ?", post.ID).Delete(&models.Discussion{}).Error; err != nil {
		return err
	}
	if err := tx.Where("post_id = ?", post.ID).Delete(&models.Notification{}).Error; err != nil {
		return err
	}

	var eventIDs []int
	if err := tx.Model(&models.Event{}).Where("post_id = ?", post.ID).Pluck("id", &eventIDs).Error; err != nil {
		return err
	}
	if len(eventIDs) > 0 {
		if err := tx.Where("event_id IN ?", eventIDs).Delete(&models.EventAttendee{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", eventIDs).Delete(&models.Event{}).Error; err != nil {
			return err
		}
	}

	// Covers the poll of a poll post and the companion poll of a petition.
	var pollIDs []int
	if err := tx.Model(&models.Poll{}).Where("post_id = ?", post.ID).Pluck("id", &pollIDs).Error; err != nil {
		return err
	}
	if len(pollIDs) > 0 {
		if err := tx.Where("poll_id IN ?", pollIDs).Delete(&models.PollVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id IN ?", pollIDs).Delete(&models.PollOption{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", pollIDs).Delete(&models.Poll{}).Error; err != nil {
			return err
		}
	}

	var petitionIDs []int
	if err := tx.Model(&models.Petition{}).Where("post_id = ?", post.ID).Pluck("id", &petitionIDs).Error; err != nil {
		return err
	}
	if len(petitionIDs) > 0 {
		if err := tx.Where("petition_id IN ?", petitionIDs).Delete(&models.PetitionSignature{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", petitionIDs).Delete(&models.Petition{}).Error; err != nil {
			return err
		}
	}

	return tx.Delete(&models.Post{}, post.ID).Error
}

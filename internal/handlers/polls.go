package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/database"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

type PollHandler struct {
	base
}

// loadPoll loads a poll with its ordered tally and the post it belongs to.
func (h *PollHandler) loadPoll(c *gin.Context, id int) (*models.Poll, *models.Post, bool) {
	ctx := c.Request.Context()
	var poll models.Poll
	if !h.find(c, h.db.WithContext(ctx).Preload("Options", orderByPosition), &poll, id, "Poll") {
		return nil, nil, false
	}
	var post models.Post
	if !h.find(c, h.db.WithContext(ctx), &post, poll.PostID, "Post") {
		return nil, nil, false
	}
	return &poll, &post, true
}

func (h *PollHandler) result(c *gin.Context, poll *models.Poll, userID int) (*models.PollResult, error) {
	var voted int64
	err := h.db.WithContext(c.Request.Context()).
		Model(&models.PollVote{}).
		Where("poll_id = ? AND user_id = ?", poll.ID, userID).
		Count(&voted).Error
	if err != nil {
		return nil, err
	}
	return &models.PollResult{Poll: *poll, TotalVotes: poll.Total(), HasVoted: voted > 0}, nil
}

// GetPoll returns the tally of a poll in option order
func (h *PollHandler) GetPoll(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	poll, post, ok := h.loadPoll(c, id)
	if !ok || !h.authorize(c, user, postResource(authz.KindPoll, post), authz.ActRead) {
		return
	}

	res, err := h.result(c, poll, user.ID)
	if err != nil {
		h.internalError(c, err, "Failed to load poll")
		return
	}
	c.JSON(http.StatusOK, res)
}

// VotePoll records the caller's single vote on a poll
func (h *PollHandler) VotePoll(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	poll, post, ok := h.loadPoll(c, id)
	if !ok || !h.authorize(c, user, postResource(authz.KindPoll, post), authz.ActVote) {
		return
	}

	option, found := poll.Option(input.Option)
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid option"})
		return
	}

	ctx := c.Request.Context()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vote := models.PollVote{PollID: poll.ID, UserID: user.ID, OptionID: option.ID}
		if err := tx.Create(&vote).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return newAPIError(http.StatusConflict, "You have already voted on this poll")
			}
			return err
		}
		if err := tx.Model(&models.PollOption{}).
			Where("id = ?", option.ID).
			UpdateColumn("votes", gorm.Expr("votes + ?", 1)).Error; err != nil {
			return err
		}
		return award(tx, user.ID, models.PointsVote, models.StatPollsVoted)
	})
	if err != nil {
		h.fail(c, err, "Failed to record vote")
		return
	}
	h.metrics.Actions.WithLabelValues("vote").Inc()

	updated, _, ok := h.loadPoll(c, poll.ID)
	if !ok {
		return
	}
	res, err := h.result(c, updated, user.ID)
	if err != nil {
		h.internalError(c, err, "Failed to load poll")
		return
	}
	c.JSON(http.StatusOK, res)
}

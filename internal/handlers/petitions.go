package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/database"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
	"github.com/emilythestrangee/lokniti/backend/internal/notify"
)

type PetitionHandler struct {
	base
}

func (h *PetitionHandler) loadPetition(c *gin.Context, id int) (*models.Petition, *models.Post, bool) {
	ctx := c.Request.Context()
	var petition models.Petition
	q := h.db.WithContext(ctx).Preload("Poll").Preload("Poll.Options", orderByPosition)
	if !h.find(c, q, &petition, id, "Petition") {
		return nil, nil, false
	}
	var post models.Post
	if !h.find(c, h.db.WithContext(ctx), &post, petition.PostID, "Post") {
		return nil, nil, false
	}
	return &petition, &post, true
}

// GetPetition returns a petition with its progress towards the goal
func (h *PetitionHandler) GetPetition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	petition, post, ok := h.loadPetition(c, id)
	if !ok || !h.authorize(c, user, postResource(authz.KindPetition, post), authz.ActRead) {
		return
	}

	var signed int64
	if err := h.db.WithContext(c.Request.Context()).
		Model(&models.PetitionSignature{}).
		Where("petition_id = ? AND user_id = ?", petition.ID, user.ID).
		Count(&signed).Error; err != nil {
		h.internalError(c, err, "Failed to load petition")
		return
	}

	c.JSON(http.StatusOK, models.PetitionResult{
		Petition:  *petition,
		Progress:  petition.Percent(),
		HasSigned: signed > 0,
	})
}

// SignPetition adds the caller's signature. Landing exactly on 50, 75 or
// 100 percent of the goal notifies the whole locality.
func (h *PetitionHandler) SignPetition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	petition, post, ok := h.loadPetition(c, id)
	if !ok || !h.authorize(c, user, postResource(authz.KindPetition, post), authz.ActSign) {
		return
	}

	ctx := c.Request.Context()
	var (
		result models.SignResult
		batch  *notify.Batch
	)
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sig := models.PetitionSignature{PetitionID: petition.ID, UserID: user.ID}
		if err := tx.Create(&sig).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return newAPIError(http.StatusConflict, "You have already signed this petition")
			}
			return err
		}
		if err := tx.Model(&models.Petition{}).
			Where("id = ?", petition.ID).
			UpdateColumn("signatures", gorm.Expr("signatures + ?", 1)).Error; err != nil {
			return err
		}

		var current models.Petition
		if err := tx.Select("id", "goal", "signatures").First(&current, petition.ID).Error; err != nil {
			return err
		}
		result.Signatures = current.Signatures

		if err := award(tx, user.ID, models.PointsSignature, ""); err != nil {
			return err
		}

		result.Milestone = models.Milestone(current.Signatures, current.Goal)
		if result.Milestone == 0 {
			return nil
		}
		var err error
		batch, err = h.notifier.Locality(ctx, tx, notify.Message{
			Text:     fmt.Sprintf("Petition '%s' reached %d%% of its goal", post.Title, result.Milestone),
			Locality: post.Locality,
			PostID:   &post.ID,
			Urgent:   post.Priority == models.PriorityHigh,
		})
		return err
	})
	if err != nil {
		h.fail(c, err, "Failed to sign petition")
		return
	}

	h.notifier.DeliverAsync(ctx, batch)
	h.metrics.Actions.WithLabelValues("sign").Inc()
	if result.Milestone > 0 {
		h.metrics.Milestones.WithLabelValues(strconv.Itoa(result.Milestone)).Inc()
		logging.Ctx(ctx).Info().
			Int("petition_id", petition.ID).
			Int("milestone", result.Milestone).
			Msg("petition milestone reached")
	}

	c.JSON(http.StatusOK, result)
}

// UnsignPetition withdraws the caller's signature
func (h *PetitionHandler) UnsignPetition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	petition, post, ok := h.loadPetition(c, id)
	if !ok || !h.authorize(c, user, postResource(authz.KindPetition, post), authz.ActSign) {
		return
	}

	var result models.SignResult
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("petition_id = ? AND user_id = ?", petition.ID, user.ID).Delete(&models.PetitionSignature{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			return newAPIError(http.StatusNotFound, "You have not signed this petition")
		}
		if err := tx.Model(&models.Petition{}).
			Where("id = ?", petition.ID).
			UpdateColumn("signatures", gorm.Expr("CASE WHEN signatures > 0 THEN signatures - 1 ELSE 0 END")).Error; err != nil {
			return err
		}

		var current models.Petition
		if err := tx.Select("id", "signatures").First(&current, petition.ID).Error; err != nil {
			return err
		}
		result.Signatures = current.Signatures
		return nil
	})
	if err != nil {
		h.fail(c, err, "Failed to withdraw signature")
		return
	}
	h.metrics.Actions.WithLabelValues("unsign").Inc()

	c.JSON(http.StatusOK, result)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

type UserHandler struct {
	base
}

const defaultLeaderboardSize = 10

// GetLeaderboard ranks the users of the caller's locality by points
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	var query struct {
		Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultLeaderboardSize
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	users := []models.User{}
	if err := h.db.WithContext(c.Request.Context()).
		Where("locality = ?", user.Locality).
		Order("points desc").
		Order("id").
		Limit(query.Limit).
		Find(&users).Error; err != nil {
		h.internalError(c, err, "Failed to fetch leaderboard")
		return
	}

	c.JSON(http.StatusOK, users)
}

// GetUserProfile returns a user's public profile
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var target models.User
	if !h.find(c, h.db.WithContext(c.Request.Context()), &target, id, "User") {
		return
	}
	res := authz.Resource{Kind: authz.KindProfile, OwnerID: target.ID, Locality: target.Locality}
	if !h.authorize(c, user, res, authz.ActRead) {
		return
	}

	c.JSON(http.StatusOK, target)
}

// UpdateUserRole changes a user's role (admins only)
func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var target models.User
	if !h.find(c, h.db.WithContext(ctx), &target, id, "User") {
		return
	}
	res := authz.Resource{Kind: authz.KindRole, OwnerID: target.ID, Locality: target.Locality}
	if !h.authorize(c, user, res, authz.ActUpdate) {
		return
	}

	if err := h.db.WithContext(ctx).Model(&target).Update("role", input.Role).Error; err != nil {
		h.internalError(c, err, "Failed to update role")
		return
	}
	target.Role = input.Role

	logging.Ctx(ctx).Info().
		Int("admin_id", user.ID).
		Int("user_id", target.ID).
		Str("role", string(input.Role)).
		Msg("user role changed")
	c.JSON(http.StatusOK, target)
}

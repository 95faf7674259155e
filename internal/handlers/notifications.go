package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

type NotificationHandler struct {
	base
}

// GetNotifications lists the caller's notifications, newest first
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	var query models.ListNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page := query.Page.Normalize()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	q := h.db.WithContext(ctx).Where("user_id = ?", user.ID)
	if query.Unread {
		q = q.Where("read = ?", false)
	}

	notifications := []models.Notification{}
	if err := q.Order("created_at desc").
		Order("id desc").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&notifications).Error; err != nil {
		h.internalError(c, err, "Failed to fetch notifications")
		return
	}

	var unread int64
	if err := h.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", user.ID, false).
		Count(&unread).Error; err != nil {
		h.internalError(c, err, "Failed to fetch notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// MarkRead marks one notification as read (recipient only)
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var n models.Notification
	if !h.find(c, h.db.WithContext(ctx), &n, id, "Notification") {
		return
	}
	res := authz.Resource{Kind: authz.KindNotification, OwnerID: n.UserID, Locality: n.Locality}
	if !h.authorize(c, user, res, authz.ActUpdate) {
		return
	}

	if !n.Read {
		if err := h.db.WithContext(ctx).Model(&n).Update("read", true).Error; err != nil {
			h.internalError(c, err, "Failed to update notification")
			return
		}
		n.Read = true
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllRead marks every notification of the caller as read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", user.ID, false).
		Update("read", true)
	if result.Error != nil {
		h.internalError(c, result.Error, "Failed to update notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": result.RowsAffected})
}

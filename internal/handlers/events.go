package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/database"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

type EventHandler struct {
	base
}

// eventResource describes an event to the authorizer; its locality is the
// locality of its post and its owner is the organizer.
func (h *EventHandler) eventResource(c *gin.Context, event *models.Event) (authz.Resource, bool) {
	var post models.Post
	if !h.find(c, h.db.WithContext(c.Request.Context()).Select("id", "locality", "created_by"), &post, event.PostID, "Post") {
		return authz.Resource{}, false
	}
	return authz.Resource{Kind: authz.KindEvent, OwnerID: event.OrganizerID, Locality: post.Locality}, true
}

// GetEvents lists upcoming events of the caller's locality in date order
func (h *EventHandler) GetEvents(c *gin.Context) {
	var query models.ListEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page := query.Page.Normalize()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Event{}).
		Select("events.*").
		Joins("JOIN posts ON posts.id = events.post_id").
		Where("posts.locality = ?", user.Locality)
	if query.From != nil {
		q = q.Where("events.start_date >= ?", query.From.UTC())
	}
	if query.To != nil {
		// to is a whole day, inclusive.
		q = q.Where("events.start_date < ?", query.To.UTC().Add(24*time.Hour))
	}

	events := []models.Event{}
	if err := q.Preload("Organizer").
		Order("events.start_date").
		Order("events.id").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&events).Error; err != nil {
		h.internalError(c, err, "Failed to fetch events")
		return
	}

	c.JSON(http.StatusOK, events)
}

// GetEvent returns an event with its attendees
func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var event models.Event
	q := h.db.WithContext(c.Request.Context()).Preload("Organizer").Preload("Attendees.User")
	if !h.find(c, q, &event, id, "Event") {
		return
	}
	res, ok := h.eventResource(c, &event)
	if !ok || !h.authorize(c, user, res, authz.ActRead) {
		return
	}

	c.JSON(http.StatusOK, event)
}

// UpdateEvent changes the schedule or location of an event (organizer or
// moderator)
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.UpdateEventRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var event models.Event
	if !h.find(c, h.db.WithContext(ctx), &event, id, "Event") {
		return
	}
	res, ok := h.eventResource(c, &event)
	if !ok || !h.authorize(c, user, res, authz.ActUpdate) {
		return
	}

	updates := map[string]interface{}{}
	schedule := models.EventInput{StartDate: event.StartDate, EndDate: event.EndDate}
	if input.StartDate != nil {
		schedule.StartDate = input.StartDate.UTC()
		updates["start_date"] = schedule.StartDate
	}
	if input.EndDate != nil {
		schedule.EndDate = utcPtr(input.EndDate)
		updates["end_date"] = *schedule.EndDate
	}
	if !schedule.ValidRange() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event end date cannot be before its start date"})
		return
	}
	if input.Duration != nil {
		updates["duration"] = *input.Duration
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	if err := h.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", event.ID).Updates(updates).Error; err != nil {
		h.internalError(c, err, "Failed to update event")
		return
	}

	var updated models.Event
	if err := h.db.WithContext(ctx).Preload("Organizer").First(&updated, event.ID).Error; err != nil {
		h.internalError(c, err, "Failed to load event")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// AttendEvent adds the caller to the attendee list
func (h *EventHandler) AttendEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var event models.Event
	if !h.find(c, h.db.WithContext(ctx), &event, id, "Event") {
		return
	}
	res, ok := h.eventResource(c, &event)
	if !ok || !h.authorize(c, user, res, authz.ActAttend) {
		return
	}

	attendee := models.EventAttendee{EventID: event.ID, UserID: user.ID}
	if err := h.db.WithContext(ctx).Create(&attendee).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "You are already attending this event"})
			return
		}
		h.internalError(c, err, "Failed to attend event")
		return
	}
	h.metrics.Actions.WithLabelValues("attend").Inc()

	c.JSON(http.StatusOK, gin.H{
		"message":   "You are attending this event",
		"attendees": h.attendeeCount(c, event.ID),
	})
}

// LeaveEvent removes the caller from the attendee list
func (h *EventHandler) LeaveEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var event models.Event
	if !h.find(c, h.db.WithContext(ctx), &event, id, "Event") {
		return
	}
	res, ok := h.eventResource(c, &event)
	if !ok || !h.authorize(c, user, res, authz.ActAttend) {
		return
	}

	result := h.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", event.ID, user.ID).
		Delete(&models.EventAttendee{})
	if result.Error != nil {
		h.internalError(c, result.Error, "Failed to leave event")
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "You are not attending this event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "You are no longer attending this event",
		"attendees": h.attendeeCount(c, event.ID),
	})
}

func (h *EventHandler) attendeeCount(c *gin.Context, eventID int) int64 {
	var n int64
	if err := h.db.WithContext(c.Request.Context()).
		Model(&models.EventAttendee{}).
		Where("event_id = ?", eventID).
		Count(&n).Error; err != nil {
		logging.Ctx(c.Request.Context()).Warn().Err(err).Int("event_id", eventID).Msg("failed to count attendees")
	}
	return n
}

// utcPtr stores times in UTC so that range filters compare consistently.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

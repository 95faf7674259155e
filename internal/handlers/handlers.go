package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/ai"
	"github.com/emilythestrangee/lokniti/backend/internal/auth"
	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/metrics"
	"github.com/emilythestrangee/lokniti/backend/internal/middleware"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
	"github.com/emilythestrangee/lokniti/backend/internal/notify"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	DB         *gorm.DB
	Authz      *authz.Authorizer
	Notifier   *notify.Notifier
	Metrics    *metrics.Metrics
	Issuer     *auth.Issuer
	AI         *ai.Service
	BcryptCost int
}

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Post         *PostHandler
	Event        *EventHandler
	Poll         *PollHandler
	Petition     *PetitionHandler
	Discussion   *DiscussionHandler
	Notification *NotificationHandler
	AI           *AIHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	b := base{db: d.DB, authz: d.Authz, notifier: d.Notifier, metrics: d.Metrics}
	return &Handler{
		Auth:         NewAuthHandler(b, d.Issuer, d.BcryptCost),
		User:         &UserHandler{base: b},
		Post:         &PostHandler{base: b},
		Event:        &EventHandler{base: b},
		Poll:         &PollHandler{base: b},
		Petition:     &PetitionHandler{base: b},
		Discussion:   &DiscussionHandler{base: b},
		Notification: &NotificationHandler{base: b},
		AI:           &AIHandler{base: b, svc: d.AI},
	}
}

type base struct {
	db       *gorm.DB
	authz    *authz.Authorizer
	notifier *notify.Notifier
	metrics  *metrics.Metrics
}

// apiError aborts a transaction with a client-facing status.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func newAPIError(status int, msg string) *apiError {
	return &apiError{status: status, msg: msg}
}

// fail writes err as a response. apiErrors keep their status; anything else
// is logged and reported as a 500 with msg.
func (b *base) fail(c *gin.Context, err error, msg string) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.status, gin.H{"error": apiErr.msg})
		return
	}
	b.internalError(c, err, msg)
}

func (b *base) internalError(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// currentUser loads the authenticated user.
func (b *base) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	var user models.User
	if !b.find(c, b.db.WithContext(c.Request.Context()), &user, userID, "User") {
		return nil, false
	}
	return &user, true
}

// find loads the row with the given id into dest, answering 404 when it
// does not exist.
func (b *base) find(c *gin.Context, q *gorm.DB, dest interface{}, id int, name string) bool {
	if err := q.First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": name + " not found"})
			return false
		}
		b.internalError(c, err, "Failed to load "+name)
		return false
	}
	return true
}

// authorize answers 403 unless user may perform action on res.
func (b *base) authorize(c *gin.Context, user *models.User, res authz.Resource, action authz.Action) bool {
	actor := authz.ActorOf(user)
	ok, err := b.authz.Authorize(actor, res, action)
	if err != nil {
		b.internalError(c, err, "Failed to check permissions")
		return false
	}
	if !ok {
		msg := "You do not have permission to perform this action"
		if authz.Relate(actor, res) == authz.RelForeign {
			msg = "This content belongs to a different locality"
		}
		c.JSON(http.StatusForbidden, gin.H{"error": msg})
		return false
	}
	return true
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// award adds points and, when stat is set, bumps that counter by one.
func award(tx *gorm.DB, userID, points int, stat models.Stat) error {
	updates := map[string]interface{}{
		"points": gorm.Expr("points + ?", points),
	}
	if stat != "" {
		updates[string(stat)] = gorm.Expr(string(stat)+" + ?", 1)
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// withPostDetails preloads everything a post response carries.
func withPostDetails(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Creator").
		Preload("Event").
		Preload("Event.Attendees").
		Preload("Poll").
		Preload("Poll.Options", orderByPosition).
		Preload("Petition").
		Preload("Petition.Poll").
		Preload("Petition.Poll.Options", orderByPosition)
}

// postResource describes a post, or any sub-entity of it, to the authorizer.
func postResource(kind authz.Kind, p *models.Post) authz.Resource {
	return authz.Resource{Kind: kind, OwnerID: p.CreatedBy, Locality: p.Locality}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/lokniti/backend/internal/ai"
	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

type AIHandler struct {
	base
	svc *ai.Service
}

// aiFailed maps an AI error to a response. Upstream failures are never
// reported as client errors.
func (h *AIHandler) aiFailed(c *gin.Context, err error) {
	if errors.Is(err, ai.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI features are not configured"})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "AI service is unavailable"})
}

// postForAI loads a post with everything the prompts describe and checks
// the caller may use the assistant on it.
func (h *AIHandler) postForAI(c *gin.Context) (*models.Post, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	user, ok := h.currentUser(c)
	if !ok {
		return nil, false
	}

	var post models.Post
	if !h.find(c, withPostDetails(h.db.WithContext(c.Request.Context())), &post, id, "Post") {
		return nil, false
	}
	if !h.authorize(c, user, postResource(authz.KindAI, &post), authz.ActInvoke) {
		return nil, false
	}
	return &post, true
}

// Summarize generates a short summary of a post and stores it on the post
func (h *AIHandler) Summarize(c *gin.Context) {
	post, ok := h.postForAI(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	summary, err := h.svc.Summarize(ctx, post)
	if err != nil {
		h.aiFailed(c, err)
		return
	}

	if err := h.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).Update("summary", summary).Error; err != nil {
		h.internalError(c, err, "Failed to save summary")
		return
	}

	c.JSON(http.StatusOK, gin.H{"post_id": post.ID, "summary": summary})
}

// Visualize returns a structured impact assessment of a post
func (h *AIHandler) Visualize(c *gin.Context) {
	post, ok := h.postForAI(c)
	if !ok {
		return
	}

	v, err := h.svc.Visualize(c.Request.Context(), post)
	if err != nil {
		h.aiFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post_id": post.ID, "visualization": v})
}

// AnswerFAQ answers a question about how the platform works
func (h *AIHandler) AnswerFAQ(c *gin.Context) {
	var input struct {
		Question string `json:"question" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !h.authorize(c, user, authz.Resource{Kind: authz.KindAI, Locality: user.Locality}, authz.ActInvoke) {
		return
	}

	answer, err := h.svc.AnswerFAQ(c.Request.Context(), input.Question)
	if err != nil {
		h.aiFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"question": input.Question, "answer": answer})
}

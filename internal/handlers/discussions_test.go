package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/lokniti/backend/internal/models"
	"github.com/emilythestrangee/lokniti/backend/internal/testutil"
)

func (e *env) discuss(post models.Post, user *models.User, content string, parentID *int) models.Discussion {
	e.t.Helper()

	body := map[string]interface{}{"content": content}
	if parentID != nil {
		body["parent_id"] = *parentID
	}
	w := e.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/discussions", post.ID), user, body)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Discussion](e.t, w)
}

func TestDiscussions_Thread(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	other := e.user("Other", north, models.RoleUser)
	post := e.createPost(author, map[string]interface{}{"type": "general", "title": "Parking", "description": "d"})

	first := e.discuss(post, other, "First!", nil)
	reply := e.discuss(post, author, "Thanks", &first.ID)
	second := e.discuss(post, author, "Another point", nil)

	assert.Equal(t, other.ID, first.CreatedBy)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, first.ID, *reply.ParentID)

	w := e.do(http.MethodGet, fmt.Sprintf("/api/posts/%d/discussions", post.ID), other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decode[[]models.Discussion](t, w)
	require.Len(t, thread, 2, "replies are nested under their parent")
	assert.Equal(t, first.ID, thread[0].ID)
	assert.Equal(t, second.ID, thread[1].ID)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, "Thanks", thread[0].Replies[0].Content)
	require.NotNil(t, thread[0].Creator)
	assert.Equal(t, "Other", thread[0].Creator.Name)

	// Replies do not count as started discussions.
	u := testutil.Reload[models.User](t, e.db, author.ID)
	assert.Equal(t, 1, u.DiscussionsStarted)
	assert.Equal(t, models.PointsPost+models.PointsDiscussion, u.Points)
}

func TestCreateDiscussion_Rules(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	outsider := e.user("Outsider", south, models.RoleUser)
	post := e.createPost(author, map[string]interface{}{"type": "general", "title": "One", "description": "d"})
	otherPost := e.createPost(author, map[string]interface{}{"type": "general", "title": "Two", "description": "d"})

	parent := e.discuss(post, author, "Top", nil)
	reply := e.discuss(post, author, "Reply", &parent.ID)
	path := fmt.Sprintf("/api/posts/%d/discussions", post.ID)

	w := e.do(http.MethodPost, path, author, map[string]interface{}{"content": "Deeper", "parent_id": reply.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Replies cannot be nested", errorOf(t, w))

	foreign := e.discuss(otherPost, author, "Elsewhere", nil)
	w = e.do(http.MethodPost, path, author, map[string]interface{}{"content": "Cross", "parent_id": foreign.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, path, author, map[string]interface{}{"content": "Orphan", "parent_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, path, author, map[string]interface{}{"content": "   "}).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, path, outsider, map[string]interface{}{"content": "Hi"}).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/posts/9999/discussions", author, map[string]interface{}{"content": "Hi"}).Code)
}

func TestDeleteDiscussion_WithRepliesIsSoft(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	replier := e.user("Replier", north, models.RoleUser)
	post := e.createPost(author, map[string]interface{}{"type": "general", "title": "Noise", "description": "d"})

	parent := e.discuss(post, author, "Too loud at night", nil)
	reply := e.discuss(post, replier, "Agreed", &parent.ID)

	w := e.do(http.MethodDelete, fmt.Sprintf("/api/discussions/%d", parent.ID), author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]interface{}](t, w)["soft_deleted"])

	got := testutil.Reload[models.Discussion](t, e.db, parent.ID)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, models.DeletedPlaceholder, got.Content)

	kept := testutil.Reload[models.Discussion](t, e.db, reply.ID)
	assert.Equal(t, "Agreed", kept.Content)
	assert.False(t, kept.IsDeleted)
	require.NotNil(t, kept.ParentID)
	assert.Equal(t, parent.ID, *kept.ParentID)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/posts/%d/discussions", post.ID), replier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decode[[]models.Discussion](t, w)
	require.Len(t, thread, 1, "the placeholder keeps its place in the thread")
	assert.Equal(t, parent.ID, thread[0].ID)
	assert.True(t, thread[0].IsDeleted)
	assert.Equal(t, models.DeletedPlaceholder, thread[0].Content)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, reply.ID, thread[0].Replies[0].ID)
	assert.Equal(t, "Agreed", thread[0].Replies[0].Content)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/discussions/%d", parent.ID), author, map[string]string{"content": "Back"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteDiscussion_WithoutRepliesIsHard(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	neighbour := e.user("Neighbour", north, models.RoleUser)
	mod := e.user("Moderator", north, models.RoleModerator)
	post := e.createPost(author, map[string]interface{}{"type": "general", "title": "Trees", "description": "d"})

	d := e.discuss(post, neighbour, "Plant more", nil)
	path := fmt.Sprintf("/api/discussions/%d", d.ID)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodDelete, path, author, nil).Code, "post authors do not own comments")

	w := e.do(http.MethodDelete, path, mod, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]interface{}](t, w)["soft_deleted"])
	assert.Zero(t, e.count(&models.Discussion{}, ""))
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, path, mod, nil).Code)
}

func TestUpdateDiscussion(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	mod := e.user("Moderator", north, models.RoleModerator)
	post := e.createPost(author, map[string]interface{}{"type": "general", "title": "Buses", "description": "d"})
	d := e.discuss(post, author, "Route 12 is late", nil)
	path := fmt.Sprintf("/api/discussions/%d", d.ID)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPut, path, mod, map[string]string{"content": "Edited"}).Code)

	w := e.do(http.MethodPut, path, author, map[string]string{"content": "Route 12 is very late"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Route 12 is very late", decode[models.Discussion](t, w).Content)
}

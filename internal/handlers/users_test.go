package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

func TestLeaderboard(t *testing.T) {
	e := newEnv(t, nil)
	low := e.user("Low", north, models.RoleUser)
	high := e.user("High", north, models.RoleUser)
	other := e.user("Other", south, models.RoleUser)
	require.NoError(t, e.db.Model(high).Update("points", 50).Error)
	require.NoError(t, e.db.Model(low).Update("points", 5).Error)
	require.NoError(t, e.db.Model(other).Update("points", 500).Error)

	w := e.do(http.MethodGet, "/api/users/leaderboard", low, nil)
	require.Equal(t, http.StatusOK, w.Code)

	users := decode[[]models.User](t, w)
	require.Len(t, users, 2)
	assert.Equal(t, high.ID, users[0].ID)
	assert.Equal(t, low.ID, users[1].ID)

	w = e.do(http.MethodGet, "/api/users/leaderboard?limit=1", low, nil)
	assert.Len(t, decode[[]models.User](t, w), 1)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/users/leaderboard?limit=500", low, nil).Code)
}

func TestGetUserProfile(t *testing.T) {
	e := newEnv(t, nil)
	a := e.user("Anil", north, models.RoleUser)
	b := e.user("Bela", north, models.RoleUser)
	c := e.user("Chitra", south, models.RoleUser)
	admin := e.user("Admin", south, models.RoleAdmin)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, fmt.Sprintf("/api/users/%d", b.ID), a, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, fmt.Sprintf("/api/users/%d", a.ID), c, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, fmt.Sprintf("/api/users/%d", a.ID), admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/users/9999", a, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/users/abc", a, nil).Code)
}

func TestUpdateUserRole(t *testing.T) {
	e := newEnv(t, nil)
	admin := e.user("Admin", north, models.RoleAdmin)
	mod := e.user("Mod", north, models.RoleModerator)
	u := e.user("Usha", south, models.RoleUser)
	path := fmt.Sprintf("/api/users/%d/role", u.ID)

	w := e.do(http.MethodPut, path, mod, map[string]string{"role": "moderator"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPut, path, admin, map[string]string{"role": "overlord"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPut, path, admin, map[string]string{"role": "moderator"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.RoleModerator, decode[models.User](t, w).Role)
}

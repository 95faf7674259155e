package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(http.MethodPost, "/api/auth/register", nil, map[string]interface{}{
		"name":     "Asha Rao",
		"email":    "Asha@Example.com",
		"password": "secret123",
		"locality": north,
		"role":     "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	reg := decode[models.AuthResponse](t, w)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "asha@example.com", reg.User.Email)
	assert.Equal(t, models.RoleUser, reg.User.Role, "registration never grants a privileged role")
	assert.NotContains(t, w.Body.String(), "secret123")

	t.Run("duplicate email", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/auth/register", nil, map[string]interface{}{
			"name": "Asha Again", "email": "asha@example.com", "password": "secret123", "locality": north,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("login", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/auth/login", nil, map[string]string{
			"email": "asha@example.com", "password": "secret123",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, decode[models.AuthResponse](t, w).Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/auth/login", nil, map[string]string{
			"email": "asha@example.com", "password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/auth/login", nil, map[string]string{
			"email": "ghost@example.com", "password": "secret123",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing locality", map[string]interface{}{"name": "A", "email": "a@example.com", "password": "secret123"}},
		{"bad email", map[string]interface{}{"name": "A", "email": "not-an-email", "password": "secret123", "locality": north}},
		{"short password", map[string]interface{}{"name": "A", "email": "a@example.com", "password": "123", "locality": north}},
		{"bad phone", map[string]interface{}{"name": "A", "email": "a@example.com", "password": "secret123", "locality": north, "phone": "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/api/auth/register", nil, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetMe(t *testing.T) {
	e := newEnv(t, nil)
	u := e.user("Ravi", north, models.RoleUser)

	w := e.do(http.MethodGet, "/api/auth/me", u, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, u.ID, decode[models.User](t, w).ID)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/auth/me", nil, nil).Code)

	// A valid token for a user that no longer exists.
	require.NoError(t, e.db.Delete(&models.User{}, u.ID).Error)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/auth/me", u, nil).Code)
}

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/ai"
	"github.com/emilythestrangee/lokniti/backend/internal/config"
	"github.com/emilythestrangee/lokniti/backend/internal/database"
	"github.com/emilythestrangee/lokniti/backend/internal/metrics"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
	"github.com/emilythestrangee/lokniti/backend/internal/server"
	"github.com/emilythestrangee/lokniti/backend/internal/testutil"
)

const (
	north = "North Delhi"
	south = "South Delhi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGen struct {
	reply string
	err   error
}

func (f *fakeGen) Generate(context.Context, string) (string, error) {
	return f.reply, f.err
}

type env struct {
	t      *testing.T
	db     *gorm.DB
	srv    *server.Server
	router http.Handler
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			TokenTTL:   time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		AI: config.AIConfig{RatePerMinute: 600, Burst: 100},
	}
}

// newEnv serves the full router on a private in-memory database. gen may be
// nil to leave the AI routes unconfigured.
func newEnv(t *testing.T, gen ai.Generator) *env {
	t.Helper()

	db := testutil.NewDB(t)
	var svc *ai.Service
	if gen != nil {
		svc = ai.NewService(gen, ai.BreakerSettings{FailureThreshold: 3, Cooldown: time.Minute}, metrics.NewNop())
	}

	srv, err := server.New(server.Options{
		Config: testConfig(),
		DB:     database.Wrap(db, "test"),
		AI:     svc,
	})
	require.NoError(t, err)

	return &env{t: t, db: db, srv: srv, router: srv.Handler()}
}

func (e *env) user(name, locality string, role models.Role) *models.User {
	return testutil.CreateUser(e.t, e.db, name, locality, role)
}

// do sends a JSON request, authenticated as user when user is not nil.
func (e *env) do(method, path string, user *models.User, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := e.srv.Issuer().Issue(user)
		require.NoError(e.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// createPost creates a post through the API and fails the test otherwise.
func (e *env) createPost(user *models.User, body map[string]interface{}) models.Post {
	e.t.Helper()

	w := e.do(http.MethodPost, "/api/posts", user, body)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Post](e.t, w)
}

func (e *env) count(model interface{}, query string, args ...interface{}) int64 {
	e.t.Helper()

	var n int64
	q := e.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(e.t, q.Count(&n).Error)
	return n
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

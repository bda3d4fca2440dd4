package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wall_go/internal/app"
	"wall_go/internal/config"
	"wall_go/models"
	"wall_go/pkg/storage"
)

const token = "secret"

func newRouter(t *testing.T) (*gin.Engine, *app.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := storage.Open(ctx, storage.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	cfg, err := config.New(config.Config{Groups: []config.GroupConfig{{Name: "wall"}}})
	require.NoError(t, err)

	a, err := app.New(ctx, app.Options{Config: config.StaticStore(cfg), DB: db, Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return NewRouter(NewHandler(a, zap.NewNop()), token), a
}

func do(r http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, a *app.App, id int64, status models.SubmissionStatus) {
	t.Helper()
	require.NoError(t, a.DB.InsertSubmission(context.Background(), &models.Submission{
		ID: id, Sender: "42", AccountGroup: "wall", Text: "hello", Status: status, IsComplete: true,
	}))
}

func TestHealthAndAuth(t *testing.T) {
	r, _ := newRouter(t)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "", false).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/metrics", "", false).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/submissions", "", false).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/submissions", "", true).Code)
}

func TestCommand(t *testing.T) {
	r, a := newRouter(t)
	seed(t, a, 1, models.StatusAwaitingAudit)

	w := do(r, http.MethodPost, "/api/command", `{"group":"wall","text":"1 approve"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Status        models.SubmissionStatus `json:"status"`
		PublishNumber int64                   `json:"publish_number"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, models.StatusApproved, res.Status)
	assert.Equal(t, int64(1), res.PublishNumber)

	// повторное одобрение: конфликт
	w = do(r, http.MethodPost, "/api/command", `{"group":"wall","text":"1 approve"}`, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/command", `{"group":"wall","text":"1 dance"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/command", `{"group":"nope","text":"1 approve"}`, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/command", `{"group":"wall"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmission(t *testing.T) {
	r, a := newRouter(t)
	seed(t, a, 3, models.StatusAwaitingAudit)

	w := do(r, http.MethodGet, "/api/submissions/3", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"text":"hello"`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/submissions/9", "", true).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/submissions/x", "", true).Code)
}

func TestFlushAndClear(t *testing.T) {
	r, a := newRouter(t)
	seed(t, a, 1, models.StatusAwaitingAudit)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/command", `{"group":"wall","text":"1 approve"}`, true).Code)

	w := do(r, http.MethodPost, "/api/groups/wall/clear", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, w.Body.String())

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/groups/wall/flush", "", true).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/groups/nope/flush", "", true).Code)
}

func TestBlacklistRoutes(t *testing.T) {
	r, a := newRouter(t)
	require.NoError(t, a.Guard.Add(context.Background(), &models.BlacklistEntry{Sender: "13", AccountGroup: "wall"}))

	w := do(r, http.MethodGet, "/api/groups/wall/blacklist", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sender":"13"`)

	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/api/blacklist/13?group=wall", "", true).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/blacklist/13?group=wall", "", true).Code)
}

func TestReloadWithoutFile(t *testing.T) {
	r, _ := newRouter(t)
	assert.Equal(t, http.StatusUnprocessableEntity, do(r, http.MethodPost, "/api/config/reload", "", true).Code)
}

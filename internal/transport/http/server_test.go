package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"messageboard/internal/bootstrap"
	"messageboard/internal/config"
)

type messageJSON struct {
	ID        uint   `json:"id"`
	Body      string `json:"body"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

func newTestRouter(t *testing.T, mutate ...func(*config.Config)) *gin.Engine {
	t.Helper()
	return NewRouter(newTestApp(t, mutate...))
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *bootstrap.App {
	t.Helper()
	cfg := config.Default()
	cfg.App.GinMode = gin.TestMode
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "board.db")
	cfg.Database.LogLevel = "silent"
	for _, fn := range mutate {
		fn(cfg)
	}

	app, err := bootstrap.NewWithConfig(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createMessage(t *testing.T, router http.Handler, body, username string) messageJSON {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"body": body, "username": username})
	require.NoError(t, err)
	rec := do(t, router, http.MethodPost, "/messages", string(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[messageJSON](t, rec)
}

func listMessages(t *testing.T, router http.Handler) []messageJSON {
	t.Helper()
	rec := do(t, router, http.MethodGet, "/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[[]messageJSON](t, rec)
}

func TestCreateThenFetch(t *testing.T) {
	router := newTestRouter(t)

	created := createMessage(t, router, "Hello 👋", "Liza")
	require.NotZero(t, created.ID)
	require.Equal(t, "Hello 👋", created.Body)
	require.Equal(t, "Liza", created.Username)

	rec := do(t, router, http.MethodGet, fmt.Sprintf("/messages/%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	fetched := decode[messageJSON](t, rec)
	require.Equal(t, created, fetched)
	_, err := time.Parse(time.RFC3339Nano, fetched.CreatedAt)
	require.NoError(t, err)
}

func TestResponsesAreIndentedWithStableKeyOrder(t *testing.T) {
	router := newTestRouter(t)
	created := createMessage(t, router, "order", "u")

	rec := do(t, router, http.MethodGet, fmt.Sprintf("/messages/%d", created.ID), "")
	raw := rec.Body.String()
	require.Contains(t, raw, "\n    \"id\"")

	idIdx := strings.Index(raw, `"id"`)
	bodyIdx := strings.Index(raw, `"body"`)
	userIdx := strings.Index(raw, `"username"`)
	createdIdx := strings.Index(raw, `"created_at"`)
	require.True(t, idIdx < bodyIdx && bodyIdx < userIdx && userIdx < createdIdx, raw)
}

func TestGetMissingReturnsNotFoundBody(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/messages/12345", "/messages/0", "/messages/abc"} {
		rec := do(t, router, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		require.Equal(t, map[string]string{"error": "Message not found"}, decode[map[string]string](t, rec))
	}
}

func TestListReturnsEmptyArray(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestListLengthTracksCreateAndDelete(t *testing.T) {
	router := newTestRouter(t)
	createMessage(t, router, "first", "a")

	before := len(listMessages(t, router))
	created := createMessage(t, router, "second", "b")
	require.Len(t, listMessages(t, router), before+1)

	rec := do(t, router, http.MethodDelete, fmt.Sprintf("/messages/%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listMessages(t, router), before)
}

func TestPatchChangesOnlyBody(t *testing.T) {
	router := newTestRouter(t)
	created := createMessage(t, router, "Hello", "Liza")

	rec := do(t, router, http.MethodPatch, fmt.Sprintf("/messages/%d", created.ID), `{"body":"Goodbye 👋"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[messageJSON](t, rec)
	require.Equal(t, "Goodbye 👋", updated.Body)
	require.Equal(t, created.Username, updated.Username)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.Equal(t, created.ID, updated.ID)

	fetched := decode[messageJSON](t, do(t, router, http.MethodGet, fmt.Sprintf("/messages/%d", created.ID), ""))
	require.Equal(t, updated, fetched)
}

func TestPatchIgnoresImmutableFields(t *testing.T) {
	router := newTestRouter(t)
	created := createMessage(t, router, "Hello", "Liza")

	body := fmt.Sprintf(`{"id": %d, "created_at": "2000-01-01T00:00:00Z", "body": "edited"}`, created.ID+100)
	rec := do(t, router, http.MethodPatch, fmt.Sprintf("/messages/%d", created.ID), body)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[messageJSON](t, rec)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.Equal(t, "edited", updated.Body)
}

func TestPatchMissingReturnsNotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPatch, "/messages/999", `{"body":"x"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, map[string]string{"error": "Message not found"}, decode[map[string]string](t, rec))
}

func TestDeleteThenGetAndDeleteAgain(t *testing.T) {
	router := newTestRouter(t)
	created := createMessage(t, router, "Hello 👋", "Liza")
	path := fmt.Sprintf("/messages/%d", created.ID)

	rec := do(t, router, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]uint{"deleted_message_id": created.ID}, decode[map[string]uint](t, rec))

	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, path, "").Code)
	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, path, "").Code)
}

func TestCreateRejectsBadPayloads(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/messages", `{"body": "unterminated`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid request payload", decode[map[string]any](t, rec)["error"])

	rec = do(t, router, http.MethodPost, "/messages", `{"body": 42, "username": "x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/messages", `{"body": "no author"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](t, rec)
	require.Equal(t, map[string]string{"username": "is required"}, body.Fields)

	require.Empty(t, listMessages(t, router))
}

func TestUnicodeBodiesRoundTripByteForByte(t *testing.T) {
	router := newTestRouter(t)

	for _, body := range []string{"Hello 👋", "日本語のメッセージ", "emoji 👩‍👩‍👧‍👦 zwj", "tab\tand\nnewline", "<script>&amp;</script>"} {
		created := createMessage(t, router, body, "Liza")
		fetched := decode[messageJSON](t, do(t, router, http.MethodGet, fmt.Sprintf("/messages/%d", created.ID), ""))
		require.Equal(t, []byte(body), []byte(fetched.Body))
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/messages", nil)
	req.Header.Set("Origin", "http://localhost:4000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	req = httptest.NewRequest(http.MethodGet, "/messages", nil)
	req.Header.Set("Origin", "http://localhost:4000")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Equal(t, "sqlite", body["driver"])
	deps := body["dependencies"].(map[string]any)
	require.Equal(t, true, deps["database"].(map[string]any)["ok"])
	require.NotContains(t, deps, "redis")
}

func TestHealthzReportsUnavailableDatabase(t *testing.T) {
	app := newTestApp(t)
	router := NewRouter(app)
	sqlDB, err := app.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec := do(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	deps := decode[map[string]any](t, rec)["dependencies"].(map[string]any)
	database := deps["database"].(map[string]any)
	require.Equal(t, false, database["ok"])
	require.NotEmpty(t, database["message"])
}

func TestHealthzReportsUnavailableRedis(t *testing.T) {
	server := miniredis.RunT(t)
	router := newTestRouter(t, func(cfg *config.Config) {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = server.Addr()
	})
	server.Close()

	rec := do(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	deps := decode[map[string]any](t, rec)["dependencies"].(map[string]any)
	require.Equal(t, true, deps["database"].(map[string]any)["ok"])
	require.Equal(t, false, deps["redis"].(map[string]any)["ok"])
}

func TestRedisCachedRouterStaysConsistent(t *testing.T) {
	server := miniredis.RunT(t)
	router := newTestRouter(t, func(cfg *config.Config) {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = server.Addr()
	})

	created := createMessage(t, router, "Hello", "Liza")
	path := fmt.Sprintf("/messages/%d", created.ID)
	require.Len(t, listMessages(t, router), 1)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, path, "").Code)
	require.True(t, server.Exists(fmt.Sprintf("messages:%d", created.ID)))

	rec := do(t, router, http.MethodPatch, path, `{"body":"Goodbye"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode[messageJSON](t, do(t, router, http.MethodGet, path, ""))
	require.Equal(t, "Goodbye", fetched.Body)
	require.Equal(t, "Goodbye", listMessages(t, router)[0].Body)

	require.Equal(t, http.StatusOK, do(t, router, http.MethodDelete, path, "").Code)
	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, path, "").Code)
	require.Empty(t, listMessages(t, router))

	health := decode[map[string]any](t, do(t, router, http.MethodGet, "/healthz", ""))
	require.Contains(t, health["dependencies"].(map[string]any), "redis")
}

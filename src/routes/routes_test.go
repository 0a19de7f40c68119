package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theleywin/Collab-Nest/src/cache"
	"github.com/theleywin/Collab-Nest/src/config"
	"github.com/theleywin/Collab-Nest/src/lib"
	"github.com/theleywin/Collab-Nest/src/logger"
	"github.com/theleywin/Collab-Nest/src/models"
	"github.com/theleywin/Collab-Nest/src/services"
)

const testSecret = "routes-test-secret"

type apiFixture struct {
	app    *fiber.App
	tokens map[string]string
	users  map[string]models.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db := lib.OpenTestDB(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log := logger.NewTestLogger(t)
	unread := cache.NewRedisUnreadCounter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	notifications := services.NewNotificationService(db, unread, nil, log)
	connections := services.NewConnectionService(db, notifications, nil, log, 50)

	cfg := &config.Config{
		Server:     config.ServerConfig{AllowOrigins: "*"},
		Auth:       config.AuthConfig{JWTSecret: testSecret},
		Pagination: config.PaginationConfig{DefaultPageSize: 10, MaxPageSize: 50},
	}

	f := &apiFixture{
		app:    NewApp(Deps{Config: cfg, Log: log, DB: db, Connections: connections, Notifications: notifications}),
		tokens: map[string]string{},
		users:  map[string]models.User{},
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		u := lib.SeedUser(t, db, name)
		token, err := lib.GenerateJWT(testSecret, u.ID, time.Hour)
		require.NoError(t, err)
		f.users[name] = u
		f.tokens[name] = token
	}
	return f
}

type response struct {
	Status int
	Body   map[string]interface{}
}

func (f *apiFixture) call(t *testing.T, as, method, path string, body interface{}) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[as])
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

func (f *apiFixture) id(name string) uint {
	return f.users[name].ID
}

func dataMap(t *testing.T, r response) map[string]interface{} {
	t.Helper()
	data, ok := r.Body["data"].(map[string]interface{})
	require.True(t, ok, "expected data object, got %v", r.Body)
	return data
}

func dataList(t *testing.T, r response) []interface{} {
	t.Helper()
	data, ok := r.Body["data"].([]interface{})
	require.True(t, ok, "expected data array, got %v", r.Body)
	return data
}

func (f *apiFixture) unreadCount(t *testing.T, as string) float64 {
	t.Helper()
	r := f.call(t, as, http.MethodGet, "/api/v1/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, r.Status)
	return dataMap(t, r)["count"].(float64)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	r := f.call(t, "", http.MethodGet, "/api/v1/notifications", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Status)
	assert.Equal(t, "UNAUTHORIZED", r.Body["code"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	r := f.call(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, "ok", r.Body["status"])

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConnectionRequestLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	sent := f.call(t, "alice", http.MethodPost, fmt.Sprintf("/api/v1/connections/request/%d", f.id("bob")),
		map[string]string{"message": "Let's collaborate"})
	require.Equal(t, http.StatusCreated, sent.Status)
	request := dataMap(t, sent)
	requestID := request["id"].(string)
	assert.Equal(t, "PENDING", request["status"])
	assert.Equal(t, "Let's collaborate", request["message"])

	assert.Equal(t, float64(1), f.unreadCount(t, "bob"))

	incoming := f.call(t, "bob", http.MethodGet, "/api/v1/connections/requests?tab=incoming", nil)
	require.Equal(t, http.StatusOK, incoming.Status)
	rows := dataList(t, incoming)
	require.Len(t, rows, 1)
	assert.Equal(t, requestID, rows[0].(map[string]interface{})["id"])
	pagination := incoming.Body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(1), pagination["page"])
	assert.Equal(t, float64(10), pagination["pageSize"])
	assert.Equal(t, false, pagination["hasMore"])

	outgoing := f.call(t, "alice", http.MethodGet, "/api/v1/connections/requests?tab=outgoing", nil)
	require.Len(t, dataList(t, outgoing), 1)

	dup := f.call(t, "bob", http.MethodPost, fmt.Sprintf("/api/v1/connections/request/%d", f.id("alice")), nil)
	assert.Equal(t, http.StatusConflict, dup.Status)
	assert.Equal(t, "DUPLICATE_REQUEST", dup.Body["code"])

	wrongActor := f.call(t, "alice", http.MethodPut, "/api/v1/connections/accept/"+requestID, nil)
	assert.Equal(t, http.StatusConflict, wrongActor.Status)
	assert.Equal(t, "INVALID_STATE_TRANSITION", wrongActor.Body["code"])

	accepted := f.call(t, "bob", http.MethodPut, "/api/v1/connections/accept/"+requestID, nil)
	require.Equal(t, http.StatusOK, accepted.Status)
	assert.Equal(t, "ACCEPTED", dataMap(t, accepted)["status"])

	again := f.call(t, "bob", http.MethodPut, "/api/v1/connections/reject/"+requestID, nil)
	assert.Equal(t, http.StatusConflict, again.Status)

	notes := f.call(t, "alice", http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, notes.Status)
	list := dataList(t, notes)
	require.Len(t, list, 1)
	assert.Equal(t, "CONNECTION_ACCEPTED", list[0].(map[string]interface{})["type"])

	for _, who := range []string{"alice", "bob"} {
		tab := f.call(t, who, http.MethodGet, "/api/v1/connections/requests?tab=accepted", nil)
		assert.Len(t, dataList(t, tab), 1, who)
	}

	status := f.call(t, "alice", http.MethodGet, fmt.Sprintf("/api/v1/connections/status/%d", f.id("bob")), nil)
	assert.Equal(t, "connected", dataMap(t, status)["status"])

	connections := f.call(t, "bob", http.MethodGet, "/api/v1/connections", nil)
	conns := dataList(t, connections)
	require.Len(t, conns, 1)
	assert.Equal(t, "alice", conns[0].(map[string]interface{})["username"])
}

func TestWithdrawIsSenderOnly(t *testing.T) {
	f := newAPIFixture(t)

	sent := f.call(t, "alice", http.MethodPost, fmt.Sprintf("/api/v1/connections/request/%d", f.id("carol")), nil)
	require.Equal(t, http.StatusCreated, sent.Status)
	requestID := dataMap(t, sent)["id"].(string)

	byReceiver := f.call(t, "carol", http.MethodPut, "/api/v1/connections/withdraw/"+requestID, nil)
	assert.Equal(t, http.StatusConflict, byReceiver.Status)

	withdrawn := f.call(t, "alice", http.MethodPut, "/api/v1/connections/withdraw/"+requestID, nil)
	require.Equal(t, http.StatusOK, withdrawn.Status)
	assert.Equal(t, "WITHDRAWN", dataMap(t, withdrawn)["status"])

	incoming := f.call(t, "carol", http.MethodGet, "/api/v1/connections/requests?tab=incoming", nil)
	assert.Empty(t, dataList(t, incoming))

	missing := f.call(t, "alice", http.MethodPut, "/api/v1/connections/withdraw/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, missing.Status)
	assert.Equal(t, "NOT_FOUND", missing.Body["code"])
}

func TestSendValidation(t *testing.T) {
	f := newAPIFixture(t)

	self := f.call(t, "alice", http.MethodPost, fmt.Sprintf("/api/v1/connections/request/%d", f.id("alice")), nil)
	assert.Equal(t, http.StatusBadRequest, self.Status)
	assert.Equal(t, "VALIDATION_FAILED", self.Body["code"])

	badID := f.call(t, "alice", http.MethodPost, "/api/v1/connections/request/abc", nil)
	assert.Equal(t, http.StatusBadRequest, badID.Status)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	tooLong := f.call(t, "alice", http.MethodPost, fmt.Sprintf("/api/v1/connections/request/%d", f.id("bob")),
		map[string]string{"message": string(long)})
	assert.Equal(t, http.StatusBadRequest, tooLong.Status)
	assert.Equal(t, "message must be at most 500 characters", tooLong.Body["message"])

	unknown := f.call(t, "alice", http.MethodPost, "/api/v1/connections/request/9999", nil)
	assert.Equal(t, http.StatusNotFound, unknown.Status)
}

func TestListQueryValidation(t *testing.T) {
	f := newAPIFixture(t)

	for _, q := range []string{"tab=archived", "tab=incoming&page=0", "tab=incoming&pageSize=0", "tab=incoming&pageSize=51", "page=x"} {
		r := f.call(t, "alice", http.MethodGet, "/api/v1/connections/requests?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, r.Status, q)
		assert.Equal(t, "VALIDATION_FAILED", r.Body["code"], q)
	}
}

func TestListPagination(t *testing.T) {
	f := newAPIFixture(t)

	for _, name := range []string{"bob", "carol"} {
		r := f.call(t, name, http.MethodPost, fmt.Sprintf("/api/v1/connections/request/%d", f.id("alice")), nil)
		require.Equal(t, http.StatusCreated, r.Status)
	}

	first := f.call(t, "alice", http.MethodGet, "/api/v1/connections/requests?tab=incoming&page=1&pageSize=1", nil)
	rows := dataList(t, first)
	require.Len(t, rows, 1)
	assert.Equal(t, true, first.Body["pagination"].(map[string]interface{})["hasMore"])
	assert.Equal(t, "carol", rows[0].(map[string]interface{})["sender"].(map[string]interface{})["username"])

	second := f.call(t, "alice", http.MethodGet, "/api/v1/connections/requests?tab=incoming&page=2&pageSize=1", nil)
	rows = dataList(t, second)
	require.Len(t, rows, 1)
	assert.Equal(t, false, second.Body["pagination"].(map[string]interface{})["hasMore"])
	assert.Equal(t, "bob", rows[0].(map[string]interface{})["sender"].(map[string]interface{})["username"])
}

func TestNotificationEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	for _, name := range []string{"bob", "carol"} {
		r := f.call(t, name, http.MethodPost, fmt.Sprintf("/api/v1/connections/request/%d", f.id("alice")), nil)
		require.Equal(t, http.StatusCreated, r.Status)
	}
	assert.Equal(t, float64(2), f.unreadCount(t, "alice"))

	list := dataList(t, f.call(t, "alice", http.MethodGet, "/api/v1/notifications", nil))
	require.Len(t, list, 2)
	firstID := list[0].(map[string]interface{})["id"].(string)
	secondID := list[1].(map[string]interface{})["id"].(string)

	foreign := f.call(t, "bob", http.MethodPatch, "/api/v1/notifications/"+firstID+"/read", nil)
	assert.Equal(t, http.StatusNotFound, foreign.Status)

	read := f.call(t, "alice", http.MethodPatch, "/api/v1/notifications/"+firstID+"/read", nil)
	require.Equal(t, http.StatusOK, read.Status)
	assert.Equal(t, true, dataMap(t, read)["isRead"])
	assert.Equal(t, float64(1), f.unreadCount(t, "alice"))

	twice := f.call(t, "alice", http.MethodPatch, "/api/v1/notifications/"+firstID+"/read", nil)
	require.Equal(t, http.StatusOK, twice.Status)
	assert.Equal(t, float64(1), f.unreadCount(t, "alice"))

	all := f.call(t, "alice", http.MethodPatch, "/api/v1/notifications/mark-all-read", nil)
	assert.Equal(t, http.StatusNoContent, all.Status)
	assert.Equal(t, float64(0), f.unreadCount(t, "alice"))

	deleted := f.call(t, "alice", http.MethodDelete, "/api/v1/notifications/"+secondID, nil)
	assert.Equal(t, http.StatusNoContent, deleted.Status)
	assert.Len(t, dataList(t, f.call(t, "alice", http.MethodGet, "/api/v1/notifications", nil)), 1)

	gone := f.call(t, "alice", http.MethodDelete, "/api/v1/notifications/"+secondID, nil)
	assert.Equal(t, http.StatusNotFound, gone.Status)
	assert.Equal(t, "Notification not found", gone.Body["message"])
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/controllers"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository/memstore"
	"github.com/princinho/escolaportal/services"
	"github.com/princinho/escolaportal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminEmail = "admin@escola.test"

type testServer struct {
	engine *gin.Engine
	store  *memstore.Store
	worker *services.OutboxWorker
	loc    *time.Location
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()
	store := memstore.New()
	repos := store.Repositories()

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	auth := services.NewAuthService(repos.Users, repos.Tokens, "access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour, log)
	require.NoError(t, auth.SeedAdmin(context.Background(), adminEmail, "admin-password"))

	availability := services.NewAvailabilityService(repos.Availability, loc, log)
	requests := services.NewRequestService(repos.Requests, repos.Equipment, availability, map[models.RequestType]time.Duration{
		models.RequestTypeReservation: 7 * 24 * time.Hour,
		models.RequestTypePurchase:    30 * 24 * time.Hour,
		models.RequestTypeSupport:     14 * 24 * time.Hour,
	}, log)
	notifications := services.NewNotificationService(repos.Notifications, 5, services.RetentionArchive, log)
	notices := services.NewNoticeService(repos.Notices, nil, nil, 4, log)

	engine := New(Deps{
		Log:            log,
		AllowedOrigins: map[string]bool{"http://localhost:5173": true},
		Limits:         controllers.Limits{Default: 20, Max: 100},
		Cookies:        utils.CookieSettings{},
		Auth:           auth,
		Requests:       requests,
		Notifications:  notifications,
		Availability:   availability,
		Equipment:      services.NewEquipmentService(repos.Equipment),
		Notices:        notices,
		ViewedStates:   repos.ViewedStates,
	})
	return &testServer{
		engine: engine,
		store:  store,
		worker: services.NewOutboxWorker(repos.Outbox, notifications, time.Second, 50, 3, log),
		loc:    loc,
	}
}

type call struct {
	method string
	path   string
	token  string
	body   any
	header map[string]string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: gin.H{"email": email, "password": password}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[struct {
		AccessToken string `json:"accessToken"`
	}](t, w).AccessToken
}

// createUser has the admin create an account and returns its access token.
func (s *testServer) createUser(t *testing.T, admin, email, name, role string) string {
	t.Helper()
	w := s.do(t, call{method: http.MethodPost, path: "/admin/users", token: admin, body: gin.H{
		"email": email, "name": name, "password": "secret-pass", "role": role,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(t, email, "secret-pass")
}

func (s *testServer) futureDate(days int) string {
	return time.Now().In(s.loc).AddDate(0, 0, days).Format("2006-01-02")
}

func TestPingAndAuthRequired(t *testing.T) {
	s := newServer(t)

	w := s.do(t, call{method: http.MethodGet, path: "/ping"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/me"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/requests", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRefreshAndMe(t *testing.T) {
	s := newServer(t)

	w := s.do(t, call{method: http.MethodPost, path: "/auth/login", body: gin.H{"email": adminEmail, "password": "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, call{method: http.MethodPost, path: "/auth/login", body: gin.H{"email": "not-an-email", "password": "x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, call{method: http.MethodPost, path: "/auth/login", body: gin.H{"email": adminEmail, "password": "admin-password"}})
	require.Equal(t, http.StatusOK, w.Code)
	var refresh *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == utils.RefreshCookieName {
			refresh = c
		}
	}
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(refresh)
	rw := httptest.NewRecorder()
	s.engine.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	token := decode[struct {
		AccessToken string `json:"accessToken"`
	}](t, rw).AccessToken

	// the rotated-out cookie is no longer accepted
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(refresh)
	rw = httptest.NewRecorder()
	s.engine.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/me", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[struct {
		User        models.User        `json:"user"`
		Permissions models.Permissions `json:"permissions"`
		View        string             `json:"view"`
	}](t, w)
	assert.Equal(t, adminEmail, me.User.Email)
	assert.True(t, me.Permissions.Has(models.FeatureManageUsers))
	assert.Equal(t, "operacional", me.View)
}

func TestPermissionGates(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, "admin-password")
	user := s.createUser(t, admin, "ana@escola.test", "Ana", "user")

	cases := []call{
		{method: http.MethodPost, path: "/equipment", body: gin.H{"name": "iPad 1", "type": "iPad"}},
		{method: http.MethodPost, path: "/available-dates", body: gin.H{"dates": []string{s.futureDate(1)}}},
		{method: http.MethodPost, path: "/notifications", body: gin.H{"title": "t", "message": "m"}},
		{method: http.MethodGet, path: "/admin/users"},
		{method: http.MethodGet, path: "/requests?includeHidden=true"},
	}
	for _, c := range cases {
		c.token = user
		w := s.do(t, c)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", c.method, c.path)
	}
}

func TestReservationFlow(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, "admin-password")
	ana := s.createUser(t, admin, "ana@escola.test", "Ana", "user")
	bruno := s.createUser(t, admin, "bruno@escola.test", "Bruno", "user")
	date := s.futureDate(2)

	w := s.do(t, call{method: http.MethodPost, path: "/equipment", token: admin, body: gin.H{
		"name": "iPad 01", "type": "iPad", "isAvailableForReservation": true,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ipad := decode[models.Equipment](t, w)

	reservation := gin.H{"date": date, "startTime": "08:00", "endTime": "09:00", "equipmentIds": []string{ipad.ID.Hex()}}

	// date not opened yet
	w = s.do(t, call{method: http.MethodPost, path: "/requests/reservation", token: ana, body: reservation})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodPost, path: "/available-dates", token: admin, body: gin.H{"dates": []string{date}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodPost, path: "/requests/reservation", token: ana, body: reservation})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Request](t, w)
	assert.Equal(t, models.StatusPending, created.Status)

	// overlapping slot on the same iPad
	w = s.do(t, call{method: http.MethodPost, path: "/requests/reservation", token: bruno, body: gin.H{
		"date": date, "startTime": "08:30", "endTime": "10:00", "equipmentIds": []string{ipad.ID.Hex()},
	}})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	conflict := decode[struct {
		Conflicts []services.Conflict `json:"conflicts"`
	}](t, w)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, "iPad 01", conflict.Conflicts[0].EquipmentName)

	// back to back is fine
	w = s.do(t, call{method: http.MethodPost, path: "/reservations/conflicts", token: bruno, body: gin.H{
		"date": date, "startTime": "09:00", "endTime": "10:00", "equipmentIds": []string{ipad.ID.Hex()},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"conflicts":[],"hasConflicts":false}`, w.Body.String())

	// bruno cannot see or touch ana's request
	path := "/requests/reservation/" + created.Id.Hex()
	w = s.do(t, call{method: http.MethodGet, path: path, token: bruno})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, call{method: http.MethodPatch, path: path + "/status", token: bruno, body: gin.H{"status": "approved"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, call{method: http.MethodPatch, path: path + "/status", token: admin, body: gin.H{"status": "delivered"}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "not a reservation status")
	w = s.do(t, call{method: http.MethodPatch, path: path + "/status", token: admin, body: gin.H{"status": "completed"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "pending cannot jump to completed")

	w = s.do(t, call{method: http.MethodPatch, path: path + "/status", token: admin, body: gin.H{"status": "approved"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusApproved, decode[models.Request](t, w).Status)

	n, err := s.worker.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	w = s.do(t, call{method: http.MethodGet, path: "/notifications/unread-count", token: ana})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/notifications/unread-count", token: bruno})
	assert.JSONEq(t, `{"count":0}`, w.Body.String())

	w = s.do(t, call{method: http.MethodPost, path: "/notifications/read-all", token: ana})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, call{method: http.MethodGet, path: "/notifications/unread-count", token: ana})
	assert.JSONEq(t, `{"count":0}`, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/requests?type=reservation", token: ana})
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[struct {
		Items []models.Request `json:"items"`
		Total int              `json:"total"`
		Page  int              `json:"page"`
		Limit int              `json:"limit"`
	}](t, w)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)

	w = s.do(t, call{method: http.MethodGet, path: "/requests", token: bruno})
	assert.Equal(t, 0, decode[struct {
		Total int `json:"total"`
	}](t, w).Total)
}

func TestUnreadPerDevice(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, "admin-password")
	ana := s.createUser(t, admin, "ana@escola.test", "Ana", "user")

	w := s.do(t, call{method: http.MethodPost, path: "/requests/support", token: ana, body: gin.H{
		"category": "Rede", "description": "Wi-Fi caiu na sala 3",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[models.Request](t, w)
	path := "/requests/support/" + req.Id.Hex()

	w = s.do(t, call{method: http.MethodGet, path: "/me/unread", token: ana})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	laptop := map[string]string{"X-Device-ID": "laptop"}
	phone := map[string]string{"X-Device-ID": "phone"}

	// staff sees a new request
	w = s.do(t, call{method: http.MethodGet, path: "/me/unread?view=operacional", token: admin, header: laptop})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	staff := decode[struct {
		New int `json:"new"`
	}](t, w)
	assert.Equal(t, 1, staff.New)

	w = s.do(t, call{method: http.MethodPost, path: path + "/messages", token: admin, body: gin.H{"message": "Já estamos verificando."}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	type summary struct {
		View  string `json:"view"`
		Total int    `json:"total"`
	}
	w = s.do(t, call{method: http.MethodGet, path: "/me/unread?view=operacional", token: ana, header: laptop})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[summary](t, w)
	assert.Equal(t, "user", got.View, "plain users are pinned to their own view")
	assert.Equal(t, 1, got.Total)

	w = s.do(t, call{method: http.MethodPost, path: "/me/viewed", token: ana, header: laptop, body: gin.H{
		"requestId": req.Id.Hex(), "type": "support",
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/me/unread", token: ana, header: laptop})
	assert.Equal(t, 0, decode[summary](t, w).Total)

	w = s.do(t, call{method: http.MethodGet, path: "/me/unread", token: ana, header: phone})
	assert.Equal(t, 1, decode[summary](t, w).Total, "viewed state is per device")
}

func TestEquipmentAndDates(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, "admin-password")

	for _, e := range []gin.H{
		{"name": "iPad 01", "type": "iPad", "isAvailableForReservation": true},
		{"name": "Chromebook 01", "type": "chromebook"},
		{"name": "Projetor", "type": "Projetor"},
	} {
		w := s.do(t, call{method: http.MethodPost, path: "/equipment", token: admin, body: e})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(t, call{method: http.MethodGet, path: "/equipment/counts", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ipads":1,"chromebooks":1,"other":1}`, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/equipment?reservable=true", token: admin})
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, w).Total)

	w = s.do(t, call{method: http.MethodPost, path: "/available-dates", token: admin, body: gin.H{"dates": []string{"2020-01-01"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, call{method: http.MethodPost, path: "/available-dates", token: admin, body: gin.H{"dates": []string{"not-a-date"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	d1, d2 := s.futureDate(1), s.futureDate(3)
	w = s.do(t, call{method: http.MethodPost, path: "/available-dates", token: admin, body: gin.H{"dates": []string{d2, d1}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodDelete, path: "/available-dates", token: admin, body: gin.H{"dates": []string{d2}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/available-dates", token: admin})
	assert.Equal(t, []string{d1}, decode[struct {
		Dates []string `json:"dates"`
	}](t, w).Dates)
}

func TestNoticesWithoutBlobStore(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, "admin-password")

	post := func(withFile bool) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("title", "Reunião de pais"))
		require.NoError(t, mw.WriteField("body", "Sexta às 19h no auditório."))
		if withFile {
			fw, err := mw.CreateFormFile("files", "pauta.pdf")
			require.NoError(t, err)
			_, _ = fw.Write([]byte("%PDF-1.4 pauta"))
		}
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/notices", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+admin)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		return w
	}

	w := post(true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	w = post(false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	notice := decode[models.Notice](t, w)

	w = s.do(t, call{method: http.MethodGet, path: "/notices", token: admin})
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, w).Total)

	w = s.do(t, call{method: http.MethodDelete, path: "/notices/" + notice.ID.Hex(), token: admin})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/config"
	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/files"
	"github.com/ad-tracker/upload-scheduler-go/internal/lifecycle"
	"github.com/ad-tracker/upload-scheduler-go/internal/mode"
	"github.com/ad-tracker/upload-scheduler-go/internal/preferences"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
	"github.com/ad-tracker/upload-scheduler-go/internal/service/quota"
	"github.com/ad-tracker/upload-scheduler-go/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router     *gin.Engine
	offline    *service.Offline
	controller *mode.Controller
	boot       *lifecycle.Bootstrapper
}

type apiOption func(*Deps, *config.Config)

func withAPIKeys(keys ...string) apiOption {
	return func(d *Deps, _ *config.Config) { d.APIKeys = keys }
}

func withPushLimit(limit int) apiOption {
	return func(d *Deps, _ *config.Config) {
		d.Budget = quota.NewManager(d.Service, limit, 100)
	}
}

func withCloseOnBackground() apiOption {
	return func(_ *Deps, cfg *config.Config) { cfg.Lifecycle.CloseOnBackground = true }
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()
	dir := t.TempDir()

	st := store.New(&db.Config{Path: filepath.Join(dir, "store.db"), BusyTimeout: time.Second})
	fm, err := files.NewManager(filepath.Join(dir, "files"))
	require.NoError(t, err)
	offline := service.NewOffline(st, fm, nil, nil)
	require.NoError(t, offline.Initialize(context.Background()))
	t.Cleanup(func() { offline.Close() })

	prefs := preferences.NewMemory()
	controller := mode.NewController(nil, prefs, mode.Platform{Native: true})
	require.NoError(t, controller.ForceOffline(context.Background()))

	cfg := &config.Config{
		App: config.AppConfig{Version: "1.0.0", Platform: config.PlatformNative},
	}
	d := Deps{
		Service:    offline,
		Files:      fm,
		Controller: controller,
		Store:      st,
	}
	for _, opt := range opts {
		opt(&d, cfg)
	}

	boot := lifecycle.New(cfg, controller, offline, prefs, nil)
	require.NoError(t, prefs.Set(preferences.KeyFirstRunComplete, "true"))
	require.NoError(t, prefs.Set(preferences.KeyAppVersion, "1.0.0"))
	require.NoError(t, boot.ColdStart(context.Background()))
	d.Lifecycle = boot

	return &testAPI{router: NewRouter(d), offline: offline, controller: controller, boot: boot}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, APIPrefix+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testAPI) createProfile(t *testing.T, name string) *models.Profile {
	t.Helper()
	w := a.do(t, http.MethodPost, "/profiles", models.ProfileInput{Name: name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[*models.Profile](t, w)
}

func (a *testAPI) createVideo(t *testing.T, profileID int64, title string, when time.Time) *models.Video {
	t.Helper()
	w := a.do(t, http.MethodPost, "/videos", models.VideoInput{ProfileID: profileID, Title: title, ScheduleDate: when})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[*models.Video](t, w)
}

func TestProfiles_CRUD(t *testing.T) {
	api := newTestAPI(t)

	p := api.createProfile(t, "Chan")
	assert.Positive(t, p.ID)
	path := "/profiles/" + strconv.FormatInt(p.ID, 10)

	w := api.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chan", decode[*models.Profile](t, w).Name)

	w = api.do(t, http.MethodPatch, path, map[string]string{"channelName": "Chan TV"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[*models.Profile](t, w)
	assert.Equal(t, "Chan", updated.Name)
	assert.Equal(t, "Chan TV", updated.ChannelName)

	w = api.do(t, http.MethodGet, "/profiles", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*models.Profile](t, w), 1)

	w = api.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfiles_Errors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantField  string
	}{
		{name: "bad id", method: http.MethodGet, path: "/profiles/abc", wantStatus: http.StatusBadRequest},
		{name: "zero id", method: http.MethodGet, path: "/profiles/0", wantStatus: http.StatusBadRequest},
		{name: "missing name", method: http.MethodPost, path: "/profiles", body: models.ProfileInput{}, wantStatus: http.StatusBadRequest, wantField: "name"},
		{name: "bad channel link", method: http.MethodPost, path: "/profiles", body: models.ProfileInput{Name: "x", ChannelLink: "not a url"}, wantStatus: http.StatusBadRequest, wantField: "channelLink"},
		{name: "update missing", method: http.MethodPatch, path: "/profiles/99", body: map[string]string{"name": "x"}, wantStatus: http.StatusNotFound},
		{name: "push missing", method: http.MethodPost, path: "/profiles/99/push", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantField, resp.Field)
		})
	}
}

func TestProfiles_PushBudget(t *testing.T) {
	api := newTestAPI(t, withPushLimit(2))
	p := api.createProfile(t, "Chan")
	path := "/profiles/" + strconv.FormatInt(p.ID, 10)

	for want := 1; want <= 2; want++ {
		w := api.do(t, http.MethodPost, path+"/push", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, want, decode[*models.Profile](t, w).DailyPushCount)
	}

	w := api.do(t, http.MethodPost, path+"/push", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = api.do(t, http.MethodGet, path+"/budget", nil)
	require.Equal(t, http.StatusOK, w.Code)
	budget := decode[quota.Budget](t, w)
	assert.Equal(t, 2, budget.Used)
	assert.True(t, budget.Exhausted)

	w = api.do(t, http.MethodPost, path+"/push/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[*models.Profile](t, w).DailyPushCount)

	w = api.do(t, http.MethodPost, path+"/push", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfiles_BudgetNotConfigured(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProfile(t, "Chan")

	w := api.do(t, http.MethodGet, "/profiles/"+strconv.FormatInt(p.ID, 10)+"/budget", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVideos_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProfile(t, "Chan")
	when := time.Date(2030, 3, 4, 15, 0, 0, 0, time.UTC)

	v := api.createVideo(t, p.ID, "Episode 1", when)
	assert.Equal(t, models.VideoStatusPending, v.Status)
	path := "/videos/" + strconv.FormatInt(v.ID, 10)

	w := api.do(t, http.MethodPost, path+"/uploaded", map[string]string{"youtubeLink": "https://youtu.be/abcdefghijk"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	uploaded := decode[*models.Video](t, w)
	assert.Equal(t, models.VideoStatusCompleted, uploaded.Status)
	require.NotNil(t, uploaded.UploadedDate)

	w = api.do(t, http.MethodPost, path+"/reschedule", map[string]time.Time{"scheduleDate": when.Add(time.Hour)})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPost, path+"/revert", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reverted := decode[*models.Video](t, w)
	assert.Equal(t, models.VideoStatusPending, reverted.Status)
	assert.Nil(t, reverted.UploadedDate)
	assert.Nil(t, reverted.YoutubeLink)

	w = api.do(t, http.MethodPost, path+"/reschedule", map[string]time.Time{"scheduleDate": when.Add(time.Hour)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, when.Add(time.Hour).Equal(decode[*models.Video](t, w).ScheduleDate))

	w = api.do(t, http.MethodPatch, path, map[string]string{"title": "Episode One"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Episode One", decode[*models.Video](t, w).Title)

	w = api.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVideos_ListFilters(t *testing.T) {
	api := newTestAPI(t)
	a := api.createProfile(t, "A")
	b := api.createProfile(t, "B")

	day := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	api.createVideo(t, a.ID, "late", day.Add(20*time.Hour))
	api.createVideo(t, a.ID, "early", day.Add(8*time.Hour))
	api.createVideo(t, b.ID, "next day", day.Add(30*time.Hour))

	w := api.do(t, http.MethodGet, "/videos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*models.Video](t, w), 3)

	w = api.do(t, http.MethodGet, "/videos?profileId="+strconv.FormatInt(a.ID, 10), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*models.Video](t, w), 2)

	w = api.do(t, http.MethodGet, "/videos?date=2030-05-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	byDay := decode[[]*models.Video](t, w)
	require.Len(t, byDay, 2)
	assert.Equal(t, "early", byDay[0].Title)
	assert.Equal(t, "late", byDay[1].Title)

	w = api.do(t, http.MethodGet, "/videos?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*models.Video](t, w), 3)

	for _, q := range []string{"status=done", "profileId=x", "date=yesterday"} {
		w = api.do(t, http.MethodGet, "/videos?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestVideos_MarkMissed(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProfile(t, "Chan")
	past := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	api.createVideo(t, p.ID, "overdue", past)
	api.createVideo(t, p.ID, "future", time.Date(2040, 1, 1, 9, 0, 0, 0, time.UTC))

	w := api.do(t, http.MethodPost, "/videos/missed", map[string]time.Time{"now": past.Add(time.Hour)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	missed := decode[[]*models.Video](t, w)
	require.Len(t, missed, 1)
	assert.Equal(t, models.VideoStatusMissedSchedule, missed[0].Status)

	w = api.do(t, http.MethodPost, "/videos/missed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]*models.Video](t, w))
}

func TestVideos_UploadFile(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProfile(t, "Chan")
	v := api.createVideo(t, p.ID, "Episode", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	path := APIPrefix + "/videos/" + strconv.FormatInt(v.ID, 10) + "/file"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "episode.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("video bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[*models.Video](t, w)
	assert.True(t, got.IsFileUploaded)
	require.NotNil(t, got.FilePath)
	assert.Regexp(t, `^videos/.+\.mp4$`, *got.FilePath)
	require.NotNil(t, got.FileSize)
	assert.Equal(t, int64(11), *got.FileSize)

	temp, err := api.offline.Files().List(files.AreaTemp)
	require.NoError(t, err)
	assert.Empty(t, temp)

	req = httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("--x--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/videos/999/file", map[string]string{"path": "/nowhere/clip.mp4"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestData_ExportImport(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProfile(t, "Chan")
	api.createVideo(t, p.ID, "Episode", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))

	w := api.do(t, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exported := decode[models.ExportData](t, w)
	require.Len(t, exported.Profiles, 1)
	require.Len(t, exported.Videos, 1)

	w = api.do(t, http.MethodPost, "/import", exported)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[models.ImportResult](t, w)
	assert.Equal(t, 1, result.ProfilesImported)
	assert.Equal(t, 1, result.VideosImported)

	w = api.do(t, http.MethodGet, "/videos?profileId="+strconv.FormatInt(p.ID+1, 10), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*models.Video](t, w), 1)

	w = api.do(t, http.MethodPost, "/import", map[string]any{"profiles": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	partial := map[string]any{
		"profiles": []map[string]any{{"id": 50, "name": "Ok"}},
		"videos":   []map[string]any{{"id": 1, "profileId": 777, "title": "orphan", "scheduleDate": "2030-01-01T00:00:00Z"}},
	}
	w = api.do(t, http.MethodPost, "/import", partial)
	assert.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
}

func TestMode_Endpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/mode", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mode.Offline, decode[ModeResponse](t, w).Mode)

	w = api.do(t, http.MethodPut, "/mode", ModeRequest{Mode: "online"})
	assert.Equal(t, http.StatusConflict, w.Code, "platform has no network")

	w = api.do(t, http.MethodPut, "/mode", ModeRequest{Mode: "auto"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mode.Offline, decode[ModeResponse](t, w).Mode)

	w = api.do(t, http.MethodPut, "/mode", ModeRequest{Mode: "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLifecycle_Endpoints(t *testing.T) {
	api := newTestAPI(t, withCloseOnBackground())

	w := api.do(t, http.MethodPost, "/lifecycle/background", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/profiles", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	w = api.do(t, http.MethodPost, "/lifecycle/foreground", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/profiles", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_Enabled(t *testing.T) {
	api := newTestAPI(t, withAPIKeys("secret"))

	w := api.do(t, http.MethodGet, "/profiles", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodGet, "/profiles", nil, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("closed") }

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(failingPinger{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	h.LivenessProbe(c)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	h.ReadinessProbe(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "DOWN", body["status"])
	assert.Equal(t, string(mode.Detecting), body["mode"])
}

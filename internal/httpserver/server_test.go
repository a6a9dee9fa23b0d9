package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/bkmeta/internal/bookmark"
	"github.com/MrSnakeDoc/bkmeta/internal/clock"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/holder"
	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	"github.com/MrSnakeDoc/bkmeta/internal/queue"
	"github.com/MrSnakeDoc/bkmeta/internal/store"
)

const urlGo = "https://go.dev/"

type fixture struct {
	router  http.Handler
	svc     *bookmark.Service
	holder  *holder.Holder
	backend *store.MemoryBackend
	deps    deps.Deps
}

func newFixture(t *testing.T, mutate func(d *deps.Deps)) *fixture {
	t.Helper()

	backend := store.NewMemoryBackend()
	clk := clock.NewManual(time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC))
	h := holder.New(backend, clk, logger.NewNop(), queue.Options{})
	svc := bookmark.NewService(h, clk, logger.NewNop())
	require.NoError(t, svc.Init(context.Background()))
	t.Cleanup(h.Stop)

	d := deps.Deps{
		Logger:          logger.NewNop(),
		StartTime:       time.Now(),
		Version:         "test",
		Bookmarks:       svc,
		Ready:           h.Started,
		QueueDepth:      h.QueueDepth,
		StorageScheme:   "memory",
		RateLimitBurst:  100,
		RateLimitPerMin: 100,
	}
	if mutate != nil {
		mutate(&d)
	}

	return &fixture{
		router:  NewRouter(logger.NewNop(), d),
		svc:     svc,
		holder:  h,
		backend: backend,
		deps:    d,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/bookmarks",
		`{"nodes":[{"id":"0","title":"root","children":[{"id":"1","title":"Go","url":"`+urlGo+`"}]}]}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestReadyz(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ready     bool   `json:"ready"`
		Bookmarks int    `json:"bookmarks"`
		Storage   string `json:"storage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.Equal(t, 1, body.Bookmarks)
	assert.Equal(t, "memory", body.Storage)
}

func TestReadyz_NotStarted(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) { d.Ready = func() bool { return false } })

	rec := f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBookmarkLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do(t, http.MethodPost, "/api/bookmarks/tags", `{"url":"`+urlGo+`","tag":" lang "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"added":true}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/bookmarks/tags", `{"url":"`+urlGo+`","tag":"lang"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"added":false}`, rec.Body.String(), "duplicate tag")

	rec = f.do(t, http.MethodPost, "/api/bookmarks/clicks", `{"url":"`+urlGo+`","count":3}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/bookmarks/favicons", `{"urls":{"`+urlGo+`":"https://go.dev/favicon.ico"}}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/bookmarks?url="+urlGo, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var bk domain.Bk
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bk))
	assert.Equal(t, []string{"lang"}, bk.Tags)
	assert.Equal(t, int64(3), bk.ClickedCount)
	assert.Equal(t, "https://go.dev/favicon.ico", bk.FavIconURL)
	assert.Equal(t, domain.HashURL(urlGo), bk.URLHash)

	rec = f.do(t, http.MethodPut, "/api/bookmarks/tags", `{"url":"`+urlGo+`","tags":["a","b","a"]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	got, _ := f.svc.Get(urlGo)
	assert.Equal(t, []string{"a", "b", "a"}, got.Tags)

	rec = f.do(t, http.MethodDelete, "/api/bookmarks/tags", `{"url":"`+urlGo+`","tag":"a"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	got, _ = f.svc.Get(urlGo)
	assert.Equal(t, []string{"b", "a"}, got.Tags)

	rec = f.do(t, http.MethodGet, "/api/tags", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tags":["a","b","lang"]}`, rec.Body.String())
}

func TestGetBookmark_Errors(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/bookmarks", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/bookmarks?url=https://nowhere/", "").Code)
}

func TestMalformedJSON(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/api/bookmarks/tags", "/api/bookmarks/clicks", "/api/cloud", "/api/bookmarks"} {
		rec := f.do(t, http.MethodPost, path, "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestCloudRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	hash := domain.HashURL(urlGo)
	rec := f.do(t, http.MethodPost, "/api/cloud",
		`{"bks":{"`+hash+`":{"tags":["remote"]},"deadbeef":{"tags":["x"]}},"etagVersion":9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matched":1,"etagVersion":9}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/cloud", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cc domain.CloudCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cc))
	assert.Equal(t, int64(9), cc.EtagVersion)
	require.Contains(t, cc.Bks, hash)
	assert.Equal(t, []string{"remote"}, cc.Bks[hash].Tags)

	rec = f.do(t, http.MethodGet, "/api/etag", "")
	assert.JSONEq(t, `{"etagVersion":9}`, rec.Body.String())
}

func TestRestore(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do(t, http.MethodPost, "/api/restore", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, f.svc.Count(), "appended bookmark was persisted")
}

func TestStoppedQueue(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)
	f.holder.Stop()

	rec := f.do(t, http.MethodPost, "/api/bookmarks/clicks", `{"url":"`+urlGo+`"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReload(t *testing.T) {
	bookmarks := make(chan struct{}, 1)
	f := newFixture(t, func(d *deps.Deps) { d.BookmarkReloadTrigger = bookmarks })

	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/reload", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/reload", "").Code,
		"pending trigger not consumed yet")

	<-bookmarks
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/reload", "").Code)
}

func TestReload_NothingConfigured(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/reload", "").Code)
}

func TestAPIGuards(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.AllowedCIDRS = []string{"127.0.0.1/32"}
		d.AllowedHosts = []string{"localhost"}
	})

	// httptest requests come from 192.0.2.1 with Host example.com
	rec := f.do(t, http.MethodGet, "/api/tags", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Host = "localhost:8089"
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Host = "evil.example"
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "foreign Host header")
}

func TestAPIRateLimit(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.RateLimitBurst = 2
		d.RateLimitPerMin = 1
	})
	f.seed(t)

	body := `{"url":"` + urlGo + `"}`
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/bookmarks/clicks", body).Code)
	rec := f.do(t, http.MethodPost, "/api/bookmarks/clicks", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads are not limited
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/tags", "").Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)
	_, err := f.svc.AddTag(context.Background(), urlGo, "golang")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/bookmarks/search?q=golang", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Matches []domain.Match `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Matches, 1)
	assert.Equal(t, urlGo, body.Matches[0].Bookmark.URL)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/bookmarks/search", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/bookmarks/search?q=go&limit=0", "").Code)
}

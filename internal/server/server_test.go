package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"LectureCrawler/internal/app"
	"LectureCrawler/internal/models"
	"LectureCrawler/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	resp app.Response
	err  error
}

func (f *fakeHandler) Handle(context.Context, any) (app.Response, error) {
	return f.resp, f.err
}

type handlerFunc func(ctx context.Context, event any) (app.Response, error)

func (f handlerFunc) Handle(ctx context.Context, event any) (app.Response, error) {
	return f(ctx, event)
}

type fakeReader struct {
	lectures []models.Lecture
	err      error
	got      models.LectureFilters
}

func (f *fakeReader) GetLectures(_ context.Context, filters models.LectureFilters) ([]models.Lecture, error) {
	f.got = filters
	if f.err != nil {
		return nil, f.err
	}
	end := filters.Offset + filters.Limit
	if end > len(f.lectures) {
		end = len(f.lectures)
	}
	if filters.Offset >= end {
		return []models.Lecture{}, nil
	}
	return f.lectures[filters.Offset:end], nil
}

func (f *fakeReader) CountLectures(context.Context, models.LectureFilters) (int, error) {
	return len(f.lectures), f.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Mode = "test"
	return cfg
}

func do(t *testing.T, h Handler, repo LectureReader, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter(h, repo, testConfig(), time.Now())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, &fakeHandler{}, &fakeReader{}, http.MethodGet, "/api/v1/health")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestCrawl(t *testing.T) {
	t.Run("returns the run response", func(t *testing.T) {
		h := &fakeHandler{resp: app.Response{StatusCode: http.StatusOK, Body: "inflearn crawling completed, total=7"}}

		w := do(t, h, &fakeReader{}, http.MethodPost, "/api/v1/crawl")

		require.Equal(t, http.StatusOK, w.Code)
		var got app.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "inflearn crawling completed, total=7", got.Body)
		assert.Equal(t, http.StatusOK, got.StatusCode)
	})

	t.Run("store failure still answers 200", func(t *testing.T) {
		h := &fakeHandler{
			resp: app.Response{StatusCode: http.StatusOK, Body: "inflearn crawling completed, total=1"},
			err:  errors.New("disk full"),
		}

		w := do(t, h, &fakeReader{}, http.MethodPost, "/api/v1/crawl")

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("busy", func(t *testing.T) {
		w := do(t, &fakeHandler{err: app.ErrRunInProgress}, &fakeReader{}, http.MethodPost, "/api/v1/crawl")

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestLectures(t *testing.T) {
	var stored []models.Lecture
	for i := 0; i < 45; i++ {
		stored = append(stored, models.Lecture{Hash: string(rune('a' + i%26)), CurrentPrice: i})
	}

	t.Run("defaults to first page of 20", func(t *testing.T) {
		repo := &fakeReader{lectures: stored}

		w := do(t, &fakeHandler{}, repo, http.MethodGet, "/api/v1/lectures")

		require.Equal(t, http.StatusOK, w.Code)
		var got models.LecturePage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Len(t, got.Data, 20)
		assert.Equal(t, models.Pagination{TotalPages: 3, CurrentPage: 1, Total: 45}, got.Pagination)
		assert.Equal(t, "inflearn", repo.got.SourceName)
	})

	t.Run("last partial page", func(t *testing.T) {
		repo := &fakeReader{lectures: stored}

		w := do(t, &fakeHandler{}, repo, http.MethodGet, "/api/v1/lectures?page=3&limit=20")

		require.Equal(t, http.StatusOK, w.Code)
		var got models.LecturePage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Len(t, got.Data, 5)
		assert.Equal(t, 40, repo.got.Offset)
	})

	t.Run("invalid parameters fall back and limit is capped", func(t *testing.T) {
		repo := &fakeReader{lectures: stored}

		w := do(t, &fakeHandler{}, repo, http.MethodGet, "/api/v1/lectures?page=-2&limit=5000")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, maxLimit, repo.got.Limit)
		assert.Equal(t, 0, repo.got.Offset)
	})

	t.Run("empty store", func(t *testing.T) {
		w := do(t, &fakeHandler{}, &fakeReader{}, http.MethodGet, "/api/v1/lectures")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[],"pagination":{"total_pages":0,"current_page":1,"total":0}}`, w.Body.String())
	})

	t.Run("store error", func(t *testing.T) {
		w := do(t, &fakeHandler{}, &fakeReader{err: errors.New("boom")}, http.MethodGet, "/api/v1/lectures")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestServe_ShutdownLetsRunningCrawlStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	var stored atomic.Bool
	h := handlerFunc(func(ctx context.Context, _ any) (app.Response, error) {
		close(started)
		<-ctx.Done()
		// Records collected before the stop signal are written afterwards.
		time.Sleep(100 * time.Millisecond)
		stored.Store(true)
		return app.Response{StatusCode: http.StatusOK, Body: "inflearn crawling completed, total=2"}, nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, newHTTPServer(ctx, h, &fakeReader{}, testConfig()), ln, 5*time.Second)
	}()

	type result struct {
		resp *http.Response
		err  error
	}
	respCh := make(chan result, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/api/v1/crawl", "application/json", nil)
		respCh <- result{resp, err}
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("crawl was not started")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.True(t, stored.Load(), "server stopped before the crawl finished storing")

	res := <-respCh
	require.NoError(t, res.err)
	defer res.resp.Body.Close()
	assert.Equal(t, http.StatusOK, res.resp.StatusCode)
}

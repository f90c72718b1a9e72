package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/output"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	calls atomic.Int32
	run   func(categories []models.Category) (models.AggregateResult, error)
}

func (f *fakeRunner) Run(_ context.Context, _ string, categories []models.Category, _ int, onResult func(models.ScrapeResult)) (models.AggregateResult, error) {
	f.calls.Add(1)
	agg, err := f.run(categories)
	if onResult != nil {
		for _, c := range agg.Categories {
			onResult(c)
		}
	}
	return agg, err
}

// shelfRunner returns two records per category, all pages successful.
func shelfRunner() *fakeRunner {
	return &fakeRunner{run: func(categories []models.Category) (models.AggregateResult, error) {
		var results []models.ScrapeResult
		for _, c := range categories {
			results = append(results, models.ScrapeResult{
				Category: c.ID,
				Records: []models.ProductRecord{
					{ProductName: "Semi Skimmed Milk", Price: "£1.45", Weight: "2.27L", Category: c.ID},
					{ProductName: "Whole Milk", Price: "£1.55", Weight: "2.27L", Category: c.ID},
				},
				PagesAttempted: 1,
				PagesSucceeded: 1,
			})
		}
		return models.Merge(results...), nil
	}}
}

func newJobRouter(t *testing.T, runner Runner, cc *cache.Cache) (*gin.Engine, *JobStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := NewJobStore()
	deps := JobDeps{
		Runner: runner,
		Sink:   output.NewFileSink(),
		Target: output.Target{Prefix: "products", Format: "csv", Destination: dir},
		Cache:  cc,
		Store:  store,
	}
	r := gin.New()
	r.POST("/jobs", PostJob(deps))
	r.GET("/jobs/:id", GetJob(store))
	return r, store, dir
}

func postJob(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJob(t *testing.T, r http.Handler, path string) models.JobStatusResponse {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.JobStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func waitFinished(t *testing.T, r http.Handler, id string) models.JobStatusResponse {
	t.Helper()
	var resp models.JobStatusResponse
	require.Eventually(t, func() bool {
		resp = getJob(t, r, "/jobs/"+id)
		return resp.Status != models.JobProcessing
	}, 5*time.Second, 10*time.Millisecond)
	return resp
}

func TestPostJob_RunsAndPersists(t *testing.T) {
	r, _, dir := newJobRouter(t, shelfRunner(), nil)

	w := postJob(t, r, `{"site":"aldi","categories":[{"id":"milk","slug":"chilled-food/milk"},{"id":"bread"}],"output":{"folder":"dairy"}}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var accepted models.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.True(t, strings.HasPrefix(accepted.ID, "job-"))
	assert.Equal(t, models.JobProcessing, accepted.Status)
	assert.Equal(t, "aldi", accepted.Site)
	assert.Equal(t, 2, accepted.Total)

	resp := waitFinished(t, r, accepted.ID)
	assert.Equal(t, models.JobCompleted, resp.Status)
	assert.Equal(t, 2, resp.Completed)
	assert.Equal(t, 4, resp.RecordCount)
	assert.Len(t, resp.Records, 4)
	assert.Nil(t, resp.Error)
	assert.NotZero(t, resp.FinishedAt)

	require.NotEmpty(t, resp.Location)
	assert.Equal(t, filepath.Join(dir, "dairy"), filepath.Dir(resp.Location))
	data, err := os.ReadFile(resp.Location)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "product_name,price,weight,category\n"))
}

func TestGetJob_MetadataOnly(t *testing.T) {
	r, _, _ := newJobRouter(t, shelfRunner(), nil)

	w := postJob(t, r, `{"site":"tesco","categories":[{"id":"milk"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted models.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	waitFinished(t, r, accepted.ID)

	resp := getJob(t, r, "/jobs/"+accepted.ID+"?records=false")
	assert.Empty(t, resp.Records)
	assert.Equal(t, 2, resp.RecordCount)
	require.Len(t, resp.Categories, 1)
	assert.Equal(t, "milk", resp.Categories[0].Category)
}

func TestGetJob_NotFound(t *testing.T) {
	r, _, _ := newJobRouter(t, shelfRunner(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/job-missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeNotFound)
}

func TestPostJob_Validation(t *testing.T) {
	runner := shelfRunner()
	r, _, _ := newJobRouter(t, runner, nil)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"site":`, models.ErrCodeInvalidInput},
		{"missing site", `{"categories":[{"id":"milk"}]}`, models.ErrCodeInvalidInput},
		{"no categories", `{"site":"aldi","categories":[]}`, models.ErrCodeInvalidInput},
		{"category without id", `{"site":"aldi","categories":[{"slug":"milk"}]}`, models.ErrCodeInvalidInput},
		{"unknown site", `{"site":"waitrose","categories":[{"id":"milk"}]}`, models.ErrCodeInvalidInput},
		{"bad format", `{"site":"aldi","categories":[{"id":"milk"}],"output":{"format":"xlsx"}}`, models.ErrCodeInvalidInput},
		{"slash in prefix", `{"site":"aldi","categories":[{"id":"milk"}],"output":{"prefix":"a/b"}}`, models.ErrCodeInvalidInput},
		{"escaping folder", `{"site":"aldi","categories":[{"id":"milk"}],"output":{"folder":"../etc"}}`, models.ErrCodeInvalidInput},
		{"too many workers", `{"site":"aldi","categories":[{"id":"milk"}],"workers":100}`, models.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJob(t, r, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
	assert.Zero(t, runner.calls.Load())
}

func TestPostJob_RunnerError(t *testing.T) {
	runner := &fakeRunner{run: func([]models.Category) (models.AggregateResult, error) {
		return models.AggregateResult{}, models.NewScrapeError(models.ErrCodeBrowserCrash, "browser is gone", errors.New("websocket closed"))
	}}
	r, _, _ := newJobRouter(t, runner, nil)

	w := postJob(t, r, `{"site":"ocado","categories":[{"id":"milk"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted models.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))

	resp := waitFinished(t, r, accepted.ID)
	assert.Equal(t, models.JobFailed, resp.Status)
	if diff := cmp.Diff(&models.ErrorDetail{Code: models.ErrCodeBrowserCrash, Message: "browser is gone"}, resp.Error); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
}

func TestPostJob_PartialWhenCategoryFails(t *testing.T) {
	runner := &fakeRunner{run: func(categories []models.Category) (models.AggregateResult, error) {
		return models.Merge(
			models.ScrapeResult{
				Category:       "milk",
				Records:        []models.ProductRecord{{ProductName: "Milk", Price: "£1", Category: "milk"}},
				PagesAttempted: 1,
				PagesSucceeded: 1,
			},
			models.ScrapeResult{Category: "bread", PagesAttempted: 1, Failure: "NAVIGATION_FAILED: timeout"},
		), nil
	}}
	r, _, _ := newJobRouter(t, runner, nil)

	w := postJob(t, r, `{"site":"aldi","categories":[{"id":"milk"},{"id":"bread"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted models.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))

	resp := waitFinished(t, r, accepted.ID)
	assert.Equal(t, models.JobPartial, resp.Status)
	assert.Equal(t, 1, resp.RecordCount)
	assert.NotEmpty(t, resp.Location)
}

func TestPostJob_CacheHit(t *testing.T) {
	runner := shelfRunner()
	cc := cache.New(10)
	r, _, _ := newJobRouter(t, runner, cc)

	body := `{"site":"aldi","categories":[{"id":"milk"}],"max_age":60000}`
	w := postJob(t, r, body)
	require.Equal(t, http.StatusAccepted, w.Code)
	var first models.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	waitFinished(t, r, first.ID)
	require.Equal(t, 1, cc.Len())

	w = postJob(t, r, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second models.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, models.JobCompleted, second.Status)

	resp := getJob(t, r, "/jobs/"+second.ID)
	assert.Equal(t, "hit", resp.CacheStatus)
	assert.Equal(t, 2, resp.RecordCount)
	assert.Empty(t, resp.Location)
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestPostJob_NoMaxAgeBypassesCache(t *testing.T) {
	runner := shelfRunner()
	r, _, _ := newJobRouter(t, runner, cache.New(10))

	for i := 0; i < 2; i++ {
		w := postJob(t, r, `{"site":"aldi","categories":[{"id":"milk"}]}`)
		require.Equal(t, http.StatusAccepted, w.Code)
		var accepted models.JobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
		waitFinished(t, r, accepted.ID)
	}
	assert.EqualValues(t, 2, runner.calls.Load())
}

func TestPostJob_Webhook(t *testing.T) {
	received := make(chan []byte, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		received <- buf.Bytes()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	r, _, _ := newJobRouter(t, shelfRunner(), nil)
	w := postJob(t, r, `{"site":"aldi","categories":[{"id":"milk"}],"webhook_url":"`+hook.URL+`"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case body := <-received:
		var event struct {
			Type  string                   `json:"type"`
			JobID string                   `json:"job_id"`
			Data  models.JobStatusResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(body, &event))
		assert.Equal(t, "job.completed", event.Type)
		assert.Equal(t, models.JobCompleted, event.Data.Status)
		assert.Empty(t, event.Data.Records)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestStatusOf(t *testing.T) {
	ok := models.ScrapeResult{Category: "a", PagesAttempted: 2, PagesSucceeded: 2}
	skipped := models.ScrapeResult{Category: "b", PagesAttempted: 3, PagesSucceeded: 2}
	fatal := models.ScrapeResult{Category: "c", Failure: "BROWSER_CRASH"}

	assert.Equal(t, models.JobCompleted, statusOf(models.Merge(ok)))
	assert.Equal(t, models.JobCompleted, statusOf(models.Merge()))
	assert.Equal(t, models.JobPartial, statusOf(models.Merge(ok, skipped)))
	assert.Equal(t, models.JobPartial, statusOf(models.Merge(ok, fatal)))
	assert.Equal(t, models.JobFailed, statusOf(models.Merge(fatal)))
}

func TestJobStore_EvictFinished(t *testing.T) {
	store := NewJobStore()
	done := store.Create("aldi", 1)
	done.finish(models.AggregateResult{}, "", "", nil)
	running := store.Create("aldi", 1)

	store.evictFinished(time.Now().Add(time.Minute))

	_, ok := store.Get(done.ID())
	assert.False(t, ok)
	_, ok = store.Get(running.ID())
	assert.True(t, ok)
	assert.Equal(t, 1, store.Active())
}

package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osspulse/oss-pulse/internal/cache"
	"github.com/osspulse/oss-pulse/internal/config"
	"github.com/osspulse/oss-pulse/internal/engine"
	"github.com/osspulse/oss-pulse/internal/monitoring"
)

type fakeStore struct {
	snapshots  map[string]*engine.HealthSnapshot
	series     []engine.SeriesRow
	candidates []engine.Candidate
	failWith   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string]*engine.HealthSnapshot)}
}

func snapKey(repo string, dt time.Time) string {
	return repo + "|" + dt.UTC().Format("2006-01-02")
}

func (f *fakeStore) UpsertHealthSnapshot(s *engine.HealthSnapshot) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.snapshots[snapKey(s.Repo, s.Dt.Time)] = s
	return nil
}

func (f *fakeStore) GetHealthSnapshot(repo string, dt time.Time) (*engine.HealthSnapshot, error) {
	s, ok := f.snapshots[snapKey(repo, dt)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) ListSeriesRows(repo string, from, to time.Time) ([]engine.SeriesRow, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.series, nil
}

func (f *fakeStore) ListCandidates() ([]engine.Candidate, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.candidates, nil
}

func newTestRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLogger()
	h := NewHandler(store, cache.New(time.Minute), logger, metrics, 180)
	cfg := config.Default()
	return NewRouter(cfg, h, nil, metrics, logger)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestComputeHealthEndpoint(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/v1/health/compute", gin.H{
		"repo_full_name": "acme/widget",
		"dt":             "2026-03-01",
		"metrics": gin.H{
			"metric_activity":     100.0,
			"metric_participants": 20.0,
			"metric_bus_factor":   3.0,
		},
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acme/widget", resp["repo_full_name"])
	assert.Equal(t, "2026-03-01", resp["dt"])
	assert.NotNil(t, resp["score_health"])
	assert.Len(t, store.snapshots, 1)
}

func TestComputeHealthRejectsMissingRepo(t *testing.T) {
	r := newTestRouter(newFakeStore())

	w := doJSON(t, r, http.MethodPost, "/api/v1/health/compute", gin.H{
		"metrics": gin.H{"metric_activity": 100.0},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComputeHealthRejectsBadDate(t *testing.T) {
	r := newTestRouter(newFakeStore())

	w := doJSON(t, r, http.MethodPost, "/api/v1/health/compute", gin.H{
		"repo_full_name": "acme/widget",
		"dt":             "03/01/2026",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComputeHealthBatchEndpoint(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	items := make([]gin.H, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, gin.H{
			"repo_full_name": fmt.Sprintf("acme/widget-%d", i),
			"dt":             "2026-03-01",
			"metrics":        gin.H{"metric_activity": float64(50 + i)},
		})
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/health/compute/batch", gin.H{"items": items})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count     int              `json:"count"`
		Snapshots []map[string]any `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Count)
	assert.Len(t, store.snapshots, 5)
}

func TestComputeHealthBatchRejectsEmptyItems(t *testing.T) {
	r := newTestRouter(newFakeStore())
	w := doJSON(t, r, http.MethodPost, "/api/v1/health/compute/batch", gin.H{"items": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSnapshotEndpoint(t *testing.T) {
	store := newFakeStore()
	dt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertHealthSnapshot(
		engine.ComputeHealth(engine.RawMetrics{"metric_activity": 100.0}, "acme/widget", dt)))

	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodGet, "/api/v1/health/acme/widget?dt=2026-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	missing := doJSON(t, r, http.MethodGet, "/api/v1/health/acme/other?dt=2026-03-01", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestGetCompositeEndpoint(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		store.series = append(store.series, engine.SeriesRow{
			Dt: engine.NewDate(base.AddDate(0, 0, i)),
			Values: map[string]*float64{
				"metric_activity":     engine.Ptr(float64(100 + i*10)),
				"metric_openrank":     engine.Ptr(float64(10 + i)),
				"metric_participants": engine.Ptr(float64(20 + i)),
			},
		})
	}
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodGet, "/api/v1/composite/vitality?repo=acme/widget", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Kind   string `json:"kind"`
		Series []struct {
			Dt    string   `json:"dt"`
			Value *float64 `json:"value"`
		} `json:"series"`
		Weights map[string]float64 `json:"weights"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "vitality", resp.Kind)
	assert.Len(t, resp.Series, 10)
	assert.Equal(t, "2026-03-01", resp.Series[0].Dt)
	assert.Equal(t, 0.45, resp.Weights["metric_activity"])
}

func TestGetCompositeUnknownKind(t *testing.T) {
	r := newTestRouter(newFakeStore())
	w := doJSON(t, r, http.MethodGet, "/api/v1/composite/velocity?repo=acme/widget", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCompositeRequiresRepo(t *testing.T) {
	r := newTestRouter(newFakeStore())
	w := doJSON(t, r, http.MethodGet, "/api/v1/composite/vitality", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCompositeEmptySeries(t *testing.T) {
	r := newTestRouter(newFakeStore())
	w := doJSON(t, r, http.MethodGet, "/api/v1/composite/vitality?repo=acme/widget", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecommendNewcomerEndpoint(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		store.candidates = append(store.candidates, engine.Candidate{
			Profile: engine.CandidateProfile{
				Repo:    fmt.Sprintf("acme/widget-%d", i),
				Domains: []string{"web"},
				Stacks:  []string{"go"},
				Tags:    []string{"http"},
			},
			Metrics: engine.CandidateMetrics{
				IssueResponseTimeH: engine.Ptr(float64(10 * (i + 1))),
				Activity3M:         engine.Ptr(float64(100 - i*20)),
			},
			Issues: engine.IssueStats{GoodFirst: 5 - i, FreshnessFactor: 1.0},
			Docs:   engine.DocInfo{HasReadme: true, HasContributing: true},
		})
	}
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/v1/newcomer/recommend", gin.H{
		"domain":        "web",
		"stack":         "go",
		"keywords":      []string{"http"},
		"time_per_week": "3-5h",
		"limit":         2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		CohortSize int                      `json:"cohort_size"`
		Results    []engine.ScoredCandidate `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.CohortSize)
	require.Len(t, resp.Results, 2)

	// Ranked by match score, best first.
	assert.GreaterOrEqual(t, resp.Results[0].MatchScore, resp.Results[1].MatchScore)
	for _, sc := range resp.Results {
		assert.LessOrEqual(t, len(sc.Reasons), 5)
		assert.NotEmpty(t, sc.Difficulty)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	r := newTestRouter(newFakeStore())

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	m := doJSON(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, m.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(m.Body.Bytes(), &stats))
	assert.Contains(t, stats, "requests_total")
}

package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/osspulse/oss-pulse/internal/cache"
	"github.com/osspulse/oss-pulse/internal/engine"
	apperrors "github.com/osspulse/oss-pulse/internal/errors"
	"github.com/osspulse/oss-pulse/internal/monitoring"
)

// batchLimit caps concurrent snapshot computations in one batch call.
const batchLimit = 8

// defaultRecommendLimit bounds the recommendation response when the caller
// does not ask for a specific size.
const defaultRecommendLimit = 10

// Store is the persistence surface the handlers need.
type Store interface {
	UpsertHealthSnapshot(snapshot *engine.HealthSnapshot) error
	GetHealthSnapshot(repo string, dt time.Time) (*engine.HealthSnapshot, error)
	ListSeriesRows(repo string, from, to time.Time) ([]engine.SeriesRow, error)
	ListCandidates() ([]engine.Candidate, error)
}

// Handler serves the scoring API.
type Handler struct {
	store      Store
	cache      *cache.Cache
	logger     *monitoring.Logger
	metrics    *monitoring.Metrics
	windowDays int
}

// NewHandler creates the API handler.
func NewHandler(store Store, respCache *cache.Cache, logger *monitoring.Logger, metrics *monitoring.Metrics, windowDays int) *Handler {
	if windowDays <= 0 {
		windowDays = engine.DefaultWindowDays
	}
	return &Handler{
		store:      store,
		cache:      respCache,
		logger:     logger,
		metrics:    metrics,
		windowDays: windowDays,
	}
}

// ComputeRequest is one repo-day scoring request.
type ComputeRequest struct {
	Repo    string            `json:"repo_full_name" binding:"required"`
	Dt      string            `json:"dt"`
	Metrics engine.RawMetrics `json:"metrics"`
}

// BatchComputeRequest scores several repo-days in one call.
type BatchComputeRequest struct {
	Items []ComputeRequest `json:"items" binding:"required"`
}

// RecommendRequest is the newcomer recommendation query.
type RecommendRequest struct {
	engine.Query
	Limit int `json:"limit"`
}

func (req *ComputeRequest) day() (time.Time, error) {
	if req.Dt == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", req.Dt)
}

// ComputeHealth handles POST /api/v1/health/compute.
func (h *Handler) ComputeHealth(c *gin.Context) {
	start := time.Now()

	var req ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithError(c, apperrors.NewValidationError("invalid compute request", err))
		return
	}

	dt, err := req.day()
	if err != nil {
		apperrors.RespondWithError(c, apperrors.NewValidationError("dt must be YYYY-MM-DD", err))
		return
	}

	snapshot := engine.ComputeHealth(req.Metrics, req.Repo, dt)
	if err := h.store.UpsertHealthSnapshot(snapshot); err != nil {
		apperrors.RespondWithError(c, apperrors.NewInternalError("failed to store snapshot", err))
		return
	}

	h.metrics.IncrementSnapshotsComputed()
	h.logger.SnapshotLogger(snapshot.Repo, snapshot.Dt.Format("2006-01-02"), snapshot.ScoreHealth, time.Since(start))

	c.JSON(http.StatusOK, snapshot)
}

// ComputeHealthBatch handles POST /api/v1/health/compute/batch. Scoring fans
// out per item; persistence stays sequential because SQLite serializes writes
// anyway.
func (h *Handler) ComputeHealthBatch(c *gin.Context) {
	var req BatchComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithError(c, apperrors.NewValidationError("invalid batch request", err))
		return
	}
	if len(req.Items) == 0 {
		apperrors.RespondWithError(c, apperrors.NewValidationError("items must not be empty", nil))
		return
	}

	snapshots := make([]*engine.HealthSnapshot, len(req.Items))
	g, _ := errgroup.WithContext(c.Request.Context())
	g.SetLimit(batchLimit)

	for i := range req.Items {
		item := &req.Items[i]
		idx := i
		g.Go(func() error {
			if item.Repo == "" {
				return apperrors.NewValidationError("repo_full_name is required for every item", nil)
			}
			dt, err := item.day()
			if err != nil {
				return apperrors.NewValidationError("dt must be YYYY-MM-DD", err)
			}
			snapshots[idx] = engine.ComputeHealth(item.Metrics, item.Repo, dt)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		apperrors.RespondWithError(c, err)
		return
	}

	for _, snapshot := range snapshots {
		if err := h.store.UpsertHealthSnapshot(snapshot); err != nil {
			apperrors.RespondWithError(c, apperrors.NewInternalError("failed to store snapshot", err))
			return
		}
		h.metrics.IncrementSnapshotsComputed()
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(snapshots),
		"snapshots": snapshots,
	})
}

// GetSnapshot handles GET /api/v1/health/:owner/:name.
func (h *Handler) GetSnapshot(c *gin.Context) {
	repo := c.Param("owner") + "/" + c.Param("name")

	dt := time.Now().UTC()
	if dtStr := c.Query("dt"); dtStr != "" {
		parsed, err := time.Parse("2006-01-02", dtStr)
		if err != nil {
			apperrors.RespondWithError(c, apperrors.NewValidationError("dt must be YYYY-MM-DD", err))
			return
		}
		dt = parsed
	}

	snapshot, err := h.store.GetHealthSnapshot(repo, dt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apperrors.RespondWithError(c, apperrors.NewNotFoundError("no snapshot for "+repo))
			return
		}
		apperrors.RespondWithError(c, apperrors.NewInternalError("failed to load snapshot", err))
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetComposite handles GET /api/v1/composite/:kind.
func (h *Handler) GetComposite(c *gin.Context) {
	start := time.Now()

	kind := c.Param("kind")
	spec, ok := engine.CompositeSpecByName(kind)
	if !ok {
		apperrors.RespondWithError(c, apperrors.NewValidationError("unknown composite kind "+kind, nil))
		return
	}

	repo := c.Query("repo")
	if repo == "" {
		apperrors.RespondWithError(c, apperrors.NewValidationError("repo query parameter is required", nil))
		return
	}

	windowDays := h.windowDays
	if w := c.Query("window_days"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n <= 0 {
			apperrors.RespondWithError(c, apperrors.NewValidationError("window_days must be a positive integer", err))
			return
		}
		windowDays = n
	}

	to := time.Now().UTC()
	if t := c.Query("to"); t != "" {
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			apperrors.RespondWithError(c, apperrors.NewValidationError("to must be YYYY-MM-DD", err))
			return
		}
		to = parsed
	}
	from := to.AddDate(-1, 0, 0)
	if f := c.Query("from"); f != "" {
		parsed, err := time.Parse("2006-01-02", f)
		if err != nil {
			apperrors.RespondWithError(c, apperrors.NewValidationError("from must be YYYY-MM-DD", err))
			return
		}
		from = parsed
	}

	key := cache.Key("composite", kind, repo,
		strconv.Itoa(windowDays), from.Format("2006-01-02"), to.Format("2006-01-02"))
	if cached, ok := h.cache.Get(key); ok {
		h.metrics.IncrementCacheHit()
		h.logger.CompositeLogger(repo, kind, 0, windowDays, true, time.Since(start))
		c.JSON(http.StatusOK, cached)
		return
	}
	h.metrics.IncrementCacheMiss()

	rows, err := h.store.ListSeriesRows(repo, from, to)
	if err != nil {
		apperrors.RespondWithError(c, apperrors.NewInternalError("failed to load series", err))
		return
	}
	if len(rows) == 0 {
		apperrors.RespondWithError(c, apperrors.NewNotFoundError("no series data for "+repo))
		return
	}

	result := engine.ComputeCompositeSeries(rows, windowDays, spec)
	response := gin.H{
		"repo_full_name":    repo,
		"kind":              kind,
		"window_days":       windowDays,
		"series":            result.Series,
		"weights":           result.Weights,
		"components_latest": result.ComponentsLatest,
	}
	h.cache.Set(key, response)

	h.metrics.IncrementCompositesComputed()
	h.logger.CompositeLogger(repo, kind, len(result.Series), windowDays, false, time.Since(start))

	c.JSON(http.StatusOK, response)
}

// RecommendNewcomer handles POST /api/v1/newcomer/recommend.
func (h *Handler) RecommendNewcomer(c *gin.Context) {
	start := time.Now()

	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithError(c, apperrors.NewValidationError("invalid recommend request", err))
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultRecommendLimit
	}

	cands, err := h.store.ListCandidates()
	if err != nil {
		apperrors.RespondWithError(c, apperrors.NewInternalError("failed to load candidates", err))
		return
	}

	scored := engine.ScoreCandidates(cands, req.Query)
	if len(scored) > limit {
		scored = scored[:limit]
	}

	h.metrics.IncrementRecommendations()
	h.logger.RecommendLogger(len(cands), req.Domain, req.Stack, time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"cohort_size": len(cands),
		"results":     scored,
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"metrics":   h.metrics.GetStats(),
	})
}

// GetMetrics handles GET /metrics.
func (h *Handler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetStats())
}

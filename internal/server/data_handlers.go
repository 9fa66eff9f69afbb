package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/metadata"
)

func (deps Dependencies) recentReadings(c *gin.Context) {
	if deps.Influx == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "historian unavailable"})
		return
	}

	lookback := deps.ReadingsLookback
	if raw := c.Query("lookback"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lookback"})
			return
		}
		lookback = d
	}

	limit := deps.ReadingsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	readings, err := deps.Influx.RecentReadings(
		c.Request.Context(),
		deps.HistorianMeasurement,
		c.Query("device"),
		c.Query("channel"),
		lookback,
		limit,
	)
	if err != nil {
		deps.Logger.Error("readings query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings})
}

type createBatchRequest struct {
	BatchNumber string `json:"batchNumber" binding:"required"`
	Product     string `json:"product"`
}

func (deps Dependencies) createBatch(c *gin.Context) {
	if deps.Repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metadata store unavailable"})
		return
	}

	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := deps.Repo.CreateBatch(c.Request.Context(), metadata.CreateBatchInput{
		BatchNumber: req.BatchNumber,
		Product:     req.Product,
	})
	switch {
	case errors.Is(err, metadata.ErrBatchExists):
		c.JSON(http.StatusConflict, gin.H{"error": "batch already exists"})
	case errors.Is(err, metadata.ErrBatchNumberRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		deps.Logger.Error("batch creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch creation failed"})
	default:
		c.JSON(http.StatusCreated, batch)
	}
}

func (deps Dependencies) listActiveBatches(c *gin.Context) {
	if deps.Repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metadata store unavailable"})
		return
	}
	batches, err := deps.Repo.ListActiveBatches(c.Request.Context())
	if err != nil {
		deps.Logger.Error("batch listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (deps Dependencies) listAlarmEvents(c *gin.Context) {
	if deps.Repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metadata store unavailable"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	events, err := deps.Repo.ListAlarmEvents(c.Request.Context(), c.Query("device"), limit)
	if err != nil {
		deps.Logger.Error("alarm event listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "alarm event listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

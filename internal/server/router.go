// Package server exposes the plant over HTTP: roster snapshots, device
// commands, alarm acknowledgement, batch registration, and historian queries.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/influxdb"
	"github.com/steriline/plantsim/internal/metadata"
	"github.com/steriline/plantsim/internal/scan"
)

// Dependencies groups objects the HTTP layer needs. Repo and Influx may be
// nil; the affected routes then answer 503.
type Dependencies struct {
	Runner *scan.Runner
	Influx *influxdb.Client
	Repo   *metadata.Repository
	Logger *zap.Logger

	HistorianMeasurement string
	ReadingsLookback     time.Duration
	ReadingsLimit        int
}

// NewRouter configures all HTTP routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.Default()
	r.Use(cors.Default())

	api := r.Group("/api")

	api.GET("/devices", deps.listDevices)
	api.GET("/devices/:id", deps.getDevice)
	api.GET("/devices/:id/diagnostics", deps.getDiagnostics)
	api.GET("/devices/:id/alarms", deps.getAlarms)
	api.POST("/devices/:id/alarms/:alarmID/ack", deps.acknowledgeAlarm)
	api.POST("/devices/:id/commands/:command", deps.commandDevice)
	api.POST("/devices/:id/fault", deps.injectFault)

	api.GET("/plant/status", deps.plantStatus)
	api.POST("/plant/enable", deps.enablePlant)
	api.POST("/plant/disable", deps.disablePlant)

	api.GET("/influx/ping", deps.influxPing)
	api.GET("/readings", deps.recentReadings)

	api.POST("/batches", deps.createBatch)
	api.GET("/batches/active", deps.listActiveBatches)
	api.GET("/alarm-events", deps.listAlarmEvents)

	return r
}

func (deps Dependencies) plantStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":  deps.Runner.Enabled(),
		"interval": deps.Runner.Interval().String(),
		"scans":    deps.Runner.Scans(),
		"devices":  len(deps.Runner.Devices()),
	})
}

func (deps Dependencies) enablePlant(c *gin.Context) {
	deps.Runner.Enable()
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

func (deps Dependencies) disablePlant(c *gin.Context) {
	deps.Runner.Disable()
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

func (deps Dependencies) influxPing(c *gin.Context) {
	if deps.Influx == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "missing client"})
		return
	}
	if err := deps.Influx.Ping(c.Request.Context()); err != nil {
		deps.Logger.Warn("influx ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

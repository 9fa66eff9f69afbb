package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/device"
)

func (deps Dependencies) listDevices(c *gin.Context) {
	roster := deps.Runner.Devices()
	snapshots := make([]device.Snapshot, 0, len(roster))
	for _, d := range roster {
		snapshots = append(snapshots, d.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{"devices": snapshots})
}

func (deps Dependencies) getDevice(c *gin.Context) {
	d, ok := deps.Runner.Device(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}
	c.JSON(http.StatusOK, d.Snapshot())
}

func (deps Dependencies) getDiagnostics(c *gin.Context) {
	d, ok := deps.Runner.Device(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deviceId":    d.DeviceID(),
		"diagnostics": d.Diagnostics(),
	})
}

func (deps Dependencies) getAlarms(c *gin.Context) {
	d, ok := deps.Runner.Device(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}
	alarms := d.Alarms()
	if c.Query("active") == "true" {
		alarms = d.ActiveAlarms()
	}
	c.JSON(http.StatusOK, gin.H{
		"deviceId": d.DeviceID(),
		"alarms":   alarms,
	})
}

type ackRequest struct {
	By      string `json:"by" binding:"required"`
	Comment string `json:"comment"`
}

func (deps Dependencies) acknowledgeAlarm(c *gin.Context) {
	d, ok := deps.Runner.Device(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}

	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alarmID := c.Param("alarmID")
	if !d.Acknowledge(alarmID, req.By, req.Comment) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown alarm"})
		return
	}

	// Mirror the acknowledgement into the archive when a store is wired.
	if deps.Repo != nil {
		if err := deps.Repo.AcknowledgeAlarmEvent(c.Request.Context(), alarmID, req.By, req.Comment); err != nil {
			deps.Logger.Warn("alarm archive acknowledgement failed",
				zap.String("alarm", alarmID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

// commandDevice routes lifecycle transitions. Rejected transitions return
// 409 with the device's current status; the device also records an
// informational alarm itself.
func (deps Dependencies) commandDevice(c *gin.Context) {
	d, ok := deps.Runner.Device(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}

	accepted := true
	switch c.Param("command") {
	case "initialize":
		d.Initialize()
	case "start":
		accepted = d.Start()
	case "stop":
		accepted = d.Stop()
	case "maintenance-begin":
		accepted = beginMaintenance(d)
	case "maintenance-complete":
		accepted = completeMaintenance(d)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command"})
		return
	}

	if !accepted {
		c.JSON(http.StatusConflict, gin.H{
			"accepted": false,
			"status":   d.Status().String(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted": true,
		"status":   d.Status().String(),
	})
}

// Maintenance transitions live on *device.Core rather than the Device
// interface; every roster member embeds it.
type maintainer interface {
	BeginMaintenance() bool
	CompleteMaintenance() bool
}

func beginMaintenance(d device.Device) bool {
	m, ok := d.(maintainer)
	return ok && m.BeginMaintenance()
}

func completeMaintenance(d device.Device) bool {
	m, ok := d.(maintainer)
	return ok && m.CompleteMaintenance()
}

// injectFault queues a fault for the scan loop rather than mutating the
// device from the request goroutine.
func (deps Dependencies) injectFault(c *gin.Context) {
	id := c.Param("id")
	if !deps.Runner.RequestFault(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

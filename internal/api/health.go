package api

import (
	"encoding/json"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// ToolChecker reports whether the external transcoding tools are present.
// Satisfied by *transcode.Transcoder.
type ToolChecker interface {
	Check() error
}

// PlayerChecker reports whether the local playback binary is present.
// Satisfied by *playback.ExecSink.
type PlayerChecker interface {
	CheckPlayer() error
}

type HealthHandler struct {
	tools      ToolChecker
	player     PlayerChecker
	synthReady bool
	version    string
	startTime  time.Time
}

func NewHealthHandler(tools ToolChecker, player PlayerChecker, synthReady bool, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		tools:      tools,
		player:     player,
		synthReady: synthReady,
		version:    version,
		startTime:  startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// ffmpeg/ffprobe check. Export cannot work without them.
	if h.tools != nil {
		if err := h.tools.Check(); err != nil {
			checks["transcode"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["transcode"] = "ok"
		}
	} else {
		checks["transcode"] = "not_configured"
	}

	// Local playback binary check. Sessions degrade without it but the
	// export path still works.
	if h.player != nil {
		if err := h.player.CheckPlayer(); err != nil {
			checks["player"] = "missing"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["player"] = "ok"
		}
	} else {
		checks["player"] = "not_configured"
	}

	// Synthesis backend check. Configuration only; no network probe.
	if h.synthReady {
		checks["synthesis"] = "ok"
	} else {
		checks["synthesis"] = "not_configured"
		if status == "healthy" {
			status = "degraded"
		}
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}

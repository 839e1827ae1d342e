package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
)

// DetectResponse is the body of a successful POST /v1/detect.
type DetectResponse struct {
	Detections []detection.Detection `json:"detections"`
	Count      int                   `json:"count"`
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`
	RequestID  string                `json:"request_id"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"pipeline_id": a.pipeline.ID(),
	})
}

func (a *API) handleDetect(w http.ResponseWriter, r *http.Request) {
	q, o, err := queryFromRequest(r)
	if err != nil {
		a.sendError(w, r, "invalid_request", err, http.StatusBadRequest)
		return
	}
	frame, err := readFrame(r, o)
	if err != nil {
		a.sendPipelineError(w, r, err)
		return
	}

	dets, err := a.pipeline.SubmitStaticImage(r.Context(), frame, q)
	if err != nil {
		a.sendPipelineError(w, r, err)
		return
	}
	if dets == nil {
		dets = []detection.Detection{}
	}
	size := frame.Size()
	writeJSON(w, http.StatusOK, DetectResponse{
		Detections: dets,
		Count:      len(dets),
		Width:      size.X,
		Height:     size.Y,
		RequestID:  RequestID(r.Context()),
	})
}

func (a *API) handleStreamFrame(w http.ResponseWriter, r *http.Request) {
	q, o, err := queryFromRequest(r)
	if err != nil {
		a.sendError(w, r, "invalid_request", err, http.StatusBadRequest)
		return
	}
	frame, err := readFrame(r, o)
	if err != nil {
		a.sendPipelineError(w, r, err)
		return
	}

	res, err := a.pipeline.SubmitStreamFrame(r.Context(), frame, q)
	if err != nil {
		a.sendPipelineError(w, r, err)
		return
	}
	if res.Detections == nil {
		res.Detections = []detection.Detection{}
	}
	writeJSON(w, http.StatusOK, res)
}

// SuspendRequest is the body of PUT /v1/stream/suspend.
type SuspendRequest struct {
	Suspended bool   `json:"suspended"`
	Reason    string `json:"reason"`
}

func (a *API) applySuspend(req SuspendRequest) error {
	switch strings.ToLower(req.Reason) {
	case "", "editing":
		a.pipeline.SetSuspended(req.Suspended)
	case "zooming":
		a.pipeline.SetZooming(req.Suspended)
	default:
		return fmt.Errorf("unknown suspend reason %q", req.Reason)
	}
	return nil
}

func (a *API) handleSuspend(w http.ResponseWriter, r *http.Request) {
	var req SuspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.sendError(w, r, "invalid_request", err, http.StatusBadRequest)
		return
	}
	if err := a.applySuspend(req); err != nil {
		a.sendError(w, r, "invalid_request", err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, a.pipeline.Stats().Pacer)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	a.pipeline.ResetStream()
	writeJSON(w, http.StatusOK, map[string]interface{}{"generation": a.pipeline.Stats().Generation})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.pipeline.Stats())
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.settings.Settings())
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch config.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		a.sendError(w, r, "invalid_request", err, http.StatusBadRequest)
		return
	}
	updated, err := a.settings.Update(patch)
	if err != nil {
		a.sendError(w, r, "invalid_settings", err, http.StatusBadRequest)
		return
	}
	a.log.Info().Str("request_id", RequestID(r.Context())).Interface("settings", updated).Msg("settings updated")
	writeJSON(w, http.StatusOK, updated)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartlight/smartlight-core/internal/registry"
)

// scheduleRequest is the request body for POST /devices/{id}/schedules.
// Times are wall-clock HH:MM, interpreted in the server's timezone.
type scheduleRequest struct {
	OnTime  string `json:"on_time"`
	OffTime string `json:"off_time"`
}

// scheduleTimeRe matches 24-hour HH:MM wall-clock times.
var scheduleTimeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// handleListSchedules returns the schedules of a device the caller may access.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceForCaller(w, r)
	if !ok {
		return
	}

	schedules, err := s.registry.ListSchedulesByDevice(r.Context(), dev.ID)
	if err != nil {
		s.logger.Error("listing schedules failed", "device_id", dev.ID, "error", err)
		writeInternalError(w, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules, "count": len(schedules)})
}

// handleCreateSchedule adds an on/off schedule to a device.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceForCaller(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !scheduleTimeRe.MatchString(req.OnTime) || !scheduleTimeRe.MatchString(req.OffTime) {
		writeBadRequest(w, "on_time and off_time must be HH:MM")
		return
	}

	sched := &registry.Schedule{
		ID:       "sch-" + uuid.NewString()[:8],
		DeviceID: dev.ID,
		OnTime:   req.OnTime,
		OffTime:  req.OffTime,
	}
	if err := s.registry.CreateSchedule(r.Context(), sched); err != nil {
		s.logger.Error("creating schedule failed", "device_id", dev.ID, "error", err)
		writeInternalError(w, "failed to create schedule")
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

// handleGetSchedule returns a single schedule, access-checked through its device.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.scheduleForCaller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// handleDeleteSchedule removes a schedule, access-checked through its device.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.scheduleForCaller(w, r)
	if !ok {
		return
	}

	if err := s.registry.DeleteSchedule(r.Context(), sched.ID); err != nil {
		s.logger.Error("deleting schedule failed", "schedule_id", sched.ID, "error", err)
		writeInternalError(w, "failed to delete schedule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": sched.ID})
}

// scheduleForCaller loads the schedule from the URL and verifies the caller
// may access its device. Writes the error response on failure.
func (s *Server) scheduleForCaller(w http.ResponseWriter, r *http.Request) (*registry.Schedule, bool) {
	sched, err := s.registry.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return nil, false
		}
		writeInternalError(w, "failed to load schedule")
		return nil, false
	}

	ok, err := s.registry.CanAccess(r.Context(), sched.DeviceID, userIDFrom(r.Context()))
	if err != nil {
		writeInternalError(w, "failed to check access")
		return nil, false
	}
	if !ok {
		writeForbidden(w, "no access to this device")
		return nil, false
	}
	return sched, true
}

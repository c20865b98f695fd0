package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartlight/smartlight-core/internal/bridge"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// createDeviceRequest is the request body for POST /devices.
// Token is optional; one is generated when omitted.
type createDeviceRequest struct {
	Name   string `json:"name"`
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
}

// updateDeviceRequest is the request body for PATCH /devices/{id}.
// The token is immutable; only name and room can change.
type updateDeviceRequest struct {
	Name   string `json:"name"`
	RoomID string `json:"room_id"`
}

// setStatusRequest is the request body for PUT /devices/{id}/status.
// Status accepts the same payload variants as a session control intent:
// a string ("ON", "off", "1"), a bool, or a number.
type setStatusRequest struct {
	Status json.RawMessage `json:"status"`
}

// commandResponse is returned by command endpoints.
type commandResponse struct {
	Device        *registry.Device `json:"device,omitempty"`
	Confirmed     bool             `json:"confirmed"`
	PublishFailed bool             `json:"publish_failed,omitempty"`
	Deleted       bool             `json:"deleted,omitempty"`
}

// handleListDevices returns every device visible to the caller, owned or
// shared, deduplicated.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListDevicesByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleCreateDevice provisions a device in a room the caller owns.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.RoomID == "" {
		writeBadRequest(w, "name and room_id are required")
		return
	}

	if !s.callerOwnsRoom(w, r, req.RoomID) {
		return
	}

	token := req.Token
	if token == "" {
		token = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	dev := &registry.Device{
		ID:     "dev-" + uuid.NewString()[:8],
		Token:  token,
		Name:   req.Name,
		RoomID: req.RoomID,
	}
	if err := s.registry.CreateDevice(r.Context(), dev); err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateToken):
			writeConflict(w, "a device with that token already exists")
		case errors.Is(err, registry.ErrDuplicateName):
			writeConflict(w, "a device with that name already exists")
		default:
			s.logger.Error("creating device failed", "error", err)
			writeInternalError(w, "failed to create device")
		}
		return
	}
	writeJSON(w, http.StatusCreated, dev)
}

// handleGetDevice returns a single device the caller may access.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceForCaller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleUpdateDevice renames or moves a device. Home owner only; moving
// requires ownership of the destination room's home too.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceForCaller(w, r)
	if !ok {
		return
	}
	if !s.callerOwnsRoom(w, r, dev.RoomID) {
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name != "" {
		dev.Name = req.Name
	}
	if req.RoomID != "" && req.RoomID != dev.RoomID {
		if !s.callerOwnsRoom(w, r, req.RoomID) {
			return
		}
		dev.RoomID = req.RoomID
	}

	if err := s.registry.UpdateDevice(r.Context(), dev); err != nil {
		if errors.Is(err, registry.ErrDuplicateName) {
			writeConflict(w, "a device with that name already exists")
			return
		}
		s.logger.Error("updating device failed", "device_id", dev.ID, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device through the dispatcher's delete flow:
// the device is told to decommission itself, every watcher receives a
// deleted notice, then the registry row goes away.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceForCaller(w, r)
	if !ok {
		return
	}
	if s.dispatcher == nil {
		writeInternalError(w, "command dispatch unavailable")
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), userIDFrom(r.Context()), dev.Token, bridge.CommandDelete, false)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{
		Deleted:       result.Deleted,
		PublishFailed: result.PublishFailed,
	})
}

// handleSetDeviceStatus dispatches a command with confirmation: the call
// returns once the device echoes the new state, or 504 when the
// confirmation window expires (the optimistic state is retained either way).
func (s *Server) handleSetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceForCaller(w, r)
	if !ok {
		return
	}
	if s.dispatcher == nil {
		writeInternalError(w, "command dispatch unavailable")
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Status) == 0 {
		writeBadRequest(w, "status is required")
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), userIDFrom(r.Context()), dev.Token, rawPayloadString(req.Status), true)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{
		Device:        result.Device,
		Confirmed:     result.Confirmed,
		PublishFailed: result.PublishFailed,
	})
}

// handleSetDeviceShares replaces the device's direct share list. Home owner only.
func (s *Server) handleSetDeviceShares(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.deviceForCaller(w, r)
	if !ok {
		return
	}
	if !s.callerOwnsRoom(w, r, dev.RoomID) {
		return
	}

	var req sharesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.SetDeviceShares(r.Context(), dev.ID, req.UserIDs); err != nil {
		s.logger.Error("setting device shares failed", "device_id", dev.ID, "error", err)
		writeInternalError(w, "failed to update shares")
		return
	}
	dev.SharedWith = req.UserIDs
	writeJSON(w, http.StatusOK, dev)
}

// writeDispatchError maps dispatcher sentinels to HTTP responses.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrUnknownDevice):
		writeNotFound(w, "device not found")
	case errors.Is(err, bridge.ErrUnauthorized):
		writeForbidden(w, "no access to this device")
	case errors.Is(err, bridge.ErrInvalidPayload):
		writeBadRequest(w, "unrecognised command payload")
	case errors.Is(err, bridge.ErrConfirmationTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "device did not confirm in time")
	default:
		s.logger.Error("command dispatch failed", "error", err)
		writeInternalError(w, "command dispatch failed")
	}
}

// deviceForCaller loads the device from the URL and verifies the caller is
// in its authorized set. Writes the error response on failure.
func (s *Server) deviceForCaller(w http.ResponseWriter, r *http.Request) (*registry.Device, bool) {
	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		writeInternalError(w, "failed to load device")
		return nil, false
	}

	ok, err := s.registry.CanAccess(r.Context(), dev.ID, userIDFrom(r.Context()))
	if err != nil {
		writeInternalError(w, "failed to check access")
		return nil, false
	}
	if !ok {
		writeForbidden(w, "no access to this device")
		return nil, false
	}
	return dev, true
}

// callerOwnsRoom verifies the caller owns the home containing the room.
// Writes the error response on failure.
func (s *Server) callerOwnsRoom(w http.ResponseWriter, r *http.Request, roomID string) bool {
	room, err := s.registry.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, registry.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return false
		}
		writeInternalError(w, "failed to load room")
		return false
	}
	home, err := s.registry.GetHome(r.Context(), room.HomeID)
	if err != nil {
		writeInternalError(w, "failed to load home")
		return false
	}
	if home.OwnerID != userIDFrom(r.Context()) {
		writeForbidden(w, "only the home owner may do this")
		return false
	}
	return true
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartlight/smartlight-core/internal/registry"
)

// createRoomRequest is the request body for POST /rooms.
type createRoomRequest struct {
	Name   string `json:"name"`
	HomeID string `json:"home_id"`
}

// updateRoomRequest is the request body for PATCH /rooms/{id}.
type updateRoomRequest struct {
	Name string `json:"name"`
}

// handleListRooms returns the rooms of a home the caller belongs to.
// Routed as GET /homes/{id}/rooms.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	home, ok := s.homeForMember(w, r)
	if !ok {
		return
	}

	rooms, err := s.registry.ListRoomsByHome(r.Context(), home.ID)
	if err != nil {
		s.logger.Error("listing rooms failed", "home_id", home.ID, "error", err)
		writeInternalError(w, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "count": len(rooms)})
}

// handleCreateRoom creates a room in a home the caller owns.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.HomeID == "" {
		writeBadRequest(w, "name and home_id are required")
		return
	}

	home, err := s.registry.GetHome(r.Context(), req.HomeID)
	if err != nil {
		if errors.Is(err, registry.ErrHomeNotFound) {
			writeNotFound(w, "home not found")
			return
		}
		writeInternalError(w, "failed to load home")
		return
	}
	if home.OwnerID != userIDFrom(r.Context()) {
		writeForbidden(w, "only the home owner may add rooms")
		return
	}

	room := &registry.Room{
		ID:     "room-" + uuid.NewString()[:8],
		Name:   req.Name,
		HomeID: home.ID,
	}
	if err := s.registry.CreateRoom(r.Context(), room); err != nil {
		if errors.Is(err, registry.ErrDuplicateName) {
			writeConflict(w, "a room with that name already exists in this home")
			return
		}
		s.logger.Error("creating room failed", "error", err)
		writeInternalError(w, "failed to create room")
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// handleGetRoom returns a single room visible to the caller.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, _, ok := s.roomForCaller(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleUpdateRoom renames a room. Home owner only.
func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	room, _, ok := s.roomForCaller(w, r, true)
	if !ok {
		return
	}

	var req updateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	room.Name = req.Name
	if err := s.registry.UpdateRoom(r.Context(), room); err != nil {
		if errors.Is(err, registry.ErrDuplicateName) {
			writeConflict(w, "a room with that name already exists in this home")
			return
		}
		s.logger.Error("updating room failed", "room_id", room.ID, "error", err)
		writeInternalError(w, "failed to update room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleDeleteRoom deletes an empty room. Home owner only.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	room, _, ok := s.roomForCaller(w, r, true)
	if !ok {
		return
	}

	if err := s.registry.DeleteRoom(r.Context(), room.ID); err != nil {
		if errors.Is(err, registry.ErrRoomHasDevices) {
			writeConflict(w, "room still contains devices")
			return
		}
		s.logger.Error("deleting room failed", "room_id", room.ID, "error", err)
		writeInternalError(w, "failed to delete room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": room.ID})
}

// roomForCaller loads the room from the URL and verifies access through its
// home: membership for reads, ownership when ownerOnly is set. Writes the
// error response on failure.
func (s *Server) roomForCaller(w http.ResponseWriter, r *http.Request, ownerOnly bool) (*registry.Room, *registry.Home, bool) {
	room, err := s.registry.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return nil, nil, false
		}
		writeInternalError(w, "failed to load room")
		return nil, nil, false
	}

	home, err := s.registry.GetHome(r.Context(), room.HomeID)
	if err != nil {
		writeInternalError(w, "failed to load home")
		return nil, nil, false
	}

	userID := userIDFrom(r.Context())
	if home.OwnerID == userID {
		return room, home, true
	}
	if ownerOnly {
		writeForbidden(w, "only the home owner may do this")
		return nil, nil, false
	}
	for _, id := range home.SharedWith {
		if id == userID {
			return room, home, true
		}
	}
	writeForbidden(w, "not a member of this home")
	return nil, nil, false
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartlight/smartlight-core/internal/registry"
)

// homeRequest is the request body for creating or updating a home.
type homeRequest struct {
	Name string `json:"name"`
}

// sharesRequest is the request body for replacing a share list.
type sharesRequest struct {
	UserIDs []string `json:"user_ids"`
}

// handleListHomes returns every home the caller owns or is shared into.
func (s *Server) handleListHomes(w http.ResponseWriter, r *http.Request) {
	homes, err := s.registry.ListHomesByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.logger.Error("listing homes failed", "error", err)
		writeInternalError(w, "failed to list homes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"homes": homes, "count": len(homes)})
}

// handleCreateHome creates a home owned by the caller.
func (s *Server) handleCreateHome(w http.ResponseWriter, r *http.Request) {
	var req homeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	home := &registry.Home{
		ID:      "home-" + uuid.NewString()[:8],
		Name:    req.Name,
		OwnerID: userIDFrom(r.Context()),
	}
	if err := s.registry.CreateHome(r.Context(), home); err != nil {
		if errors.Is(err, registry.ErrDuplicateName) {
			writeConflict(w, "a home with that name already exists")
			return
		}
		s.logger.Error("creating home failed", "error", err)
		writeInternalError(w, "failed to create home")
		return
	}
	writeJSON(w, http.StatusCreated, home)
}

// handleGetHome returns a single home visible to the caller.
func (s *Server) handleGetHome(w http.ResponseWriter, r *http.Request) {
	home, ok := s.homeForMember(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, home)
}

// handleUpdateHome renames a home. Owner only.
func (s *Server) handleUpdateHome(w http.ResponseWriter, r *http.Request) {
	home, ok := s.homeForOwner(w, r)
	if !ok {
		return
	}

	var req homeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	home.Name = req.Name
	if err := s.registry.UpdateHome(r.Context(), home); err != nil {
		if errors.Is(err, registry.ErrDuplicateName) {
			writeConflict(w, "a home with that name already exists")
			return
		}
		s.logger.Error("updating home failed", "home_id", home.ID, "error", err)
		writeInternalError(w, "failed to update home")
		return
	}
	writeJSON(w, http.StatusOK, home)
}

// handleDeleteHome deletes an empty home. Owner only.
func (s *Server) handleDeleteHome(w http.ResponseWriter, r *http.Request) {
	home, ok := s.homeForOwner(w, r)
	if !ok {
		return
	}

	if err := s.registry.DeleteHome(r.Context(), home.ID); err != nil {
		if errors.Is(err, registry.ErrHomeHasRooms) {
			writeConflict(w, "home still contains rooms")
			return
		}
		s.logger.Error("deleting home failed", "home_id", home.ID, "error", err)
		writeInternalError(w, "failed to delete home")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": home.ID})
}

// handleSetHomeShares replaces the home's share list. Owner only. Shared
// users see every device in the home; the change is effective on the next
// authorization resolution (shares are never cached).
func (s *Server) handleSetHomeShares(w http.ResponseWriter, r *http.Request) {
	home, ok := s.homeForOwner(w, r)
	if !ok {
		return
	}

	var req sharesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.SetHomeShares(r.Context(), home.ID, req.UserIDs); err != nil {
		s.logger.Error("setting home shares failed", "home_id", home.ID, "error", err)
		writeInternalError(w, "failed to update shares")
		return
	}
	home.SharedWith = req.UserIDs
	writeJSON(w, http.StatusOK, home)
}

// homeForMember loads the home from the URL and verifies the caller is the
// owner or a shared user. Writes the error response on failure.
func (s *Server) homeForMember(w http.ResponseWriter, r *http.Request) (*registry.Home, bool) {
	home, err := s.registry.GetHome(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrHomeNotFound) {
			writeNotFound(w, "home not found")
			return nil, false
		}
		writeInternalError(w, "failed to load home")
		return nil, false
	}

	userID := userIDFrom(r.Context())
	if home.OwnerID == userID {
		return home, true
	}
	for _, id := range home.SharedWith {
		if id == userID {
			return home, true
		}
	}
	writeForbidden(w, "not a member of this home")
	return nil, false
}

// homeForOwner loads the home from the URL and verifies the caller owns it.
func (s *Server) homeForOwner(w http.ResponseWriter, r *http.Request) (*registry.Home, bool) {
	home, err := s.registry.GetHome(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrHomeNotFound) {
			writeNotFound(w, "home not found")
			return nil, false
		}
		writeInternalError(w, "failed to load home")
		return nil, false
	}

	if home.OwnerID != userIDFrom(r.Context()) {
		writeForbidden(w, "only the home owner may do this")
		return nil, false
	}
	return home, true
}

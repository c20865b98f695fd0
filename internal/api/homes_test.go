package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestListHomes_OwnerAndShared(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	for _, user := range []struct {
		id, name string
		want     int
	}{
		{"user-alice", "alice", 1}, // owner
		{"user-bob", "bob", 1},     // home-shared
		{"user-carol", "carol", 0}, // outsider
	} {
		w := doJSON(t, router, http.MethodGet, "/api/v1/homes", bearerFor(t, user.id, user.name), "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body: %s", user.name, w.Code, w.Body.String())
		}
		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if int(resp["count"].(float64)) != user.want {
			t.Errorf("%s: count = %v, want %d", user.name, resp["count"], user.want)
		}
	}
}

func TestCreateHome(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPost, "/api/v1/homes", bearerFor(t, "user-carol", "carol"), `{"name":"Carol Cottage"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["owner_id"] != "user-carol" {
		t.Errorf("owner_id = %v, want user-carol", resp["owner_id"])
	}

	// Duplicate name is a conflict.
	dup := doJSON(t, router, http.MethodPost, "/api/v1/homes", bearerFor(t, "user-carol", "carol"), `{"name":"Carol Cottage"}`)
	if dup.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want %d", dup.Code, http.StatusConflict)
	}
}

func TestGetHome_MembershipRequired(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	if w := doJSON(t, router, http.MethodGet, "/api/v1/homes/home-1", bearerFor(t, "user-bob", "bob"), ""); w.Code != http.StatusOK {
		t.Errorf("shared member status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/homes/home-1", bearerFor(t, "user-carol", "carol"), ""); w.Code != http.StatusForbidden {
		t.Errorf("outsider status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/homes/home-missing", bearerFor(t, "user-alice", "alice"), ""); w.Code != http.StatusNotFound {
		t.Errorf("missing home status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUpdateHome_OwnerOnly(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	if w := doJSON(t, router, http.MethodPatch, "/api/v1/homes/home-1", bearerFor(t, "user-bob", "bob"), `{"name":"Bob House"}`); w.Code != http.StatusForbidden {
		t.Errorf("shared member rename status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if w := doJSON(t, router, http.MethodPatch, "/api/v1/homes/home-1", bearerFor(t, "user-alice", "alice"), `{"name":"Renamed House"}`); w.Code != http.StatusOK {
		t.Errorf("owner rename status = %d, body: %s", w.Code, w.Body.String())
	}
}

func TestDeleteHome_BlockedByRooms(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodDelete, "/api/v1/homes/home-1", bearerFor(t, "user-alice", "alice"), "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d (home still has rooms)", w.Code, http.StatusConflict)
	}
}

func TestSetHomeShares(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	// Owner replaces the share list with carol only.
	w := doJSON(t, router, http.MethodPut, "/api/v1/homes/home-1/shares", bearerFor(t, "user-alice", "alice"), `{"user_ids":["user-carol"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	// Carol now sees the home's devices; bob no longer does.
	if w := doJSON(t, router, http.MethodGet, "/api/v1/devices/dev-1", bearerFor(t, "user-carol", "carol"), ""); w.Code != http.StatusOK {
		t.Errorf("carol device access after share status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/devices/dev-1", bearerFor(t, "user-bob", "bob"), ""); w.Code != http.StatusForbidden {
		t.Errorf("bob device access after unshare status = %d, want %d", w.Code, http.StatusForbidden)
	}

	// Non-owners may not touch shares.
	if w := doJSON(t, router, http.MethodPut, "/api/v1/homes/home-1/shares", bearerFor(t, "user-carol", "carol"), `{"user_ids":[]}`); w.Code != http.StatusForbidden {
		t.Errorf("non-owner share edit status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRooms_CRUD(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	alice := bearerFor(t, "user-alice", "alice")

	// List through the home.
	w := doJSON(t, router, http.MethodGet, "/api/v1/homes/home-1/rooms", alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body: %s", w.Code, w.Body.String())
	}
	var listResp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if int(listResp["count"].(float64)) != 2 {
		t.Errorf("room count = %v, want 2", listResp["count"])
	}

	// Create, rename, delete.
	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms", alice, `{"name":"Hallway","home_id":"home-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}
	var room map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &room); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	roomID := room["id"].(string)

	if w := doJSON(t, router, http.MethodPatch, "/api/v1/rooms/"+roomID, alice, `{"name":"Corridor"}`); w.Code != http.StatusOK {
		t.Errorf("rename status = %d, body: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, router, http.MethodDelete, "/api/v1/rooms/"+roomID, alice, ""); w.Code != http.StatusOK {
		t.Errorf("delete status = %d, body: %s", w.Code, w.Body.String())
	}
}

func TestCreateRoom_SharedMemberForbidden(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPost, "/api/v1/rooms", bearerFor(t, "user-bob", "bob"), `{"name":"Bob Cave","home_id":"home-1"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestDeleteRoom_BlockedByDevices(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodDelete, "/api/v1/rooms/room-living", bearerFor(t, "user-alice", "alice"), "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d (room still has devices)", w.Code, http.StatusConflict)
	}
}

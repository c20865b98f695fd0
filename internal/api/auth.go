package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/smartlight/smartlight-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is the response body for login and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// refreshRequest is the request body for POST /auth/refresh and /auth/logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// userResponse is the sanitized user representation (no password hash).
type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// handleLogin authenticates a user and issues an access/refresh token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		// Identical response for unknown user and wrong password so the
		// endpoint cannot be used to enumerate accounts.
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login lookup failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}
	if !user.IsActive {
		writeUnauthorized(w, "account is disabled")
		return
	}

	resp, err := s.issueTokens(r, user)
	if err != nil {
		s.logger.Error("token issue failed", "user_id", user.ID, "error", err)
		writeInternalError(w, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh rotates a refresh token and issues a new access token.
// The presented token is revoked as part of rotation, so a stolen token
// can be used at most once.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	stored, err := s.tokens.GetByTokenHash(r.Context(), auth.HashToken(req.RefreshToken))
	if err != nil {
		writeUnauthorized(w, "invalid refresh token")
		return
	}
	if stored.Revoked {
		writeUnauthorized(w, "refresh token revoked")
		return
	}
	if time.Now().After(stored.ExpiresAt) {
		writeUnauthorized(w, "refresh token expired")
		return
	}

	user, err := s.users.GetByID(r.Context(), stored.UserID)
	if err != nil || !user.IsActive {
		writeUnauthorized(w, "invalid refresh token")
		return
	}

	accessToken, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		writeInternalError(w, "refresh failed")
		return
	}

	newRaw, err := auth.GenerateRefreshToken()
	if err != nil {
		writeInternalError(w, "refresh failed")
		return
	}
	newToken := &auth.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashToken(newRaw),
		ExpiresAt: time.Now().Add(time.Duration(s.secCfg.JWT.RefreshTokenTTL) * time.Minute),
	}
	if err := s.tokens.Rotate(r.Context(), stored.ID, newToken); err != nil {
		s.logger.Error("refresh token rotation failed", "user_id", user.ID, "error", err)
		writeInternalError(w, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newRaw,
		TokenType:    "Bearer",
		ExpiresIn:    accessTTLSeconds(s.secCfg.JWT.AccessTokenTTL),
	})
}

// handleMe returns the authenticated user's profile.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "user no longer exists")
			return
		}
		writeInternalError(w, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	})
}

// handleLogout revokes the presented refresh token. The access token stays
// valid until expiry (signature-only validation); clients discard it.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	stored, err := s.tokens.GetByTokenHash(r.Context(), auth.HashToken(req.RefreshToken))
	if err == nil && stored.UserID == userIDFrom(r.Context()) {
		if err := s.tokens.Revoke(r.Context(), stored.ID); err != nil {
			s.logger.Warn("refresh token revoke failed", "error", err)
		}
	}
	// Revoking an unknown token is a no-op success.
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// issueTokens creates an access/refresh pair for an authenticated user.
func (s *Server) issueTokens(r *http.Request, user *auth.User) (*tokenResponse, error) {
	accessToken, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	raw, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	token := &auth.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: time.Now().Add(time.Duration(s.secCfg.JWT.RefreshTokenTTL) * time.Minute),
	}
	if err := s.tokens.Create(r.Context(), token); err != nil {
		return nil, err
	}

	return &tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: raw,
		TokenType:    "Bearer",
		ExpiresIn:    accessTTLSeconds(s.secCfg.JWT.AccessTokenTTL),
	}, nil
}

// accessTTLSeconds converts the configured access TTL (minutes) to seconds,
// applying the same default as token generation.
func accessTTLSeconds(ttlMinutes int) int {
	if ttlMinutes <= 0 {
		ttlMinutes = 15
	}
	return ttlMinutes * 60
}

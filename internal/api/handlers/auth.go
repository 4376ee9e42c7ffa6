package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spatialdeez/microstore/internal/api/httpx"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/middleware"
	"github.com/spatialdeez/microstore/internal/models"
	"github.com/spatialdeez/microstore/internal/services"
)

type AuthHandler struct {
	TM       *auth.TokenManager
	Sessions *auth.Sessions
	Users    *services.UserService
}

func NewAuthHandler(tm *auth.TokenManager, s *auth.Sessions, us *services.UserService) *AuthHandler {
	return &AuthHandler{TM: tm, Sessions: s, Users: us}
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

type loginResp struct {
	User models.User `json:"user"`
	tokenResp
}

func (h *AuthHandler) tokens(u models.User) (tokenResp, error) {
	pair, err := h.TM.GeneratePair(u.ID, u.Role())
	if err != nil {
		return tokenResp{}, err
	}
	return tokenResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(time.Until(pair.ExpiresAt).Seconds()),
	}, nil
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	u, err := h.Users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

// Login checks credentials, starts a cookie session and also returns a
// token pair for API clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	u, err := h.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	if err := h.Sessions.Login(w, r, u.ID, req.Remember); err != nil {
		slog.Error("save session", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "session failed", nil)
		return
	}
	tok, err := h.tokens(u)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResp{User: u, tokenResp: tok})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(w, r); err != nil {
		slog.Error("clear session", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	claims, err := h.TM.ParseRefresh(req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid refresh token", nil)
		return
	}
	p, err := h.Users.Principal(r.Context(), claims.UserID)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid refresh token", nil)
		return
	}
	tok, err := h.tokens(models.User{ID: p.UserID, Admin: p.Admin})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tok)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Me(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

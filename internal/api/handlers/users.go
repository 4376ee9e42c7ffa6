package handlers

import (
	"net/http"

	"github.com/spatialdeez/microstore/internal/api/httpx"
	"github.com/spatialdeez/microstore/internal/middleware"
	"github.com/spatialdeez/microstore/internal/services"
)

type UserHandler struct {
	Users *services.UserService
}

func NewUserHandler(us *services.UserService) *UserHandler {
	return &UserHandler{Users: us}
}

type userReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

func (req userReq) input() services.UserInput {
	return services.UserInput{Username: req.Username, Password: req.Password, Admin: req.Admin}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Users.List(r.Context(), middleware.PrincipalFrom(r.Context()),
		queryInt(r, "page", 1), queryInt(r, "per_page", 0))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	u, err := h.Users.Create(r.Context(), middleware.PrincipalFrom(r.Context()), req.input())
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req userReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	u, err := h.Users.Update(r.Context(), middleware.PrincipalFrom(r.Context()), id, req.input())
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Users.Delete(r.Context(), middleware.PrincipalFrom(r.Context()), id); err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/spatialdeez/microstore/internal/api/httpx"
	"github.com/spatialdeez/microstore/internal/api/validate"
	"github.com/spatialdeez/microstore/internal/middleware"
	"github.com/spatialdeez/microstore/internal/services"
)

type CartHandler struct {
	Carts *services.CartService
}

func NewCartHandler(cs *services.CartService) *CartHandler {
	return &CartHandler{Carts: cs}
}

func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	v, err := h.Carts.View(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

type addItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"` // defaults to 1
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	q := 1
	if req.Quantity != nil {
		q = *req.Quantity
	}
	v, err := h.Carts.AddItem(r.Context(), middleware.PrincipalFrom(r.Context()), req.ProductID, q)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(w, r, "productID")
	if !ok {
		return
	}
	q := 1
	if s := r.URL.Query().Get("quantity"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			httpx.WriteServiceError(w, validate.Errs{{Field: "quantity", Msg: "must be an integer"}})
			return
		}
		q = n
	}
	v, err := h.Carts.RemoveItem(r.Context(), middleware.PrincipalFrom(r.Context()), productID, q)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (h *CartHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	rc, err := h.Carts.Purchase(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rc)
}

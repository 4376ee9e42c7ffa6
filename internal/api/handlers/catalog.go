package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/spatialdeez/microstore/internal/api/httpx"
	"github.com/spatialdeez/microstore/internal/middleware"
	"github.com/spatialdeez/microstore/internal/services"
)

const maxUpload = 10 << 20

type CatalogHandler struct {
	Catalog *services.CatalogService
}

func NewCatalogHandler(cs *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{Catalog: cs}
}

// ---------- products ----------

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.Catalog.ListProducts(r.Context(), queryInt(r, "page", 1), queryInt(r, "per_page", 0))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// productForm reads a multipart product form. The returned cleanup closes
// the uploaded file.
func productForm(w http.ResponseWriter, r *http.Request) (services.ProductInput, func(), bool) {
	noop := func() {}
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "expected multipart form", nil)
		return services.ProductInput{}, noop, false
	}
	catID, _ := strconv.ParseInt(r.FormValue("category_id"), 10, 64)
	in := services.ProductInput{
		Name:       r.FormValue("name"),
		Price:      r.FormValue("price"),
		CategoryID: catID,
	}
	f, hdr, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, noop, true
	case err != nil:
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "unreadable image", nil)
		return services.ProductInput{}, noop, false
	}
	in.Image = &services.Upload{Filename: hdr.Filename, Body: f}
	return in, func() { _ = f.Close() }, true
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, done, ok := productForm(w, r)
	defer done()
	if !ok {
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), middleware.PrincipalFrom(r.Context()), in)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	in, done, ok := productForm(w, r)
	defer done()
	if !ok {
		return
	}
	p, err := h.Catalog.UpdateProduct(r.Context(), middleware.PrincipalFrom(r.Context()), id, in)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Catalog.DeleteProduct(r.Context(), middleware.PrincipalFrom(r.Context()), id); err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- categories ----------

type categoryReq struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cs)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Catalog.GetCategory(r.Context(), id)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	c, err := h.Catalog.CreateCategory(r.Context(), middleware.PrincipalFrom(r.Context()), req.Name)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req categoryReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	c, err := h.Catalog.RenameCategory(r.Context(), middleware.PrincipalFrom(r.Context()), id, req.Name)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Catalog.DeleteCategory(r.Context(), middleware.PrincipalFrom(r.Context()), id); err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

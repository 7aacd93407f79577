package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evercart/checkout/internal/cart"
	"github.com/evercart/checkout/internal/catalog"
)

type CartHandler struct {
	Svc      *cart.Service
	Products *catalog.Repo
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.view)
	r.Post("/cart/items", h.add)
	r.Patch("/cart/items/{id}", h.updateQty)
	r.Delete("/cart/items/{id}", h.remove)
	r.Delete("/cart", h.clear)
	r.Get("/products", h.listProducts)
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" {
		writeErr(w, http.StatusBadRequest, "missing product_id")
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	item, err := h.Svc.Add(ctx, uid, req.ProductID, req.Qty)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type updateQtyReq struct {
	Qty int `json:"qty"`
}

func (h *CartHandler) updateQty(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "id")
	var req updateQtyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	item, err := h.Svc.UpdateQty(ctx, uid, itemID, req.Qty)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	if err := h.Svc.Remove(ctx, uid, chi.URLParam(r, "id")); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	if err := h.Svc.Clear(ctx, uid); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) view(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	v, err := h.Svc.View(ctx, uid)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.List(ctx)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

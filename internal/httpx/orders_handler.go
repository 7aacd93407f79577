package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/evercart/checkout/internal/orders"
	"github.com/evercart/checkout/internal/redisx"
)

type OrdersHandler struct {
	Svc        *orders.Service
	Redis      *redis.Client
	AdminToken string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.checkout)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/cancel", h.cancel)
	r.Post("/orders/{id}/status", h.setStatus)
}

type checkoutReq struct {
	ShippingAddress    string `json:"shipping_address"`
	ShippingCity       string `json:"shipping_city"`
	ShippingPostalCode string `json:"shipping_postal_code"`
	ShippingCountry    string `json:"shipping_country"`
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ShippingAddress == "" {
		writeErr(w, http.StatusBadRequest, "missing shipping_address")
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	o, err := h.Svc.Checkout(ctx, uid, orders.ShippingAddress{
		Address:    req.ShippingAddress,
		City:       req.ShippingCity,
		PostalCode: req.ShippingPostalCode,
		Country:    req.ShippingCountry,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	h.cacheStatus(r, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	os, err := h.Svc.ListByUser(ctx, uid)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if os == nil {
		os = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, os)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	o, err := h.Svc.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if o.UserID != uid {
		writeErr(w, http.StatusNotFound, orders.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus serves the Redis cache first and falls back to the database,
// re-priming the cache on a miss. The cached payload carries the owner id so
// the ownership check holds on cache hits too.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := reqCtx(r)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		var cached redisx.CachedStatus
		if json.Unmarshal([]byte(s), &cached) == nil && cached.Status != "" {
			if cached.UserID != uid {
				writeErr(w, http.StatusNotFound, orders.ErrNotFound.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": cached.Status})
			return
		}
	}

	o, err := h.Svc.Get(ctx, orderID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if o.UserID != uid {
		writeErr(w, http.StatusNotFound, orders.ErrNotFound.Error())
		return
	}
	_ = h.Redis.Set(ctx, key, redisx.StatusPayload(o.UserID, string(o.Status)), redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, map[string]string{"status": string(o.Status)})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	o, err := h.Svc.Get(ctx, orderID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if o.UserID != uid {
		writeErr(w, http.StatusNotFound, orders.ErrNotFound.Error())
		return
	}

	o, err = h.Svc.Cancel(ctx, orderID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, o)
}

type setStatusReq struct {
	Status string `json:"status"`
	Force  bool   `json:"force"` // admin override around the lifecycle graph
}

// setStatus is the operational endpoint for shipping/delivery updates and the
// admin escape hatch.
func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	if h.AdminToken == "" || r.Header.Get("X-Admin-Token") != h.AdminToken {
		writeErr(w, http.StatusUnauthorized, "admin token required")
		return
	}
	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	var (
		o   orders.Order
		err error
	)
	if req.Force {
		o, err = h.Svc.AdminOverride(ctx, orderID, orders.Status(req.Status))
	} else {
		o, err = h.Svc.Transition(ctx, orderID, orders.Status(req.Status))
	}
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheStatus(r *http.Request, o orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(r.Context(), key, redisx.StatusPayload(o.UserID, string(o.Status)), redisx.TTLStatusCache).Err()
}

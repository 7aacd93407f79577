package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evercart/checkout/internal/payments"
)

type PaymentsHandler struct {
	Svc *payments.Service
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments/intent", h.createIntent)
	r.Post("/payments/confirm", h.confirm)
}

type createIntentReq struct {
	OrderID string `json:"order_id"`
}

type createIntentResp struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	AmountCents     int    `json:"amount_cents"`
	Currency        string `json:"currency"`
}

func (h *PaymentsHandler) createIntent(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req createIntentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		writeErr(w, http.StatusBadRequest, "missing order_id")
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	p, err := h.Svc.CreateIntent(ctx, uid, req.OrderID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createIntentResp{
		PaymentIntentID: p.IntentID,
		ClientSecret:    p.ClientSecret,
		AmountCents:     p.AmountCents,
		Currency:        "usd",
	})
}

type confirmReq struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

func (h *PaymentsHandler) confirm(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req confirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PaymentIntentID == "" {
		writeErr(w, http.StatusBadRequest, "missing payment_intent_id")
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	ref, err := h.Svc.Confirm(ctx, uid, req.PaymentIntentID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	// local Payment state is not updated here; the webhook event is the
	// source of truth for the transition
	writeJSON(w, http.StatusOK, ref)
}

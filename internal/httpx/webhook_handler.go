package httpx

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/payments"
)

// WebhookHandler receives signed events from the payment processor. The
// signature is verified before the body is parsed; an invalid signature is
// rejected with no state change.
type WebhookHandler struct {
	Reconciler *payments.Reconciler
	Secret     string
	Tolerance  time.Duration
	Log        *zap.Logger
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/payment", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "read body")
		return
	}

	sig := r.Header.Get(payments.SignatureHeader)
	if err := payments.VerifySignature(body, sig, h.Secret, h.Tolerance, time.Now()); err != nil {
		h.Log.Warn("webhook_signature_rejected", zap.Error(err))
		writeErr(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := payments.ParseEvent(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.Reconciler.HandleEvent(r.Context(), ev); err != nil {
		// non-2xx makes the processor redeliver; idempotency makes that safe
		h.Log.Error("webhook_event_failed",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
			zap.Error(err),
		)
		writeErr(w, http.StatusInternalServerError, "event processing failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHTTPGatewayCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("auth header = %q", got)
		}
		var req intentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.AmountCents != 2599 || req.Metadata["order_id"] != "order-1" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(intentResponse{
			ID:           "pi_1",
			ClientSecret: "pi_1_secret",
			Status:       "requires_confirmation",
		})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test", time.Second, zap.NewNop())
	ref, err := g.CreateIntent(context.Background(), "order-1", 2599)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if ref.IntentID != "pi_1" || ref.ClientSecret != "pi_1_secret" {
		t.Errorf("ref = %+v", ref)
	}
}

func TestHTTPGatewayRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "card declined"},
		})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test", time.Second, zap.NewNop())
	_, err := g.ConfirmIntent(context.Background(), "pi_1")
	if !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("err = %v, want ErrGatewayRejected", err)
	}
}

func TestHTTPGatewayServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test", time.Second, zap.NewNop())
	_, err := g.CreateIntent(context.Background(), "order-1", 100)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
}

func TestHTTPGatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test", 20*time.Millisecond, zap.NewNop())
	_, err := g.CreateIntent(context.Background(), "order-1", 100)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
}

func TestHTTPGatewayConnectionRefused(t *testing.T) {
	// point at a closed server
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test", time.Second, zap.NewNop())
	_, err := g.CreateIntent(context.Background(), "order-1", 100)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
}

package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/notify"
	"github.com/evercart/checkout/internal/orders"
	"github.com/evercart/checkout/internal/redisx"
)

// stubOrderStore serves a fixed set of orders; mutations are not exercised here.
type stubOrderStore struct{ os map[string]orders.Order }

func (s *stubOrderStore) CreateFromCart(ctx context.Context, userID string, ship orders.ShippingAddress) (orders.Order, error) {
	return orders.Order{}, orders.ErrEmptyCart
}

func (s *stubOrderStore) Get(ctx context.Context, orderID string) (orders.Order, error) {
	o, ok := s.os[orderID]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (s *stubOrderStore) ListByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	return nil, nil
}

func (s *stubOrderStore) SetStatus(ctx context.Context, orderID string, from, to orders.Status) (bool, error) {
	return false, nil
}

func (s *stubOrderStore) CancelRestock(ctx context.Context, orderID string, from orders.Status) (bool, error) {
	return false, nil
}

func newOrdersServer(store *stubOrderStore) *httptest.Server {
	h := &OrdersHandler{
		Svc: &orders.Service{Store: store, Notify: notify.Nop{}, Log: zap.NewNop()},
		// unreachable Redis: every lookup is a cache miss, writes are dropped
		Redis: redisx.New("127.0.0.1:1"),
	}
	r := NewRouter()
	h.Register(r)
	return httptest.NewServer(r)
}

func TestGetStatusOwnership(t *testing.T) {
	store := &stubOrderStore{os: map[string]orders.Order{
		"order-1": {ID: "order-1", UserID: "u1", Status: orders.StatusPending},
	}}
	srv := newOrdersServer(store)
	defer srv.Close()

	do := func(uid string) *http.Response {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/orders/order-1/status", nil)
		if uid != "" {
			req.Header.Set(headerUserID, uid)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	resp := do("")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no identity: status = %d, want 401", resp.StatusCode)
	}

	resp = do("u2")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign user: status = %d, want 404", resp.StatusCode)
	}

	resp = do("u1")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner: status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "PENDING" {
		t.Errorf("status = %q, want PENDING", body["status"])
	}
}

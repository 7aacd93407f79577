package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// IntentRef is the processor's handle for an in-progress charge attempt.
type IntentRef struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
}

// Gateway wraps the external payment processor. Implementations never touch
// order state; the reconciliation handler is the single writer there.
type Gateway interface {
	CreateIntent(ctx context.Context, orderID string, amountCents int) (IntentRef, error)
	ConfirmIntent(ctx context.Context, intentID string) (IntentRef, error)
}

// HTTPGateway talks to the processor's REST API with a bounded timeout.
// Timeouts and 5xx map to ErrGatewayUnavailable, 4xx to ErrGatewayRejected.
type HTTPGateway struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Log     *zap.Logger
}

var _ Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
		Log:     log,
	}
}

type intentRequest struct {
	AmountCents int               `json:"amount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Error        struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, orderID string, amountCents int) (IntentRef, error) {
	body := intentRequest{
		AmountCents: amountCents,
		Currency:    "usd",
		Metadata:    map[string]string{"order_id": orderID},
	}
	return g.call(ctx, http.MethodPost, "/v1/payment_intents", body)
}

func (g *HTTPGateway) ConfirmIntent(ctx context.Context, intentID string) (IntentRef, error) {
	return g.call(ctx, http.MethodPost, "/v1/payment_intents/"+intentID+"/confirm", nil)
}

func (g *HTTPGateway) call(ctx context.Context, method, path string, body any) (IntentRef, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return IntentRef{}, err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, buf)
	if err != nil {
		return IntentRef{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		// timeouts, DNS failures, refused connections: all retryable
		return IntentRef{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return IntentRef{}, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	var ir intentResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ir); err != nil && resp.StatusCode < 300 {
			return IntentRef{}, fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
		}
	}

	switch {
	case resp.StatusCode >= 500:
		g.Log.Warn("gateway_server_error", zap.Int("status", resp.StatusCode), zap.String("path", path))
		return IntentRef{}, fmt.Errorf("%w: processor returned %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg := ir.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return IntentRef{}, fmt.Errorf("%w: %s", ErrGatewayRejected, msg)
	}

	return IntentRef{IntentID: ir.ID, ClientSecret: ir.ClientSecret, Status: ir.Status}, nil
}

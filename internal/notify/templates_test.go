package notify

import (
	"strings"
	"testing"
)

func TestRenderKnownTemplates(t *testing.T) {
	ctx := map[string]string{
		"order_id":         "9f8e7d6c-5b4a-3928-1706-fedcba987654",
		"total":            "25.99",
		"shipping_address": "1 Main St\nSpringfield",
	}
	for _, tmpl := range []string{
		TemplateOrderConfirmation,
		TemplateOrderShipped,
		TemplateOrderDelivered,
		TemplateOrderCancelled,
	} {
		subject, body, err := Render(Message{Template: tmpl, Context: ctx})
		if err != nil {
			t.Fatalf("%s: %v", tmpl, err)
		}
		if subject == "" || body == "" {
			t.Errorf("%s rendered empty output", tmpl)
		}
		if !strings.Contains(subject, "#9f8e7d6c") {
			t.Errorf("%s subject %q missing shortened order id", tmpl, subject)
		}
		if !strings.Contains(body, ctx["order_id"]) {
			t.Errorf("%s body missing full order id", tmpl)
		}
	}
}

func TestRenderConfirmationIncludesTotal(t *testing.T) {
	_, body, err := Render(Message{
		Template: TemplateOrderConfirmation,
		Context:  map[string]string{"order_id": "order-1", "total": "17.50"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "$17.50") {
		t.Errorf("body missing total:\n%s", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, _, err := Render(Message{Template: "password_reset"}); err == nil {
		t.Fatal("unknown template must error")
	}
}

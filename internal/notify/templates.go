package notify

import (
	"fmt"
	"strings"
	"text/template"
)

type emailTemplate struct {
	subject string
	body    *template.Template
}

var emailTemplates = map[string]emailTemplate{
	TemplateOrderConfirmation: {
		subject: "Order Confirmation - #{{short .order_id}}",
		body: mustParse(TemplateOrderConfirmation, `Thank you for your order!

Order ID: {{.order_id}}
Total: ${{.total}}

We have received your payment and your order is now being processed.
You can track your order status at any time.
`),
	},
	TemplateOrderShipped: {
		subject: "Your order has shipped - #{{short .order_id}}",
		body: mustParse(TemplateOrderShipped, `Good news!

Your order {{.order_id}} is on its way.

Shipping to:
{{.shipping_address}}
`),
	},
	TemplateOrderDelivered: {
		subject: "Your order was delivered - #{{short .order_id}}",
		body: mustParse(TemplateOrderDelivered, `Your order {{.order_id}} has been delivered.

Thank you for shopping with us!
`),
	},
	TemplateOrderCancelled: {
		subject: "Order cancelled - #{{short .order_id}}",
		body: mustParse(TemplateOrderCancelled, `Your order {{.order_id}} has been cancelled.

If a payment went through, it will be refunded to your original payment method.
`),
	},
}

var templateFuncs = template.FuncMap{
	"short": func(s string) string {
		if len(s) > 8 {
			return s[:8]
		}
		return s
	},
}

func mustParse(name, body string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).Parse(body))
}

// Render produces the subject and plain-text body for a message.
func Render(msg Message) (subject, body string, err error) {
	t, ok := emailTemplates[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("notify: unknown template %q", msg.Template)
	}
	var sb strings.Builder
	st := template.Must(template.New("subject").Funcs(templateFuncs).Parse(t.subject))
	if err := st.Execute(&sb, msg.Context); err != nil {
		return "", "", err
	}
	subject = sb.String()

	var bb strings.Builder
	if err := t.body.Execute(&bb, msg.Context); err != nil {
		return "", "", err
	}
	return subject, bb.String(), nil
}

package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer delivers rendered messages over a plain SMTP relay.
type Mailer struct {
	Addr string // host:port of the relay
	From string
}

func (m *Mailer) Send(msg Message) error {
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)

	return smtp.SendMail(m.Addr, nil, m.From, []string{msg.Recipient}, []byte(b.String()))
}

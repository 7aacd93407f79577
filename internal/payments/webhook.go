package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the header the processor signs webhook deliveries with.
// Format: "t=<unix seconds>,v1=<hex hmac>[,v1=<hex hmac>...]", where the MAC
// is HMAC-SHA256 over "<t>.<raw body>". Multiple v1 entries appear during
// secret rotation.
const SignatureHeader = "Webhook-Signature"

var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// VerifySignature authenticates a webhook delivery before anything in the
// body is trusted. A tolerance of zero disables the timestamp check.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}
	ts, macs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age < -tolerance || age > tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	want := mac.Sum(nil)

	for _, got := range macs {
		raw, err := hex.DecodeString(got)
		if err != nil {
			continue
		}
		if hmac.Equal(raw, want) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func parseSignatureHeader(header string) (ts int64, macs []string, err error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing header", ErrInvalidSignature)
	}
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
		case "v1":
			macs = append(macs, v)
		}
	}
	if ts == 0 || len(macs) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}
	return ts, macs, nil
}

// Sign produces a header value for the given payload. Exists for tests and
// local tooling that plays the processor's role.
func Sign(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DefaultTolerance bounds how old a webhook timestamp may be before the
// delivery is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

// EventCheckoutCompleted is the event type emitted when a hosted checkout
// session finishes with a successful payment.
const EventCheckoutCompleted = "checkout.session.completed"

// Webhook verification errors. All of them fail closed: the handler must
// reject the delivery before touching any state.
var (
	ErrMissingSignature   = errors.New("missing Stripe-Signature header")
	ErrInvalidSignature   = errors.New("webhook signature verification failed")
	ErrSignatureTooOld    = errors.New("webhook timestamp outside tolerance")
	ErrMalformedSignature = errors.New("malformed Stripe-Signature header")
)

// Event is the subset of a webhook event the storefront consumes.
type Event struct {
	ID   string
	Type string

	// Session fields, populated for checkout.session.* events.
	SessionID         string
	ClientReferenceID string
	PaymentIntentID   string
	AmountTotal       int64
	Currency          string
}

// WebhookVerifier verifies and parses webhook deliveries signed with a shared
// endpoint secret.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier creates a verifier for the given endpoint secret. A zero
// tolerance falls back to DefaultTolerance.
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// VerifyAndParse checks the Stripe-Signature header against the payload and,
// on success, extracts the event fields. The signature scheme is
// "t=<unix>,v1=<hex hmac-sha256 of '<t>.<payload>'>"; any valid v1 entry
// accepts the delivery, and the timestamp must be within the tolerance.
func (v *WebhookVerifier) VerifyAndParse(payload []byte, sigHeader string) (*Event, error) {
	if sigHeader == "" {
		return nil, ErrMissingSignature
	}

	ts, sigs, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return nil, ErrSignatureTooOld
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	ok := false
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	return parseEvent(payload)
}

// parseSignatureHeader splits "t=...,v1=...,v1=..." into the timestamp and
// the decoded v1 signatures. Unknown schemes (v0 test deliveries) are skipped.
func parseSignatureHeader(header string) (ts int64, sigs [][]byte, err error) {
	for _, part := range strings.Split(header, ",") {
		k, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, ErrMalformedSignature
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
		case "v1":
			sig, err := hex.DecodeString(val)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, ErrMalformedSignature
	}
	return ts, sigs, nil
}

// parseEvent pulls the handful of fields we need out of the event JSON
// without materializing the whole provider object graph.
func parseEvent(payload []byte) (*Event, error) {
	var evt Event

	d := jx.DecodeBytes(payload)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := d.Str()
			evt.ID = s
			return err
		case "type":
			s, err := d.Str()
			evt.Type = s
			return err
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "object" {
					return d.Skip()
				}
				return parseSessionObject(d, &evt)
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "parse webhook event")
	}

	if evt.ID == "" || evt.Type == "" {
		return nil, errors.New("webhook event missing id or type")
	}
	return &evt, nil
}

func parseSessionObject(d *jx.Decoder, evt *Event) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := d.Str()
			evt.SessionID = s
			return err
		case "client_reference_id":
			return decodeNullableStr(d, &evt.ClientReferenceID)
		case "payment_intent":
			return decodeNullableStr(d, &evt.PaymentIntentID)
		case "amount_total":
			if d.Next() == jx.Null {
				return d.Null()
			}
			n, err := d.Int64()
			evt.AmountTotal = n
			return err
		case "currency":
			return decodeNullableStr(d, &evt.Currency)
		default:
			return d.Skip()
		}
	})
}

func decodeNullableStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	s, err := d.Str()
	*dst = s
	return err
}

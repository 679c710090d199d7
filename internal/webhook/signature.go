package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimestampTolerance bounds how old a signed webhook may be
const DefaultTimestampTolerance = 300 * time.Second

// Verifier checks inbound webhook signatures. An empty secret disables
// verification for local development; production config must set one.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}
	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// WithNow overrides the clock, used by tests
func (v *Verifier) WithNow(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Sign produces the header value `ts=<unix>,v1=<hex>` for a payload.
// Used by the mock provider and tests to produce valid deliveries.
func (v *Verifier) Sign(payload []byte, ts time.Time) string {
	id := extractEventID(payload)
	mac := computeSignature(v.secret, id, ts.Unix())
	return fmt.Sprintf("ts=%d,v1=%s", ts.Unix(), mac)
}

// Verify checks the `ts=<unix>,v1=<hex>` header against the payload.
// The timestamp boundary is inclusive: a delivery exactly at the
// tolerance is accepted.
func (v *Verifier) Verify(payload []byte, header string) error {
	if v.secret == "" {
		return nil
	}

	ts, sig, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := v.now().Unix() - ts
	if age < 0 {
		age = -age
	}
	if float64(age) > v.tolerance.Seconds() {
		return ierr.NewError("webhook timestamp outside tolerance").
			WithHint("Webhook timestamp is too old").
			WithReportableDetails(map[string]any{
				"age_seconds":       age,
				"tolerance_seconds": int64(v.tolerance.Seconds()),
			}).
			Mark(ierr.ErrWebhookReplay)
	}

	id := extractEventID(payload)
	expected := computeSignature(v.secret, id, ts)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ierr.NewError("webhook signature mismatch").
			WithHint("Webhook signature verification failed").
			Mark(ierr.ErrInvalidSignature)
	}
	return nil
}

// Event is a verified, parsed provider notification
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
	Created time.Time      `json:"created"`
}

// ConstructEvent verifies the signature then parses the payload. Signature
// failures, replays and malformed bodies each carry their own error mark.
func (v *Verifier) ConstructEvent(payload []byte, header string) (*Event, error) {
	if err := v.Verify(payload, header); err != nil {
		return nil, err
	}

	var raw struct {
		ID      string         `json:"id"`
		Type    string         `json:"type"`
		Action  string         `json:"action"`
		Data    map[string]any `json:"data"`
		Created int64          `json:"created"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to parse webhook payload").
			WithHint("Webhook payload is not valid JSON").
			Mark(ierr.ErrMalformedWebhook)
	}

	event := &Event{
		ID:   raw.ID,
		Type: raw.Type,
		Data: raw.Data,
	}
	// MercadoPago IPNs carry the event type in `action`
	if event.Type == "" {
		event.Type = raw.Action
	}
	if event.ID == "" {
		event.ID = extractEventID(payload)
	}
	if event.Type == "" {
		return nil, ierr.NewError("webhook payload has no event type").
			WithHint("Webhook payload must carry a type or action field").
			Mark(ierr.ErrMalformedWebhook)
	}
	if raw.Created > 0 {
		event.Created = time.Unix(raw.Created, 0).UTC()
	}
	return event, nil
}

// computeSignature builds the canonical signed manifest and HMACs it
func computeSignature(secret, id string, ts int64) string {
	manifest := fmt.Sprintf("id:%s;request-id:%d;ts:%d;", id, ts, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

// parseSignatureHeader splits `ts=<unix>,v1=<hex>` into its parts
func parseSignatureHeader(header string) (int64, string, error) {
	var ts int64
	var sig string
	var tsSet bool

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", ierr.WithError(err).
					WithMessage("malformed webhook timestamp").
					WithHint("Signature header timestamp is not a number").
					Mark(ierr.ErrInvalidSignature)
			}
			ts = parsed
			tsSet = true
		case "v1":
			sig = value
		}
	}

	if !tsSet || sig == "" {
		return 0, "", ierr.NewError("malformed signature header").
			WithHint("Signature header must contain ts and v1").
			Mark(ierr.ErrInvalidSignature)
	}
	return ts, sig, nil
}

// extractEventID pulls the stable identifier from the raw body:
// `data.id` when present, otherwise the top-level `id`. MercadoPago
// sends numeric ids, so both string and number forms are accepted.
func extractEventID(payload []byte) string {
	var probe map[string]any
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	if data, ok := probe["data"].(map[string]any); ok {
		if id := stringifyID(data["id"]); id != "" {
			return id
		}
	}
	return stringifyID(probe["id"])
}

func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}

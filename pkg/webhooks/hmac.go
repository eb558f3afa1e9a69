package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-Signature"
	TimestampHeader = "X-Signature-Timestamp"
	EventIDHeader   = "X-Event-Id"

	hmacScheme       = "hmac-sha256-timestamped/v1"
	DefaultTolerance = 5 * time.Minute
)

// HMACVerifier checks hex(HMAC-SHA256(secret, timestamp + "." + body)) and
// rejects timestamps further than Tolerance from the receive time.
type HMACVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewHMACVerifier(secret string, tolerance time.Duration) (*HMACVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("webhook verifier secret is empty")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &HMACVerifier{secret: secret, tolerance: tolerance}, nil
}

func (v *HMACVerifier) Verify(headers http.Header, rawBody []byte, receivedAt time.Time) (VerificationResult, error) {
	res := VerificationResult{
		Scheme: hmacScheme,
		Details: map[string]any{
			"signature_header_present":   false,
			"signature_hex_decodable":    false,
			"timestamp_within_tolerance": false,
		},
		EventID: strings.TrimSpace(headers.Get(EventIDHeader)),
	}

	ts := strings.TrimSpace(headers.Get(TimestampHeader))
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return res, nil
	}
	skew := receivedAt.UTC().Sub(time.Unix(unix, 0).UTC())
	if skew < 0 {
		skew = -skew
	}
	res.Details["skew_seconds"] = int64(skew / time.Second)
	if skew > v.tolerance {
		return res, nil
	}
	res.Details["timestamp_within_tolerance"] = true

	sigHex := strings.TrimSpace(headers.Get(SignatureHeader))
	if sigHex == "" {
		return res, nil
	}
	res.Details["signature_header_present"] = true
	provided, err := hex.DecodeString(sigHex)
	if err != nil {
		return res, nil
	}
	res.Details["signature_hex_decodable"] = true

	res.Valid = hmac.Equal(Sign(v.secret, ts, rawBody), provided)
	return res, nil
}

// Sign returns the raw HMAC-SHA256 bytes. Senders hex encode them into
// SignatureHeader.
func Sign(secret, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte{'.'})
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

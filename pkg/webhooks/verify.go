package webhooks

import (
	"net/http"
	"time"
)

type VerificationResult struct {
	Valid   bool           `json:"valid"`
	Scheme  string         `json:"scheme"`
	Details map[string]any `json:"details"`
	EventID string         `json:"event_id,omitempty"`
}

// Verifier authenticates a callback from a collaborating service.
type Verifier interface {
	Verify(headers http.Header, rawBody []byte, receivedAt time.Time) (VerificationResult, error)
}

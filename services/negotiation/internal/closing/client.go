package closing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"dealroom/pkg/domain"

	"github.com/google/uuid"
)

// Client calls the closing service. The transaction id doubles as the
// idempotency key so a retried request cannot open a second closing.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateClosing(ctx context.Context, req domain.ClosingRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/closings", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.TransactionID)
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("closing service returned %d", resp.StatusCode)
	}
	var out struct {
		Closing struct {
			ClosingID string `json:"closing_id"`
		} `json:"closing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Closing.ClosingID) == "" {
		return "", fmt.Errorf("closing service returned no closing_id")
	}
	return out.Closing.ClosingID, nil
}

// Local opens closings in process and remembers every request. It backs
// development setups and tests.
type Local struct {
	mu       sync.Mutex
	requests []domain.ClosingRequest
}

func NewLocal() *Local { return &Local{} }

func (l *Local) CreateClosing(_ context.Context, req domain.ClosingRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	return "clo_" + uuid.NewString(), nil
}

func (l *Local) Requests() []domain.ClosingRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ClosingRequest(nil), l.requests...)
}

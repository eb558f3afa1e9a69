package closing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealroom/pkg/domain"
)

func TestCreateClosing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/closings" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Idempotency-Key") != "txn_1" {
			t.Errorf("expected idempotency key txn_1, got %q", r.Header.Get("Idempotency-Key"))
		}
		var req domain.ClosingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.PropertyType != domain.PropertyCondo || req.TermsHash != "sha256:abc" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(201)
		_, _ = w.Write([]byte(`{"closing":{"closing_id":"clo_123"}}`))
	}))
	defer ts.Close()

	c := New(ts.URL+"/", time.Second)
	id, err := c.CreateClosing(context.Background(), domain.ClosingRequest{TransactionID: "txn_1", PropertyType: domain.PropertyCondo, TermsHash: "sha256:abc"})
	if err != nil {
		t.Fatalf("CreateClosing error: %v", err)
	}
	if id != "clo_123" {
		t.Fatalf("unexpected closing id: %s", id)
	}
}

func TestCreateClosingUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer ts.Close()
	if _, err := New(ts.URL, time.Second).CreateClosing(context.Background(), domain.ClosingRequest{TransactionID: "txn_1"}); err == nil {
		t.Fatalf("expected error on 503")
	}
}

func TestLocalRecordsRequests(t *testing.T) {
	l := NewLocal()
	id, err := l.CreateClosing(context.Background(), domain.ClosingRequest{TransactionID: "txn_9"})
	if err != nil || id == "" {
		t.Fatalf("expected closing id, got %q err=%v", id, err)
	}
	if got := l.Requests(); len(got) != 1 || got[0].TransactionID != "txn_9" {
		t.Fatalf("unexpected requests %+v", got)
	}
}

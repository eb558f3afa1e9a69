package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dealroom/pkg/webhooks"
)

func noEnv(string) string { return "" }

func decodeLine(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(out.Bytes(), &m); err != nil {
		t.Fatalf("output is not json: %q: %v", out.String(), err)
	}
	return m
}

func TestCatalogListsTypes(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"catalog"}, &out, noEnv); code != 0 {
		t.Fatalf("exit %d: %s", code, out.String())
	}
	got := decodeLine(t, &out)
	if types, _ := got["property_types"].([]any); len(types) != 7 {
		t.Fatalf("expected 7 property types, got %v", got["property_types"])
	}
}

func TestCatalogUnknownType(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"catalog", "--type", "castle"}, &out, noEnv); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if decodeLine(t, &out)["status"] != "FAIL" {
		t.Fatalf("expected FAIL summary: %s", out.String())
	}
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"nope"}, &out, noEnv); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestCallbackSignMatchesVerifier(t *testing.T) {
	body := []byte(`{"transaction_id":"txn_1","closing_id":"clo_1"}`)
	path := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write body: %v", err)
	}
	var out bytes.Buffer
	code := run([]string{"callback", "sign", "--body", path, "--at", "1700000000"}, &out, func(k string) string {
		if k == "CLOSING_CALLBACK_SECRET" {
			return "s3cret"
		}
		return ""
	})
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out.String())
	}
	headers := decodeLine(t, &out)["headers"].(map[string]any)
	want := hex.EncodeToString(webhooks.Sign("s3cret", "1700000000", body))
	if headers[webhooks.SignatureHeader] != want || headers[webhooks.TimestampHeader] != "1700000000" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

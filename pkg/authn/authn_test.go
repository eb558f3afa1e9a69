package authn

import (
	"context"
	"errors"
	"testing"
)

func TestParseBearerToken(t *testing.T) {
	if tok, ok := parseBearerToken("Bearer abc "); !ok || tok != "abc" {
		t.Fatalf("expected abc, got %q ok=%v", tok, ok)
	}
	for _, h := range []string{"", "Bearer ", "Basic abc", "bearer abc"} {
		if _, ok := parseBearerToken(h); ok {
			t.Fatalf("expected %q rejected", h)
		}
	}
}

func TestStaticAuthenticator(t *testing.T) {
	tokens, err := ParseStaticTokens("tok-b:buyer, tok-s:seller")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	a := NewStaticAuthenticator(tokens)
	party, err := a.Authenticate(context.Background(), "Bearer tok-s")
	if err != nil || party != "seller" {
		t.Fatalf("expected seller, got %q err=%v", party, err)
	}
	if _, err := a.Authenticate(context.Background(), "Bearer nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestParseStaticTokensRejectsMalformed(t *testing.T) {
	if _, err := ParseStaticTokens("tok-only"); err == nil {
		t.Fatalf("expected error")
	}
	got, err := ParseStaticTokens("")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %v err=%v", got, err)
	}
}

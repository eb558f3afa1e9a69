package propertyclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealroom/pkg/domain"
)

func TestResolveProperty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/properties/prop_1":
			w.Header().Set("content-type", "application/json")
			_, _ = w.Write([]byte(`{"property":{"property_id":"prop_1","owner_id":"usr_seller","property_type":"townhouse"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := New(ts.URL, time.Second)
	p, err := c.ResolveProperty(context.Background(), "prop_1")
	if err != nil {
		t.Fatalf("ResolveProperty error: %v", err)
	}
	if p.OwnerID != "usr_seller" || p.PropertyType != domain.PropertyTownhouse {
		t.Fatalf("unexpected property: %+v", p)
	}
	if _, err := c.ResolveProperty(context.Background(), "prop_missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseStatic(t *testing.T) {
	s, err := ParseStatic("prop_1:seller:house, prop_2:other:condo")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, err := s.ResolveProperty(context.Background(), "prop_2")
	if err != nil || p.OwnerID != "other" || p.PropertyType != domain.PropertyCondo {
		t.Fatalf("unexpected %+v err=%v", p, err)
	}
	for _, bad := range []string{"prop_1:seller", "prop_1:seller:castle", ":seller:house"} {
		if _, err := ParseStatic(bad); err == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

package domain

import (
	"testing"
	"time"
)

func ledgerFixture() []Offer {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Offer{
		{OfferID: "ofr_b1", OwnerID: "buyer", Amount: 350000, CreatedAt: t0, Seq: 1},
		{OfferID: "ofr_s1", OwnerID: "seller", Amount: 400000, CreatedAt: t0.Add(time.Minute), Seq: 2},
		{OfferID: "ofr_b2", OwnerID: "buyer", Amount: 360000, CreatedAt: t0.Add(2 * time.Minute), Seq: 3},
		{OfferID: "ofr_b3", OwnerID: "buyer", Amount: 370000, CreatedAt: t0.Add(2 * time.Minute), Seq: 4},
	}
}

func TestOffersByNewestFirst(t *testing.T) {
	got := OffersBy(ledgerFixture(), "buyer")
	if len(got) != 3 {
		t.Fatalf("expected 3 buyer offers, got %d", len(got))
	}
	want := []string{"ofr_b3", "ofr_b2", "ofr_b1"}
	for i, id := range want {
		if got[i].OfferID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].OfferID)
		}
	}
	if a, ok := ActiveOffer(ledgerFixture(), "seller"); !ok || a.OfferID != "ofr_s1" {
		t.Fatalf("expected seller active offer ofr_s1, got %+v", a)
	}
	if _, ok := ActiveOffer(ledgerFixture(), "nobody"); ok {
		t.Fatalf("expected no active offer")
	}
}

func TestCheckOfferDelete(t *testing.T) {
	offers := ledgerFixture()
	if _, err := CheckOfferDelete(offers, "buyer", "ofr_b2"); !IsKind(err, KindConflict) {
		t.Fatalf("expected conflict deleting superseded offer, got %v", err)
	}
	if _, err := CheckOfferDelete(offers, "buyer", "ofr_s1"); !IsKind(err, KindPermission) {
		t.Fatalf("expected permission error deleting counterparty offer, got %v", err)
	}
	if _, err := CheckOfferDelete(offers, "buyer", "ofr_zz"); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	o, err := CheckOfferDelete(offers, "buyer", "ofr_b3")
	if err != nil || o.OfferID != "ofr_b3" {
		t.Fatalf("expected tip deletable, got %+v err=%v", o, err)
	}
}

func TestClearAcceptancesOf(t *testing.T) {
	tx := baseTx()
	tx.BuyerAcceptedOffer = strp("ofr_s1")
	tx.SellerAcceptedOffer = strp("ofr_s1")
	cleared := ClearAcceptancesOf(&tx, "ofr_s1")
	if len(cleared) != 2 || tx.BuyerAcceptedOffer != nil || tx.SellerAcceptedOffer != nil {
		t.Fatalf("expected both acceptances cleared, got %v", cleared)
	}
	if cleared := ClearAcceptancesOf(&tx, "ofr_s1"); len(cleared) != 0 {
		t.Fatalf("expected nothing to clear, got %v", cleared)
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dealroom/pkg/domain"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	now := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	tx := domain.Transaction{TransactionID: "txn_1", BuyerID: "buyer", SellerID: "seller", PropertyID: "prop_1", PropertyType: domain.PropertyHouse, CreatedAt: now}
	offer := domain.Offer{OfferID: "ofr_1", TransactionID: "txn_1", OwnerID: "buyer", Amount: 350000, Deposit: 20000, CreatedAt: now}
	if err := m.CreateTransaction(context.Background(), tx, offer, nil, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	return m
}

func TestMemoryRejectsDuplicateParties(t *testing.T) {
	m := seedMemory(t)
	dup := domain.Transaction{TransactionID: "txn_2", BuyerID: "buyer", SellerID: "seller", PropertyID: "prop_1"}
	err := m.CreateTransaction(context.Background(), dup, domain.Offer{OfferID: "ofr_2"}, nil, nil)
	if !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := m.GetTransaction(context.Background(), "txn_2"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected txn_2 absent, got %v", err)
	}
}

func TestMemoryUpdateDiscardsOnError(t *testing.T) {
	m := seedMemory(t)
	boom := errors.New("boom")
	err := m.Update(context.Background(), "txn_1", func(u Unit) error {
		tx := u.Transaction()
		tx.Stage = domain.StageNegotiation
		if err := u.SaveTransaction(tx); err != nil {
			return err
		}
		if err := u.InsertOffer(domain.Offer{OfferID: "ofr_2", OwnerID: "seller"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	tx, _ := m.GetTransaction(context.Background(), "txn_1")
	if tx.Stage != domain.StageOffer {
		t.Fatalf("expected stage unchanged, got %v", tx.Stage)
	}
	offers, _ := m.ListOffers(context.Background(), "txn_1")
	if len(offers) != 1 {
		t.Fatalf("expected rolled back offer, got %d offers", len(offers))
	}
}

func TestMemoryContractUniquenessAndIndex(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	insert := func(id, owner string) error {
		return m.Update(ctx, "txn_1", func(u Unit) error {
			return u.InsertContract(domain.Contract{ContractID: id, TransactionID: "txn_1", OwnerID: owner,
				Clauses: []domain.Clause{{ClauseID: "cls_" + id, ContractID: id, Kind: domain.ClauseToggle, Value: domain.ToggleValue(true)}}})
		})
	}
	if err := insert("ctr_1", "buyer"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := insert("ctr_2", "buyer"); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("expected conflict on second buyer contract, got %v", err)
	}
	if id, err := m.TransactionIDForContract(ctx, "ctr_1"); err != nil || id != "txn_1" {
		t.Fatalf("expected ctr_1 indexed, got %q err=%v", id, err)
	}
	if _, err := m.TransactionIDForContract(ctx, "ctr_2"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected failed insert not indexed, got %v", err)
	}
	err := m.Update(ctx, "txn_1", func(u Unit) error {
		return u.SetClauseValue("cls_ctr_1", domain.ToggleValue(false))
	})
	if err != nil {
		t.Fatalf("set clause: %v", err)
	}
	contracts, _ := m.ListContracts(ctx, "txn_1")
	if contracts[0].Clauses[0].Value.Toggle {
		t.Fatalf("expected clause value persisted")
	}
	contracts[0].Clauses[0].Value = domain.ToggleValue(true)
	again, _ := m.ListContracts(ctx, "txn_1")
	if again[0].Clauses[0].Value.Toggle {
		t.Fatalf("expected reads to be isolated copies")
	}
	if err := m.Update(ctx, "txn_1", func(u Unit) error { return u.DeleteContract("ctr_1") }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.TransactionIDForContract(ctx, "ctr_1"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected deleted contract unindexed, got %v", err)
	}
}

func TestMemoryUpdateSerializesPerTransaction(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Update(ctx, "txn_1", func(u Unit) error {
				offers, _ := u.Offers()
				return u.InsertOffer(domain.Offer{OfferID: fmt.Sprintf("ofr_n%d", len(offers)), OwnerID: "seller"})
			})
		}()
	}
	wg.Wait()
	offers, _ := m.ListOffers(ctx, "txn_1")
	if len(offers) != 51 {
		t.Fatalf("expected 51 offers, got %d", len(offers))
	}
	seen := map[string]bool{}
	for _, o := range offers {
		if seen[o.OfferID] {
			t.Fatalf("duplicate offer id %s means two updates saw the same state", o.OfferID)
		}
		seen[o.OfferID] = true
	}
}

func TestMemoryUpdateUnknownTransaction(t *testing.T) {
	m := NewMemory()
	err := m.Update(context.Background(), "txn_missing", func(Unit) error { return nil })
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryAfterCommitRunsInCommitOrder(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Update(ctx, "txn_1", func(u Unit) error {
				offers, _ := u.Offers()
				n := len(offers)
				if err := u.InsertOffer(domain.Offer{OfferID: fmt.Sprintf("ofr_n%d", n), OwnerID: "seller"}); err != nil {
					return err
				}
				u.AfterCommit(func() {
					mu.Lock()
					order = append(order, n)
					mu.Unlock()
				})
				return nil
			})
		}()
	}
	wg.Wait()
	if len(order) != 30 {
		t.Fatalf("expected 30 hooks, got %d", len(order))
	}
	for i, n := range order {
		if n != i+1 {
			t.Fatalf("hook %d saw state %d, hooks ran out of commit order: %v", i, n, order)
		}
	}
}

func TestMemoryAfterCommitSkippedOnError(t *testing.T) {
	m := seedMemory(t)
	ran := false
	err := m.Update(context.Background(), "txn_1", func(u Unit) error {
		u.AfterCommit(func() { ran = true })
		return errors.New("boom")
	})
	if err == nil || ran {
		t.Fatalf("expected failed update to drop hooks, err=%v ran=%v", err, ran)
	}
}

func TestMemoryCreateHookRunsBeforeFirstUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tx := domain.Transaction{TransactionID: "txn_1", BuyerID: "buyer", SellerID: "seller", PropertyID: "prop_1"}
	release := make(chan struct{})
	entered := make(chan struct{})
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	created := make(chan error, 1)
	go func() {
		created <- m.CreateTransaction(ctx, tx, domain.Offer{OfferID: "ofr_1"}, nil, func() {
			close(entered)
			<-release
			record("created")
		})
	}()
	<-entered
	updated := make(chan error, 1)
	go func() {
		updated <- m.Update(ctx, "txn_1", func(u Unit) error {
			u.AfterCommit(func() { record("updated") })
			return nil
		})
	}()
	close(release)
	if err := <-created; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := <-updated; err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(order) != 2 || order[0] != "created" || order[1] != "updated" {
		t.Fatalf("expected create hook first, got %v", order)
	}
}

package store

import (
	"context"

	"dealroom/pkg/domain"
)

// Unit is one transaction's view inside its critical section. Reads observe
// the state at lock time plus the unit's own writes. Nothing a unit writes is
// visible to others until Update returns nil.
type Unit interface {
	Transaction() domain.Transaction
	Offers() ([]domain.Offer, error)
	Contracts() ([]domain.Contract, error)

	SaveTransaction(tx domain.Transaction) error
	InsertOffer(o domain.Offer) error
	DeleteOffer(offerID string) error
	InsertContract(c domain.Contract) error
	DeleteContract(contractID string) error
	SetClauseValue(clauseID string, v domain.ClauseValue) error
	DeleteClause(clauseID string) error
	AppendEvents(events ...domain.Event) error

	// AfterCommit registers fn to run once the unit commits, before the
	// transaction is unlocked. Hooks run in registration order and are
	// dropped if the unit does not commit.
	AfterCommit(fn func())
}

// Store persists transactions and serializes all writes per transaction id.
type Store interface {
	// CreateTransaction inserts tx with its opening offer. A second
	// transaction for the same buyer, seller and property is a conflict.
	// onCommit, when set, runs after the insert commits and before any
	// Update on the new transaction can start.
	CreateTransaction(ctx context.Context, tx domain.Transaction, initial domain.Offer, events []domain.Event, onCommit func()) error
	GetTransaction(ctx context.Context, transactionID string) (domain.Transaction, error)
	TransactionIDForContract(ctx context.Context, contractID string) (string, error)
	ListOffers(ctx context.Context, transactionID string) ([]domain.Offer, error)
	ListContracts(ctx context.Context, transactionID string) ([]domain.Contract, error)
	ListEvents(ctx context.Context, transactionID string) ([]domain.Event, error)

	// Update runs fn with transactionID locked. fn's writes commit together
	// when it returns nil and are discarded otherwise.
	Update(ctx context.Context, transactionID string, fn func(u Unit) error) error

	GetIdempotencyRecord(ctx context.Context, partyID, key, endpoint string) (int, map[string]any, bool, error)
	SaveIdempotencyRecord(ctx context.Context, partyID, key, endpoint string, status int, body map[string]any) error
}

func runHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}

func cloneTransaction(t domain.Transaction) domain.Transaction {
	out := t
	out.BuyerAcceptedOffer = cloneString(t.BuyerAcceptedOffer)
	out.SellerAcceptedOffer = cloneString(t.SellerAcceptedOffer)
	out.ClosingID = cloneString(t.ClosingID)
	out.PaymentRef = cloneString(t.PaymentRef)
	if t.ClosedAt != nil {
		at := *t.ClosedAt
		out.ClosedAt = &at
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneContract(c domain.Contract) domain.Contract {
	out := c
	out.Clauses = make([]domain.Clause, len(c.Clauses))
	for i, cl := range c.Clauses {
		out.Clauses[i] = cloneClause(cl)
	}
	return out
}

func cloneClause(c domain.Clause) domain.Clause {
	out := c
	if c.Options != nil {
		out.Options = append([]string(nil), c.Options...)
	}
	if c.Value.Chips != nil {
		out.Value.Chips = append([]string{}, c.Value.Chips...)
	}
	return out
}

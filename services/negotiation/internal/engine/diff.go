package engine

import (
	"context"

	"dealroom/pkg/domain"
	"dealroom/services/negotiation/internal/store"
)

// refreshAgreement sets tx.ContractsEqual from contracts, the post-write
// contract set, and saves tx when the flag changes. The terms are diffed only
// once both parties have a contract; before that there is nothing to agree on
// and the flag is false.
func (e *Engine) refreshAgreement(u store.Unit, tx *domain.Transaction, contracts []domain.Contract, actorID string) ([]domain.Event, error) {
	equal := false
	switch {
	case len(contracts) == 2:
		agree, err := domain.ContractsAgree(contracts)
		if err != nil {
			return nil, err
		}
		equal = agree
	case len(contracts) > 2:
		return nil, domain.InternalInvariantf("transaction %s has %d contracts", tx.TransactionID, len(contracts))
	}
	return e.setContractsEqual(u, tx, equal, actorID)
}

func (e *Engine) setContractsEqual(u store.Unit, tx *domain.Transaction, equal bool, actorID string) ([]domain.Event, error) {
	if tx.ContractsEqual == equal {
		return nil, nil
	}
	tx.ContractsEqual = equal
	if err := u.SaveTransaction(*tx); err != nil {
		return nil, err
	}
	return []domain.Event{e.event(tx.TransactionID, domain.EventContractsEqualChanged, actorID, map[string]any{
		"contracts_equal": equal,
	})}, nil
}

// Recompute diffs the transaction's two contracts and stores the result.
// Calling it before both contracts exist is a sequencing bug and fails
// without changing anything.
func (e *Engine) Recompute(ctx context.Context, transactionID string) (equal bool, err error) {
	defer func() { e.observe("recompute", transactionID, err) }()

	var events []domain.Event
	err = e.store.Update(ctx, transactionID, func(u store.Unit) error {
		events = nil
		tx := u.Transaction()
		contracts, err := u.Contracts()
		if err != nil {
			return err
		}
		agree, err := domain.ContractsAgree(contracts)
		if err != nil {
			return err
		}
		flip, err := e.setContractsEqual(u, &tx, agree, "")
		if err != nil {
			return err
		}
		equal = agree
		events = flip
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return false, err
	}
	return equal, nil
}

package engine

import (
	"context"

	"dealroom/pkg/domain"
	"dealroom/services/negotiation/internal/store"
)

// CreateContract gives partyID its contract on the transaction, instantiated
// from the clause catalog for the transaction's property type.
func (e *Engine) CreateContract(ctx context.Context, transactionID, partyID string) (contract domain.Contract, err error) {
	defer func() { e.observe("create_contract", transactionID, err) }()

	var events []domain.Event
	err = e.store.Update(ctx, transactionID, func(u store.Unit) error {
		events = nil
		tx := u.Transaction()
		if err := requireParticipant(tx, partyID); err != nil {
			return err
		}
		if err := tx.Mutable(); err != nil {
			return err
		}
		contracts, err := u.Contracts()
		if err != nil {
			return err
		}
		for _, c := range contracts {
			if c.OwnerID == partyID {
				return domain.Conflictf("party %s already has contract %s on transaction %s", partyID, c.ContractID, tx.TransactionID)
			}
		}
		now := e.now().UTC()
		contract = domain.Contract{
			ContractID:    newID("ctr"),
			TransactionID: tx.TransactionID,
			OwnerID:       partyID,
			CreatedAt:     now,
		}
		contract.Clauses, err = domain.InstantiateClauses(tx.PropertyType, contract.ContractID, now, func() string { return newID("cls") })
		if err != nil {
			return err
		}
		if err := u.InsertContract(contract); err != nil {
			return err
		}
		events = append(events, e.event(tx.TransactionID, domain.EventContractCreated, partyID, map[string]any{
			"contract_id": contract.ContractID, "clauses": len(contract.Clauses),
		}))
		flip, err := e.refreshAgreement(u, &tx, append(contracts, contract), partyID)
		if err != nil {
			return err
		}
		events = append(events, flip...)
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return domain.Contract{}, err
	}
	return contract, nil
}

func (e *Engine) ListContracts(ctx context.Context, transactionID, partyID string) ([]domain.Contract, error) {
	if _, err := e.participant(ctx, transactionID, partyID); err != nil {
		return nil, err
	}
	return e.store.ListContracts(ctx, transactionID)
}

// ownedContract finds contractID among contracts and checks partyID owns it.
func ownedContract(contracts []domain.Contract, contractID, partyID string) (int, error) {
	for i, c := range contracts {
		if c.ContractID != contractID {
			continue
		}
		if c.OwnerID != partyID {
			return -1, domain.Permissionf("contract %s belongs to another party", contractID)
		}
		return i, nil
	}
	return -1, domain.NotFoundf("contract %s not found", contractID)
}

// DeleteContract removes partyID's contract with its clauses. With one
// contract left the parties cannot be in agreement.
func (e *Engine) DeleteContract(ctx context.Context, contractID, partyID string) (err error) {
	transactionID, err := e.store.TransactionIDForContract(ctx, contractID)
	if err != nil {
		e.observe("delete_contract", "", err)
		return err
	}
	defer func() { e.observe("delete_contract", transactionID, err) }()

	var events []domain.Event
	err = e.store.Update(ctx, transactionID, func(u store.Unit) error {
		events = nil
		tx := u.Transaction()
		if err := requireParticipant(tx, partyID); err != nil {
			return err
		}
		contracts, err := u.Contracts()
		if err != nil {
			return err
		}
		i, err := ownedContract(contracts, contractID, partyID)
		if err != nil {
			return err
		}
		if err := tx.Mutable(); err != nil {
			return err
		}
		if err := u.DeleteContract(contractID); err != nil {
			return err
		}
		remaining := append(contracts[:i:i], contracts[i+1:]...)
		events = append(events, e.event(tx.TransactionID, domain.EventContractWithdrawn, partyID, map[string]any{"contract_id": contractID}))
		flip, err := e.refreshAgreement(u, &tx, remaining, partyID)
		if err != nil {
			return err
		}
		events = append(events, flip...)
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return err
	}
	return nil
}

// UpdateClauseValue writes a new value to one of partyID's own dynamic
// clauses and recomputes agreement before committing.
func (e *Engine) UpdateClauseValue(ctx context.Context, contractID, clauseID, partyID string, raw any) (clause domain.Clause, err error) {
	transactionID, err := e.store.TransactionIDForContract(ctx, contractID)
	if err != nil {
		e.observe("update_clause_value", "", err)
		return domain.Clause{}, err
	}
	defer func() { e.observe("update_clause_value", transactionID, err) }()

	var events []domain.Event
	err = e.store.Update(ctx, transactionID, func(u store.Unit) error {
		events = nil
		tx := u.Transaction()
		contracts, err := u.Contracts()
		if err != nil {
			return err
		}
		ci, err := ownedContract(contracts, contractID, partyID)
		if err != nil {
			return err
		}
		cl, idx, ok := contracts[ci].Clause(clauseID)
		if !ok {
			return domain.NotFoundf("clause %s not found on contract %s", clauseID, contractID)
		}
		if err := tx.Mutable(); err != nil {
			return err
		}
		v, err := cl.NormalizeValue(raw)
		if err != nil {
			return err
		}
		if err := u.SetClauseValue(clauseID, v); err != nil {
			return err
		}
		cl.Value = v
		contracts[ci].Clauses[idx] = cl
		clause = cl
		events = append(events, e.event(tx.TransactionID, domain.EventClauseChanged, partyID, map[string]any{
			"contract_id": contractID, "clause_id": clauseID, "title": cl.Title, "value": v.Plain(),
		}))
		flip, err := e.refreshAgreement(u, &tx, contracts, partyID)
		if err != nil {
			return err
		}
		events = append(events, flip...)
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return domain.Clause{}, err
	}
	return clause, nil
}

// DeleteClause removes an optional clause from partyID's contract. Required
// clauses stay.
func (e *Engine) DeleteClause(ctx context.Context, contractID, clauseID, partyID string) (err error) {
	transactionID, err := e.store.TransactionIDForContract(ctx, contractID)
	if err != nil {
		e.observe("delete_clause", "", err)
		return err
	}
	defer func() { e.observe("delete_clause", transactionID, err) }()

	var events []domain.Event
	err = e.store.Update(ctx, transactionID, func(u store.Unit) error {
		events = nil
		tx := u.Transaction()
		contracts, err := u.Contracts()
		if err != nil {
			return err
		}
		ci, err := ownedContract(contracts, contractID, partyID)
		if err != nil {
			return err
		}
		cl, idx, ok := contracts[ci].Clause(clauseID)
		if !ok {
			return domain.NotFoundf("clause %s not found on contract %s", clauseID, contractID)
		}
		if err := tx.Mutable(); err != nil {
			return err
		}
		if cl.Required {
			return domain.Conflictf("clause %q is required and cannot be removed", cl.Title)
		}
		if err := u.DeleteClause(clauseID); err != nil {
			return err
		}
		clauses := contracts[ci].Clauses
		contracts[ci].Clauses = append(clauses[:idx:idx], clauses[idx+1:]...)
		events = append(events, e.event(tx.TransactionID, domain.EventClauseRemoved, partyID, map[string]any{
			"contract_id": contractID, "clause_id": clauseID, "title": cl.Title,
		}))
		if cl.IsDynamic() {
			flip, err := e.refreshAgreement(u, &tx, contracts, partyID)
			if err != nil {
				return err
			}
			events = append(events, flip...)
		}
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return err
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"strings"

	"dealroom/pkg/canonhash"
	"dealroom/pkg/domain"
	"dealroom/services/negotiation/internal/store"
)

type CreateTransactionInput struct {
	SellerID   string
	PropertyID string
	Offer      *domain.OfferInput
}

// CreateTransaction opens a negotiation for buyerID against the seller's
// property. The opening offer is appended to the buyer's ledger in the same
// commit.
func (e *Engine) CreateTransaction(ctx context.Context, buyerID string, in CreateTransactionInput) (tx domain.Transaction, offer domain.Offer, err error) {
	defer func() { e.observe("create_transaction", tx.TransactionID, err) }()

	if in.Offer == nil {
		return domain.Transaction{}, domain.Offer{}, domain.Validationf("exactly one initial offer is required")
	}
	if err := in.Offer.Validate(); err != nil {
		return domain.Transaction{}, domain.Offer{}, err
	}
	propertyID := strings.TrimSpace(in.PropertyID)
	if propertyID == "" {
		return domain.Transaction{}, domain.Offer{}, domain.Validationf("buyer, seller, and property are required")
	}
	property, err := e.properties.ResolveProperty(ctx, propertyID)
	if err != nil {
		return domain.Transaction{}, domain.Offer{}, err
	}
	if err := domain.ValidateParties(buyerID, in.SellerID, property); err != nil {
		return domain.Transaction{}, domain.Offer{}, err
	}

	now := e.now().UTC()
	tx = domain.Transaction{
		TransactionID: newID("txn"),
		BuyerID:       strings.TrimSpace(buyerID),
		SellerID:      strings.TrimSpace(in.SellerID),
		PropertyID:    property.PropertyID,
		PropertyType:  property.PropertyType,
		Stage:         domain.StageOffer,
		CreatedAt:     now,
	}
	offer = domain.Offer{
		OfferID:       newID("ofr"),
		TransactionID: tx.TransactionID,
		OwnerID:       tx.BuyerID,
		Amount:        in.Offer.Amount,
		Deposit:       in.Offer.Deposit,
		Comment:       strings.TrimSpace(in.Offer.Comment),
		CreatedAt:     now,
	}
	events := []domain.Event{
		e.event(tx.TransactionID, domain.EventTransactionCreated, tx.BuyerID, map[string]any{
			"buyer_id": tx.BuyerID, "seller_id": tx.SellerID, "property_id": tx.PropertyID, "property_type": string(tx.PropertyType),
		}),
		e.event(tx.TransactionID, domain.EventOfferCreated, tx.BuyerID, offerPayload(offer)),
	}
	if err := e.store.CreateTransaction(ctx, tx, offer, events, func() { e.committed(ctx, events) }); err != nil {
		return domain.Transaction{}, domain.Offer{}, err
	}
	return tx, offer, nil
}

func (e *Engine) GetTransaction(ctx context.Context, transactionID, partyID string) (domain.Transaction, error) {
	return e.participant(ctx, transactionID, partyID)
}

func (e *Engine) ListEvents(ctx context.Context, transactionID, partyID string) ([]domain.Event, error) {
	if _, err := e.participant(ctx, transactionID, partyID); err != nil {
		return nil, err
	}
	return e.store.ListEvents(ctx, transactionID)
}

// AdvanceStage moves the transaction one stage forward when its
// preconditions hold. Entering closing opens the closing process before the
// stage change commits; the recorded closing id keeps it from being opened
// twice.
func (e *Engine) AdvanceStage(ctx context.Context, transactionID, partyID string) (stage domain.Stage, err error) {
	defer func() { e.observe("advance_stage", transactionID, err) }()

	var events []domain.Event
	err = e.store.Update(ctx, transactionID, func(u store.Unit) error {
		events = nil
		tx := u.Transaction()
		if err := requireParticipant(tx, partyID); err != nil {
			return err
		}
		from := tx.Stage
		next, err := domain.CheckAdvance(tx)
		if err != nil {
			return err
		}
		payload := map[string]any{"from": from.String(), "to": next.String()}

		if next == domain.StageClosing {
			closingID, err := e.openClosing(ctx, u, tx)
			if err != nil {
				return err
			}
			tx.ClosingID = &closingID
			payload["closing_id"] = closingID
		}
		tx.Stage = next
		if err := u.SaveTransaction(tx); err != nil {
			return err
		}
		stage = next
		events = append(events, e.event(tx.TransactionID, domain.EventStageAdvanced, partyID, payload))
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return domain.Stage(0), err
	}
	return stage, nil
}

// openClosing re-derives agreement from the contracts themselves so a stale
// flag can never open a closing, then calls the factory.
func (e *Engine) openClosing(ctx context.Context, u store.Unit, tx domain.Transaction) (string, error) {
	contracts, err := u.Contracts()
	if err != nil {
		return "", err
	}
	agree, err := domain.ContractsAgree(contracts)
	if err != nil {
		return "", err
	}
	if !agree {
		return "", domain.InternalInvariantf("transaction %s has contracts_equal set but its contracts differ", tx.TransactionID)
	}
	termsHash, err := canonhash.SumTerms(domain.ExtractTerms(contracts[0]).Plain())
	if err != nil {
		return "", err
	}
	closingID, err := e.closing.CreateClosing(ctx, domain.ClosingRequest{
		TransactionID: tx.TransactionID,
		PropertyType:  tx.PropertyType,
		TermsHash:     termsHash,
	})
	if err != nil {
		return "", fmt.Errorf("create closing: %w", err)
	}
	return closingID, nil
}

// SetFields applies a party's writes to its own acceptance fields. The batch
// is rejected whole if any field belongs to the other party or is derived.
func (e *Engine) SetFields(ctx context.Context, transactionID, partyID string, updates []domain.FieldUpdate) (out domain.Transaction, err error) {
	defer func() { e.observe("set_field", transactionID, err) }()

	var events []domain.Event
	err = e.store.Update(ctx, transactionID, func(u store.Unit) error {
		events = nil
		tx := u.Transaction()
		if err := domain.CheckFieldPermissions(tx, partyID, updates); err != nil {
			return err
		}
		if err := tx.Mutable(); err != nil {
			return err
		}
		offers, err := u.Offers()
		if err != nil {
			return err
		}
		exists := func(id string) bool {
			for _, o := range offers {
				if o.OfferID == id {
					return true
				}
			}
			return false
		}
		if err := domain.ApplyFieldUpdates(&tx, updates, exists); err != nil {
			return err
		}
		if err := u.SaveTransaction(tx); err != nil {
			return err
		}
		fields := make(map[string]any, len(updates))
		for _, up := range updates {
			fields[string(up.Field)] = up.Value
		}
		events = append(events, e.event(tx.TransactionID, domain.EventFieldsSet, partyID, map[string]any{"fields": fields}))
		out = tx
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return out, nil
}

// CompleteClosing records that the closing process finished. Repeated
// reports for the same closing are accepted without a second event.
func (e *Engine) CompleteClosing(ctx context.Context, transactionID, closingID string) (out domain.Transaction, err error) {
	defer func() { e.observe("complete_closing", transactionID, err) }()

	var events []domain.Event
	err = e.store.Update(ctx, transactionID, func(u store.Unit) error {
		events = nil
		tx := u.Transaction()
		done, err := domain.CheckClosingComplete(tx, closingID)
		if err != nil {
			return err
		}
		out = tx
		if done {
			return nil
		}
		at := e.now().UTC()
		tx.ClosedAt = &at
		if err := u.SaveTransaction(tx); err != nil {
			return err
		}
		out = tx
		events = append(events, e.event(tx.TransactionID, domain.EventClosingCompleted, "", map[string]any{"closing_id": closingID}))
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return out, nil
}

package engine

import (
	"context"
	"strings"

	"dealroom/pkg/domain"
	"dealroom/services/negotiation/internal/store"
)

// Ledger is both parties' offer histories, each newest first.
type Ledger struct {
	BuyerOffers  []domain.Offer `json:"buyer_offers"`
	SellerOffers []domain.Offer `json:"seller_offers"`
}

func offerPayload(o domain.Offer) map[string]any {
	return map[string]any{
		"offer_id": o.OfferID,
		"owner_id": o.OwnerID,
		"amount":   o.Amount,
		"deposit":  o.Deposit,
	}
}

// CreateOffer appends a new offer to partyID's ledger. Earlier offers are
// left untouched.
func (e *Engine) CreateOffer(ctx context.Context, transactionID, partyID string, in domain.OfferInput) (offer domain.Offer, err error) {
	defer func() { e.observe("create_offer", transactionID, err) }()

	if err := in.Validate(); err != nil {
		return domain.Offer{}, err
	}
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
		offer = domain.Offer{
			OfferID:       newID("ofr"),
			TransactionID: tx.TransactionID,
			OwnerID:       partyID,
			Amount:        in.Amount,
			Deposit:       in.Deposit,
			Comment:       strings.TrimSpace(in.Comment),
			CreatedAt:     e.now().UTC(),
		}
		if err := u.InsertOffer(offer); err != nil {
			return err
		}
		events = append(events, e.event(tx.TransactionID, domain.EventOfferCreated, partyID, offerPayload(offer)))
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	return offer, nil
}

func (e *Engine) ListOffers(ctx context.Context, transactionID, partyID string) (Ledger, error) {
	tx, err := e.participant(ctx, transactionID, partyID)
	if err != nil {
		return Ledger{}, err
	}
	offers, err := e.store.ListOffers(ctx, transactionID)
	if err != nil {
		return Ledger{}, err
	}
	return Ledger{
		BuyerOffers:  domain.OffersBy(offers, tx.BuyerID),
		SellerOffers: domain.OffersBy(offers, tx.SellerID),
	}, nil
}

// GetOffers is ownerID's history, newest first.
func (e *Engine) GetOffers(ctx context.Context, transactionID, partyID, ownerID string) ([]domain.Offer, error) {
	tx, err := e.participant(ctx, transactionID, partyID)
	if err != nil {
		return nil, err
	}
	if !tx.IsParticipant(ownerID) {
		return nil, domain.Validationf("%s is not a party to transaction %s", ownerID, transactionID)
	}
	offers, err := e.store.ListOffers(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return domain.OffersBy(offers, ownerID), nil
}

// DeleteOffer withdraws partyID's most recent offer; the one before it
// becomes active. Acceptances pointing at the withdrawn offer are cleared in
// the same commit.
func (e *Engine) DeleteOffer(ctx context.Context, transactionID, partyID, offerID string) (err error) {
	defer func() { e.observe("delete_offer", transactionID, err) }()

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
		offers, err := u.Offers()
		if err != nil {
			return err
		}
		if _, err := domain.CheckOfferDelete(offers, partyID, offerID); err != nil {
			return err
		}
		if err := u.DeleteOffer(offerID); err != nil {
			return err
		}
		payload := map[string]any{"offer_id": offerID}
		if cleared := domain.ClearAcceptancesOf(&tx, offerID); len(cleared) > 0 {
			if err := u.SaveTransaction(tx); err != nil {
				return err
			}
			payload["cleared_fields"] = cleared
		}
		remaining := make([]domain.Offer, 0, len(offers))
		for _, o := range offers {
			if o.OfferID != offerID {
				remaining = append(remaining, o)
			}
		}
		if active, ok := domain.ActiveOffer(remaining, partyID); ok {
			payload["active_offer_id"] = active.OfferID
		}
		events = append(events, e.event(tx.TransactionID, domain.EventOfferWithdrawn, partyID, payload))
		return e.commit(ctx, u, events)
	})
	if err != nil {
		return err
	}
	return nil
}

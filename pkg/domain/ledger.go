package domain

import "sort"

// OffersBy returns ownerID's offers, newest first.
func OffersBy(offers []Offer, ownerID string) []Offer {
	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NewerThan(out[j]) })
	return out
}

// ActiveOffer is ownerID's most recent offer.
func ActiveOffer(offers []Offer, ownerID string) (Offer, bool) {
	mine := OffersBy(offers, ownerID)
	if len(mine) == 0 {
		return Offer{}, false
	}
	return mine[0], true
}

// CheckOfferDelete allows deleting only the tip of the requester's own
// ledger.
func CheckOfferDelete(offers []Offer, partyID, offerID string) (Offer, error) {
	var target *Offer
	for i := range offers {
		if offers[i].OfferID == offerID {
			target = &offers[i]
			break
		}
	}
	if target == nil {
		return Offer{}, NotFoundf("offer %s not found", offerID)
	}
	if target.OwnerID != partyID {
		return Offer{}, Permissionf("offer %s belongs to another party", offerID)
	}
	latest, _ := ActiveOffer(offers, partyID)
	if latest.OfferID != offerID {
		return Offer{}, Conflictf("offer %s has been superseded by %s; only the most recent offer can be withdrawn", offerID, latest.OfferID)
	}
	return *target, nil
}

// ClearAcceptancesOf drops any acceptance pointing at offerID and reports
// which fields changed.
func ClearAcceptancesOf(tx *Transaction, offerID string) []Field {
	var cleared []Field
	if tx.BuyerAcceptedOffer != nil && *tx.BuyerAcceptedOffer == offerID {
		tx.BuyerAcceptedOffer = nil
		cleared = append(cleared, FieldBuyerAcceptedOffer)
	}
	if tx.SellerAcceptedOffer != nil && *tx.SellerAcceptedOffer == offerID {
		tx.SellerAcceptedOffer = nil
		cleared = append(cleared, FieldSellerAcceptedOffer)
	}
	return cleared
}

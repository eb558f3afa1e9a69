package domain

// CheckAdvance reports whether tx may move from its current stage to the
// next one. It returns the target stage, or a ConflictError naming the
// unmet precondition.
func CheckAdvance(tx Transaction) (Stage, error) {
	switch tx.Stage {
	case StageOffer:
		if tx.BuyerAcceptedOffer == nil || tx.SellerAcceptedOffer == nil {
			return tx.Stage, Conflictf("both parties must accept an offer before negotiation")
		}
		if *tx.BuyerAcceptedOffer != *tx.SellerAcceptedOffer {
			return tx.Stage, Conflictf("buyer and seller have accepted different offers")
		}
		return StageNegotiation, nil
	case StageNegotiation:
		if !tx.ContractsEqual {
			return tx.Stage, Conflictf("contracts are not in agreement")
		}
		if !tx.BuyerAcceptedContract || !tx.SellerAcceptedContract {
			return tx.Stage, Conflictf("both parties must accept the contract before closing")
		}
		if tx.ClosingID != nil {
			return tx.Stage, InternalInvariantf("transaction %s already has closing %s", tx.TransactionID, *tx.ClosingID)
		}
		return StageClosing, nil
	case StageClosing:
		return tx.Stage, Conflictf("transaction is closing; further progress is handled by the closing process")
	}
	return tx.Stage, InternalInvariantf("transaction %s has unknown stage %d", tx.TransactionID, tx.Stage)
}

// Mutable reports whether offers, contracts, clauses and fields may still
// change.
func (t Transaction) Mutable() error {
	if t.Stage >= StageClosing {
		return Conflictf("transaction %s is closing and can no longer be changed", t.TransactionID)
	}
	return nil
}

// CheckClosingComplete validates a completion report from the closing
// process. A repeat report for the same closing is accepted as a no-op.
func CheckClosingComplete(tx Transaction, closingID string) (bool, error) {
	if tx.Stage != StageClosing || tx.ClosingID == nil {
		return false, Conflictf("transaction %s has not entered closing", tx.TransactionID)
	}
	if *tx.ClosingID != closingID {
		return false, Conflictf("closing %s does not belong to transaction %s", closingID, tx.TransactionID)
	}
	return tx.ClosedAt != nil, nil
}

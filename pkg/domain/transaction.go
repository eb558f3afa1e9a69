package domain

import (
	"strings"
	"time"
)

type Stage int

const (
	StageOffer       Stage = 0
	StageNegotiation Stage = 1
	StageClosing     Stage = 2
)

func (s Stage) String() string {
	switch s {
	case StageOffer:
		return "OFFER"
	case StageNegotiation:
		return "NEGOTIATION"
	case StageClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
)

type Property struct {
	PropertyID   string       `json:"property_id"`
	OwnerID      string       `json:"owner_id"`
	PropertyType PropertyType `json:"property_type"`
}

type Transaction struct {
	TransactionID          string       `json:"transaction_id"`
	BuyerID                string       `json:"buyer_id"`
	SellerID               string       `json:"seller_id"`
	PropertyID             string       `json:"property_id"`
	PropertyType           PropertyType `json:"property_type"`
	Stage                  Stage        `json:"stage"`
	BuyerAcceptedOffer     *string      `json:"buyer_accepted_offer"`
	SellerAcceptedOffer    *string      `json:"seller_accepted_offer"`
	BuyerAcceptedContract  bool         `json:"buyer_accepted_contract"`
	SellerAcceptedContract bool         `json:"seller_accepted_contract"`
	ContractsEqual         bool         `json:"contracts_equal"`
	ClosingID              *string      `json:"closing_id,omitempty"`
	ClosedAt               *time.Time   `json:"closed_at,omitempty"`
	PaymentRef             *string      `json:"payment_ref,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
}

// RoleOf reports which side of the transaction partyID is on.
func (t Transaction) RoleOf(partyID string) (Role, bool) {
	switch partyID {
	case "":
		return "", false
	case t.BuyerID:
		return RoleBuyer, true
	case t.SellerID:
		return RoleSeller, true
	}
	return "", false
}

func (t Transaction) IsParticipant(partyID string) bool {
	_, ok := t.RoleOf(partyID)
	return ok
}

// Counterparty returns the other participant's id.
func (t Transaction) Counterparty(partyID string) string {
	if partyID == t.BuyerID {
		return t.SellerID
	}
	return t.BuyerID
}

// ValidateParties checks the creation invariants that don't need storage:
// both parties present, buyer distinct from seller, seller owns the property.
func ValidateParties(buyerID, sellerID string, p Property) error {
	buyerID = strings.TrimSpace(buyerID)
	sellerID = strings.TrimSpace(sellerID)
	if buyerID == "" || sellerID == "" || strings.TrimSpace(p.PropertyID) == "" {
		return Validationf("buyer, seller, and property are required")
	}
	if buyerID == sellerID {
		return Validationf("buyer and seller must be different parties")
	}
	if sellerID != p.OwnerID {
		return Validationf("seller %s does not own property %s", sellerID, p.PropertyID)
	}
	if _, ok := LookupPropertyType(p.PropertyType); !ok {
		return Validationf("unsupported property type %q", p.PropertyType)
	}
	return nil
}

type Offer struct {
	OfferID       string    `json:"offer_id"`
	TransactionID string    `json:"transaction_id"`
	OwnerID       string    `json:"owner_id"`
	Amount        int64     `json:"amount"`
	Deposit       int64     `json:"deposit"`
	Comment       string    `json:"comment"`
	Seq           int64     `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

type OfferInput struct {
	Amount  int64  `json:"amount"`
	Deposit int64  `json:"deposit"`
	Comment string `json:"comment"`
}

func (in OfferInput) Validate() error {
	if in.Amount <= 0 {
		return Validationf("offer amount must be positive")
	}
	if in.Deposit < 0 {
		return Validationf("offer deposit must not be negative")
	}
	if in.Deposit > in.Amount {
		return Validationf("offer deposit must not exceed the amount")
	}
	return nil
}

// NewerThan orders offers by timestamp, falling back to insertion sequence
// when two offers share a timestamp.
func (o Offer) NewerThan(other Offer) bool {
	if !o.CreatedAt.Equal(other.CreatedAt) {
		return o.CreatedAt.After(other.CreatedAt)
	}
	return o.Seq > other.Seq
}

type Contract struct {
	ContractID    string    `json:"contract_id"`
	TransactionID string    `json:"transaction_id"`
	OwnerID       string    `json:"owner_id"`
	CreatedAt     time.Time `json:"created_at"`
	Clauses       []Clause  `json:"clauses"`
}

func (c Contract) Clause(clauseID string) (Clause, int, bool) {
	for i, cl := range c.Clauses {
		if cl.ClauseID == clauseID {
			return cl, i, true
		}
	}
	return Clause{}, -1, false
}

package domain

import (
	"sort"
	"strings"
)

// Field names a party-writable transaction column.
type Field string

const (
	FieldBuyerAcceptedOffer     Field = "buyer_accepted_offer"
	FieldSellerAcceptedOffer    Field = "seller_accepted_offer"
	FieldBuyerAcceptedContract  Field = "buyer_accepted_contract"
	FieldSellerAcceptedContract Field = "seller_accepted_contract"
	FieldContractsEqual         Field = "contracts_equal"
	FieldStage                  Field = "stage"
	FieldPaymentRef             Field = "payment_ref"
)

// fieldOwners maps each known field to the role allowed to write it. An
// empty role means nobody writes the field directly; the engine derives it.
var fieldOwners = map[Field]Role{
	FieldBuyerAcceptedOffer:     RoleBuyer,
	FieldBuyerAcceptedContract:  RoleBuyer,
	FieldSellerAcceptedOffer:    RoleSeller,
	FieldSellerAcceptedContract: RoleSeller,
	FieldContractsEqual:         "",
	FieldStage:                  "",
	FieldPaymentRef:             "",
}

// FieldUpdate is one requested write. Value is nil to clear an offer
// acceptance.
type FieldUpdate struct {
	Field Field
	Value any
}

// CheckFieldPermissions rejects the whole batch if any field is unknown or
// not owned by partyID's role on tx.
func CheckFieldPermissions(tx Transaction, partyID string, updates []FieldUpdate) error {
	role, ok := tx.RoleOf(partyID)
	if !ok {
		return Permissionf("party %s is not a participant in transaction %s", partyID, tx.TransactionID)
	}
	if len(updates) == 0 {
		return Validationf("no fields to set")
	}
	var denied []string
	for _, u := range updates {
		owner, known := fieldOwners[u.Field]
		if !known {
			return Validationf("unknown transaction field %q", u.Field)
		}
		if owner != role {
			denied = append(denied, string(u.Field))
		}
	}
	if len(denied) > 0 {
		sort.Strings(denied)
		return Permissionf("%s may not write %s", strings.ToLower(string(role)), strings.Join(denied, ", "))
	}
	return nil
}

// WritableFields lists the fields role may set, sorted.
func WritableFields(role Role) []Field {
	var out []Field
	for f, owner := range fieldOwners {
		if owner != "" && owner == role {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyFieldUpdates writes already-authorized updates onto tx. Offer
// acceptances take an offer id or nil; contract acceptances take a bool.
// offerExists resolves offer ids on this transaction.
func ApplyFieldUpdates(tx *Transaction, updates []FieldUpdate, offerExists func(id string) bool) error {
	next := *tx
	for _, u := range updates {
		switch u.Field {
		case FieldBuyerAcceptedOffer, FieldSellerAcceptedOffer:
			var ref *string
			switch v := u.Value.(type) {
			case nil:
			case string:
				if strings.TrimSpace(v) == "" {
					return Validationf("%s must be an offer id or null", u.Field)
				}
				if !offerExists(v) {
					return NotFoundf("offer %s not found on transaction %s", v, tx.TransactionID)
				}
				id := v
				ref = &id
			default:
				return Validationf("%s must be an offer id or null", u.Field)
			}
			if u.Field == FieldBuyerAcceptedOffer {
				next.BuyerAcceptedOffer = ref
			} else {
				next.SellerAcceptedOffer = ref
			}
		case FieldBuyerAcceptedContract, FieldSellerAcceptedContract:
			b, ok := u.Value.(bool)
			if !ok {
				return Validationf("%s must be a boolean", u.Field)
			}
			if u.Field == FieldBuyerAcceptedContract {
				next.BuyerAcceptedContract = b
			} else {
				next.SellerAcceptedContract = b
			}
		default:
			return Permissionf("field %s is not writable", u.Field)
		}
	}
	*tx = next
	return nil
}

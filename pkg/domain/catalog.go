package domain

import (
	"sort"
	"time"
)

type PropertyType string

const (
	PropertyHouse        PropertyType = "house"
	PropertyTownhouse    PropertyType = "townhouse"
	PropertyCondo        PropertyType = "condo"
	PropertyCoop         PropertyType = "coop"
	PropertyCoOwnership  PropertyType = "co_ownership"
	PropertyManufactured PropertyType = "manufactured"
	PropertyVacantLand   PropertyType = "vacant_land"
)

// DynamicClauseSpec is a registered negotiable clause kind.
type DynamicClauseSpec struct {
	Key         string
	Title       string
	Kind        ClauseKind
	Category    ClauseCategory
	Prompt      string
	Explanation string
	Preview     string
	Required    bool
	TextType    TextType
	Options     []string
	Default     func(created time.Time) ClauseValue
}

type StaticClauseSpec struct {
	Key         string
	Title       string
	Preview     string
	Explanation string
	Required    bool
}

// PropertyCatalog lists the clause keys a contract for one property type is
// instantiated with, in display order.
type PropertyCatalog struct {
	Type    PropertyType
	Dynamic []string
	Static  []string
}

var dynamicClauses = map[string]DynamicClauseSpec{
	"deposit": {
		Key: "deposit", Title: "Deposit Deadline", Kind: ClauseText, TextType: TextInteger, Category: CategoryFinancial,
		Prompt:      "Days to deliver the deposit after acceptance",
		Explanation: "The buyer delivers the deposit within this many days of acceptance. The deposit is held in trust and forms part of the purchase price on completion.",
		Preview:     "The Buyer shall deliver the deposit to the Deposit Holder within {value} days of the acceptance of this Agreement.",
		Required:    true,
		Default:     func(time.Time) ClauseValue { return TextValue("") },
	},
	"irrevocability": {
		Key: "irrevocability", Title: "Irrevocability", Kind: ClauseDate, Category: CategoryDeadline,
		Prompt:      "Offer open until",
		Explanation: "The submitting party cannot withdraw the offer before this date; after it the offer is void and the deposit is refunded.",
		Preview:     "This offer shall be irrevocable by the Buyer and Seller until {value}, after which time, if not accepted, this offer shall be null and void.",
		Default:     func(t time.Time) ClauseValue { return DateValue(t) },
	},
	"completion_date": {
		Key: "completion_date", Title: "Completion Date", Kind: ClauseDate, Category: CategoryDeadline,
		Prompt:      "Closing date",
		Explanation: "The date the buyer takes possession and ownership is registered. The seller vacates the property by this date.",
		Preview:     "This Agreement shall be completed by no later than {value}. Upon completion, the Buyer will have vacant possession of the property.",
		Required:    true,
		Default:     func(t time.Time) ClauseValue { return DateValue(t) },
	},
	"mortgage_date": {
		Key: "mortgage_date", Title: "Mortgage Deadline", Kind: ClauseDate, Category: CategoryDeadline,
		Prompt:      "Mortgage must be arranged by",
		Explanation: "The offer is conditional on the buyer arranging a mortgage by this date; otherwise it terminates and monies are refunded.",
		Preview:     "The Buyer must arrange the Charge/Mortgage not later than {value}, failing which this offer shall be terminated and all monies refunded.",
		Required:    true,
		Default:     func(t time.Time) ClauseValue { return DateValue(t) },
	},
	"survey_date": {
		Key: "survey_date", Title: "Survey Deadline", Kind: ClauseDate, Category: CategoryDeadline,
		Prompt:      "Survey delivered by",
		Explanation: "The seller provides an existing or new survey of the property, with building plans and manuals, by this date.",
		Preview:     "The Seller agrees to provide, at the Seller's own expense, not later than {value}, an existing or new survey of said property.",
		Default:     func(t time.Time) ClauseValue { return DateValue(t) },
	},
	"chattels_inc": {
		Key: "chattels_inc", Title: "Chattels Included", Kind: ClauseChip, Category: CategoryPossessions,
		Prompt:      "Moveable items included in the price",
		Explanation: "List the moveable possessions, such as appliances, included in the purchase price. Detailed descriptions avoid disputes.",
		Preview:     "Seller agrees to convey the following chattels included in the Purchase Price free from all liens: {value}",
		Default:     func(time.Time) ClauseValue { return ChipValue(nil) },
	},
	"fixtures_exc": {
		Key: "fixtures_exc", Title: "Fixtures Excluded", Kind: ClauseChip, Category: CategoryPossessions,
		Prompt:      "Attached items excluded from the price",
		Explanation: "List the attached possessions, such as light fixtures, excluded from the purchase price.",
		Preview:     "The following fixtures are excluded from the Purchase Price: {value}",
		Default:     func(time.Time) ClauseValue { return ChipValue(nil) },
	},
	"rented_items": {
		Key: "rented_items", Title: "Rental Items", Kind: ClauseChip, Category: CategoryPossessions,
		Prompt:      "Rented equipment the buyer assumes",
		Explanation: "List rented equipment, such as water heaters, whose rental contracts the buyer agrees to assume.",
		Preview:     "The following equipment is rented and excluded from the Purchase Price; the Buyer agrees to assume the rental contracts: {value}",
		Default:     func(time.Time) ClauseValue { return ChipValue(nil) },
	},
	"chattels_and_fixs": {
		Key: "chattels_and_fixs", Title: "Chattels and Fixtures", Kind: ClauseToggle, Category: CategoryUpkeep,
		Prompt:      "Chattels and fixtures in working order",
		Explanation: "Listed chattels and fixtures will be in good working order and free of claims on completion.",
		Preview:     "The Seller represents and warrants that the chattels and fixtures included in this Agreement will be in good working order and free from liens on completion.",
		Default:     func(time.Time) ClauseValue { return ToggleValue(true) },
	},
	"buyer_mrtg_arrange": {
		Key: "buyer_mrtg_arrange", Title: "Buyer Arranges Mortgage", Kind: ClauseToggle, Category: CategoryFinancial,
		Prompt:      "Conditional on buyer financing",
		Explanation: "The offer is conditional on the buyer arranging a mortgage sufficient to pay the balance of the price.",
		Preview:     "This Offer is conditional upon the Buyer arranging, at the Buyer's own expense, a Charge/Mortgage satisfactory to pay the balance of the purchase price.",
		Default:     func(time.Time) ClauseValue { return ToggleValue(true) },
	},
	"equipment": {
		Key: "equipment", Title: "Equipment", Kind: ClauseToggle, Category: CategoryUpkeep,
		Prompt:      "Building equipment in working order",
		Explanation: "Mechanical, electrical, heating and other equipment will be in good working order on completion.",
		Preview:     "The Seller warrants that all mechanical, electrical, heating, ventilation and other equipment on the property shall be in good working order on completion.",
		Default:     func(time.Time) ClauseValue { return ToggleValue(true) },
	},
	"environmental": {
		Key: "environmental", Title: "Environmental", Kind: ClauseToggle, Category: CategoryUpkeep,
		Prompt:      "Environmental compliance warranty",
		Explanation: "The seller warrants compliance with environmental laws and the absence of hazardous substances by completion.",
		Preview:     "The Seller represents and warrants that all environmental laws and regulations have been complied with and no hazardous conditions exist on the land.",
		Default:     func(time.Time) ClauseValue { return ToggleValue(true) },
	},
	"maintenance": {
		Key: "maintenance", Title: "Maintenance", Kind: ClauseToggle, Category: CategoryUpkeep,
		Prompt:      "Premises left clean and repaired",
		Explanation: "The seller keeps the property maintained until completion and leaves it clean and uncluttered.",
		Preview:     "The Seller agrees to leave the premises in a clean and broom swept condition and to repair or replace any damaged floor covering.",
		Default:     func(time.Time) ClauseValue { return ToggleValue(true) },
	},
	"uffi": {
		Key: "uffi", Title: "UFFI", Kind: ClauseToggle, Category: CategoryUpkeep,
		Prompt:      "No urea formaldehyde insulation",
		Explanation: "The seller warrants no urea formaldehyde or vermiculite insulation was installed, to the best of their knowledge.",
		Preview:     "The Seller represents and warrants that no building on the property contains insulation containing urea formaldehyde or vermiculite.",
		Default:     func(time.Time) ClauseValue { return ToggleValue(true) },
	},
	"payment_method": {
		Key: "payment_method", Title: "Payment Method", Kind: ClauseDropdown, Category: CategoryFinancial,
		Prompt:      "How the purchase price is paid",
		Explanation: "The buyer pays the full purchase price on completion using the selected payment method.",
		Preview:     "The Buyer agrees to pay the Seller on completion of this transaction via a {value} payment.",
		Required:    true,
		Options:     []string{"Credit Card", "Cheque", "Cash"},
		Default:     func(time.Time) ClauseValue { return DropdownValue("Credit Card") },
	},
}

var staticClauses = map[string]StaticClauseSpec{
	"completion_date_adjustments": {Key: "completion_date_adjustments", Title: "Completion Date Adjustments",
		Preview: "The completion date may be extended by mutual agreement in writing of the Buyer and Seller."},
	"notices": {Key: "notices", Title: "Notices",
		Preview: "Any notice relating to this Agreement shall be in writing and delivered through the parties' registered accounts."},
	"buyer_negligence": {Key: "buyer_negligence", Title: "Buyer Negligence",
		Preview: "Should this transaction not complete solely due to the Buyer's default, the deposit shall be forfeited to the Seller."},
	"electronic": {Key: "electronic", Title: "Electronic Signatures",
		Preview: "This Agreement may be executed and delivered by electronic means, which shall be binding on the parties."},
	"sales_tax": {Key: "sales_tax", Title: "Sales Tax",
		Preview: "If this transaction is subject to sales tax, such tax shall be included in the Purchase Price."},
	"deadline_extensions": {Key: "deadline_extensions", Title: "Time Limits",
		Preview: "Time shall in all respects be of the essence, provided that any time limit may be extended by written agreement."},
	"family_law_act": {Key: "family_law_act", Title: "Family Law Act",
		Preview: "The Seller warrants that spousal consent is not necessary to this transaction unless spousal consent is executed."},
	"personal_information": {Key: "personal_information", Title: "Personal Information",
		Preview: "The parties consent to the collection, use and disclosure of their personal information for the purpose of this transaction."},
	"agreement_in_writing": {Key: "agreement_in_writing", Title: "Agreement in Writing",
		Preview: "This Agreement sets out the entire agreement between the Buyer and Seller and no other representation forms part of it."},
	"time_and_date": {Key: "time_and_date", Title: "Time and Date",
		Preview: "Any reference to a time and date in this Agreement means the local time and date where the property is located."},
	"title": {Key: "title", Title: "Title", Required: true,
		Preview: "The Buyer agrees to accept title subject to registered easements for utilities, provided title is otherwise good and free of encumbrances."},
	"title_search": {Key: "title_search", Title: "Title Search",
		Preview: "The Seller consents to the municipality and other agencies releasing to the Buyer details of all outstanding work orders and deficiency notices."},
	"documents_request": {Key: "documents_request", Title: "Documents Request",
		Preview: "The Seller shall not be required to produce any title deed, abstract or survey not in the Seller's possession or control."},
	"discharge": {Key: "discharge", Title: "Discharge",
		Preview: "Any existing Charge/Mortgage to be discharged on completion may be discharged after completion on a solicitor's undertaking."},
	"inspection_omit": {Key: "inspection_omit", Title: "Omit Inspection",
		Preview: "The Buyer acknowledges having had the opportunity to inspect the property prior to signing this Agreement."},
	"insurance": {Key: "insurance", Title: "Insurance",
		Preview: "All buildings on the property shall remain at the risk of the Seller until completion, and the Seller shall hold insurance in trust."},
	"planning": {Key: "planning", Title: "Planning",
		Preview: "This Agreement is effective only if the Seller complies with the subdivision control provisions of the applicable planning legislation."},
	"document_prep": {Key: "document_prep", Title: "Document Preparation",
		Preview: "The Transfer/Deed shall be prepared by the Seller at the Seller's expense, and any Charge/Mortgage by the Buyer at the Buyer's expense."},
	"residency": {Key: "residency", Title: "Residency",
		Preview: "The Seller represents that the Seller is not a non-resident under the non-residency provisions of the Income Tax Act."},
	"non_residency": {Key: "non_residency", Title: "Non-Residency",
		Preview: "If the Seller is a non-resident, the Buyer shall be credited towards the Purchase Price with the amount required to be withheld."},
	"adjustments": {Key: "adjustments", Title: "Adjustments",
		Preview: "Rents, mortgage interest, taxes and unmetered utilities shall be apportioned and allowed to the day of completion."},
	"property_tax_assessment": {Key: "property_tax_assessment", Title: "Property Tax Assessment",
		Preview: "Any reassessment of the property after completion shall not be a matter of adjustment between the Buyer and Seller."},
	"tender": {Key: "tender", Title: "Tender",
		Preview: "Any tender of documents or money may be made upon the Seller or Buyer or their lawyers on the completion date."},
	"status_certificate_and_mgmt": {Key: "status_certificate_and_mgmt", Title: "Status Certificate and Management",
		Preview: "The Seller shall provide a status certificate from the condominium corporation and the name of its property manager."},
	"condo_laws_acknowledgement_pre": {Key: "condo_laws_acknowledgement_pre", Title: "Condominium Acknowledgement",
		Preview: "The Buyer acknowledges the declaration, by-laws and rules of the corporation and agrees to comply with them."},
	"unit_insurance": {Key: "unit_insurance", Title: "Unit Insurance",
		Preview: "The unit shall remain at the risk of the Seller until completion, subject to the corporation's master insurance policy."},
	"alt_alterations": {Key: "alt_alterations", Title: "Alterations",
		Preview: "The Seller warrants that no alterations were made to the unit without the consent of the corporation."},
	"occupancy_agreement": {Key: "occupancy_agreement", Title: "Occupancy Agreement",
		Preview: "The Buyer agrees to execute the occupancy agreement required by the corporation on or before completion."},
	"alt_documents_request": {Key: "alt_documents_request", Title: "Corporation Documents",
		Preview: "The Seller shall deliver the corporation's governing documents and most recent financial statements to the Buyer."},
	"alt_document_prep": {Key: "alt_document_prep", Title: "Unit Transfer Preparation",
		Preview: "The transfer of the unit shall be prepared by the Seller and any charge by the Buyer, each at their own expense."},
	"alt_residency": {Key: "alt_residency", Title: "Unit Residency",
		Preview: "The Seller represents residency status for the purposes of the Income Tax Act in respect of the unit."},
	"meetings": {Key: "meetings", Title: "Meetings",
		Preview: "The Seller represents that no special meeting of the corporation has been called that would affect the property."},
	"corporation_documentation": {Key: "corporation_documentation", Title: "Co-operative Documentation",
		Preview: "The Seller shall provide the co-operative's by-laws, occupancy agreement and financial statements prior to completion."},
	"coop_adjustments": {Key: "coop_adjustments", Title: "Co-operative Adjustments",
		Preview: "Co-operative maintenance fees shall be apportioned and allowed to the day of completion."},
	"approval_of_agreement": {Key: "approval_of_agreement", Title: "Approval of Agreement", Required: true,
		Preview: "This Agreement is conditional on the approval of the transfer by the condominium board where such approval is required."},
	"coownership_residency": {Key: "coownership_residency", Title: "Co-Ownership Residency",
		Preview: "The Buyer agrees to occupy the unit under the terms of the co-ownership agreement."},
	"rules_and_regs": {Key: "rules_and_regs", Title: "Park Rules and Regulations",
		Preview: "The Buyer acknowledges and agrees to comply with the rules and regulations of the land lease community."},
	"lease": {Key: "lease", Title: "Site Lease", Required: true,
		Preview: "This Agreement is conditional on the Buyer entering into a lease of the site with the land lease community operator."},
}

var genericStatic = []string{
	"completion_date_adjustments", "notices", "buyer_negligence", "electronic", "sales_tax",
	"deadline_extensions", "family_law_act", "personal_information", "agreement_in_writing", "time_and_date",
}

var genericDynamic = []string{"deposit", "completion_date", "irrevocability", "payment_method", "buyer_mrtg_arrange"}

func joinKeys(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var houseStatic = joinKeys(genericStatic, []string{
	"title", "title_search", "documents_request", "discharge", "inspection_omit", "insurance", "planning",
	"document_prep", "residency", "non_residency", "adjustments", "property_tax_assessment", "tender",
})

var houseDynamic = joinKeys(genericDynamic, []string{
	"chattels_inc", "fixtures_exc", "rented_items", "mortgage_date", "equipment", "environmental",
	"survey_date", "maintenance", "uffi", "chattels_and_fixs",
})

var coopStatic = joinKeys(genericStatic, []string{
	"title_search", "inspection_omit", "property_tax_assessment", "alt_alterations", "occupancy_agreement",
	"alt_documents_request", "corporation_documentation", "meetings", "coop_adjustments",
})

var coopDynamic = joinKeys(genericDynamic, []string{
	"chattels_inc", "fixtures_exc", "rented_items", "equipment", "environmental", "maintenance", "chattels_and_fixs",
})

var catalogs = map[PropertyType]PropertyCatalog{
	PropertyHouse: {Type: PropertyHouse, Static: houseStatic, Dynamic: houseDynamic},
	PropertyTownhouse: {Type: PropertyTownhouse, Dynamic: houseDynamic,
		Static: joinKeys(houseStatic, []string{"status_certificate_and_mgmt", "meetings", "condo_laws_acknowledgement_pre"})},
	PropertyCoop: {Type: PropertyCoop, Static: coopStatic, Dynamic: coopDynamic},
	PropertyCondo: {Type: PropertyCondo,
		Static: joinKeys(coopStatic, []string{
			"title", "status_certificate_and_mgmt", "condo_laws_acknowledgement_pre", "unit_insurance",
			"alt_document_prep", "alt_residency", "approval_of_agreement",
		}),
		Dynamic: joinKeys(coopDynamic, []string{"mortgage_date", "uffi"})},
	PropertyCoOwnership: {Type: PropertyCoOwnership,
		Static: joinKeys(genericStatic, []string{
			"title", "title_search", "inspection_omit", "property_tax_assessment", "alt_alterations",
			"occupancy_agreement", "alt_documents_request", "coownership_residency", "adjustments",
		}),
		Dynamic: joinKeys(genericDynamic, []string{
			"chattels_inc", "fixtures_exc", "rented_items", "mortgage_date", "equipment", "environmental",
			"maintenance", "chattels_and_fixs",
		})},
	PropertyManufactured: {Type: PropertyManufactured,
		Static: joinKeys(genericStatic, []string{
			"residency", "non_residency", "adjustments", "tender", "rules_and_regs", "lease", "title",
			"documents_request", "discharge", "inspection_omit", "insurance",
		}),
		Dynamic: joinKeys(genericDynamic, []string{
			"chattels_inc", "fixtures_exc", "rented_items", "mortgage_date", "equipment", "environmental",
			"maintenance", "chattels_and_fixs",
		})},
	PropertyVacantLand: {Type: PropertyVacantLand,
		Static: joinKeys(genericStatic, []string{
			"title", "title_search", "documents_request", "discharge", "insurance", "planning", "document_prep",
			"residency", "non_residency", "adjustments", "property_tax_assessment", "tender",
		}),
		Dynamic: joinKeys(genericDynamic, []string{"mortgage_date", "survey_date"})},
}

func LookupPropertyType(t PropertyType) (PropertyCatalog, bool) {
	c, ok := catalogs[t]
	return c, ok
}

func PropertyTypes() []PropertyType {
	out := make([]PropertyType, 0, len(catalogs))
	for t := range catalogs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func LookupDynamicClause(key string) (DynamicClauseSpec, bool) {
	s, ok := dynamicClauses[key]
	return s, ok
}

// IDFunc mints clause ids when a catalog is instantiated.
type IDFunc func() string

// InstantiateClauses builds the full clause set for a new contract: every
// registered static clause for the property type followed by every dynamic
// clause with its kind default. Defaults that depend on a date use created.
func InstantiateClauses(t PropertyType, contractID string, created time.Time, newID IDFunc) ([]Clause, error) {
	cat, ok := catalogs[t]
	if !ok {
		return nil, Validationf("unsupported property type %q", t)
	}
	out := make([]Clause, 0, len(cat.Static)+len(cat.Dynamic))
	for _, key := range cat.Static {
		s, ok := staticClauses[key]
		if !ok {
			return nil, InternalInvariantf("static clause %q missing from registry", key)
		}
		out = append(out, Clause{
			ClauseID:    newID(),
			ContractID:  contractID,
			Key:         s.Key,
			Title:       s.Title,
			Kind:        ClauseStatic,
			Explanation: s.Explanation,
			Preview:     s.Preview,
			Required:    s.Required,
			Value:       staticValue(),
		})
	}
	seen := map[string]bool{}
	for _, key := range cat.Dynamic {
		d, ok := dynamicClauses[key]
		if !ok {
			return nil, InternalInvariantf("dynamic clause %q missing from registry", key)
		}
		if seen[d.Title] {
			return nil, InternalInvariantf("dynamic clause title %q registered twice for %s", d.Title, t)
		}
		seen[d.Title] = true
		out = append(out, Clause{
			ClauseID:    newID(),
			ContractID:  contractID,
			Key:         d.Key,
			Title:       d.Title,
			Kind:        d.Kind,
			Category:    d.Category,
			Prompt:      d.Prompt,
			Explanation: d.Explanation,
			Preview:     d.Preview,
			Required:    d.Required,
			TextType:    d.TextType,
			Options:     append([]string(nil), d.Options...),
			Value:       d.Default(created),
		})
	}
	return out, nil
}

// CatalogClauses is the clause set a new contract for t would get, keyed by
// clause key instead of a minted id.
func CatalogClauses(t PropertyType, created time.Time) ([]Clause, error) {
	cat, ok := catalogs[t]
	if !ok {
		return nil, NotFoundf("unknown property type %q", t)
	}
	keys := append(append([]string{}, cat.Static...), cat.Dynamic...)
	i := 0
	return InstantiateClauses(t, "", created, func() string {
		k := keys[i]
		i++
		return k
	})
}

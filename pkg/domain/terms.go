package domain

// Terms maps each dynamic clause title of a contract to its value.
type Terms map[string]ClauseValue

func ExtractTerms(c Contract) Terms {
	out := make(Terms, len(c.Clauses))
	for _, cl := range c.Clauses {
		if !cl.IsDynamic() {
			continue
		}
		out[cl.Title] = cl.Value
	}
	return out
}

// Equal is structural equality: same title set, equal value per title.
func (t Terms) Equal(o Terms) bool {
	if len(t) != len(o) {
		return false
	}
	for title, v := range t {
		ov, ok := o[title]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Plain converts the terms into a JSON-friendly map for hashing.
func (t Terms) Plain() map[string]any {
	out := make(map[string]any, len(t))
	for title, v := range t {
		out[title] = map[string]any{"kind": string(v.Kind), "value": v.Plain()}
	}
	return out
}

// ContractsAgree is the agreement check over a transaction's contracts. It
// requires exactly two contracts.
func ContractsAgree(contracts []Contract) (bool, error) {
	if len(contracts) != 2 {
		return false, InternalInvariantf("agreement check needs exactly 2 contracts, have %d", len(contracts))
	}
	return ExtractTerms(contracts[0]).Equal(ExtractTerms(contracts[1])), nil
}

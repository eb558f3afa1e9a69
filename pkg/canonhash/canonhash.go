// Package canonhash digests agreed contract terms so the closing service and
// the negotiation record can refer to the same agreement.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// TermsVersion tags the envelope the digest is taken over. Bump it when the
// shape of the terms map changes.
const TermsVersion = "terms-v1"

type termsEnvelope struct {
	Version string         `json:"version"`
	Terms   map[string]any `json:"terms"`
}

// SumTerms digests an agreed title to value map. encoding/json writes map
// keys sorted, so the result does not depend on insertion order; slice
// order inside a value does count.
func SumTerms(terms map[string]any) (string, error) {
	if terms == nil {
		terms = map[string]any{}
	}
	b, err := json.Marshal(termsEnvelope{Version: TermsVersion, Terms: terms})
	if err != nil {
		return "", fmt.Errorf("encode terms: %w", err)
	}
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

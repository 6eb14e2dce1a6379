package genome

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashLength is the number of hex characters kept from the SHA-256 digest.
const HashLength = 16

// ContentHash returns the truncated SHA-256 of the canonical JSON encoding
// of v. Object keys are sorted so that equal content always hashes equally,
// independent of struct field order.
func ContentHash(v any) (string, error) {
	canonical, err := canonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode content for hashing: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:HashLength], nil
}

// canonicalJSON encodes v with sorted object keys by round-tripping it
// through a generic value; encoding/json sorts map keys on output.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

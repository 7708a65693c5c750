package intel

import (
	"fmt"
	"sort"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-mev-engine/internal/domain"
)

// ValidatePubkey checks that a producer key is well-formed base58 of 32 bytes.
func ValidatePubkey(pubkey string) error {
	decoded, err := base58.Decode(pubkey)
	if err != nil {
		return fmt.Errorf("decode pubkey %q: %w", pubkey, err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("pubkey %q: expected 32 bytes, got %d", pubkey, len(decoded))
	}
	return nil
}

// IsOnCurve reports whether the key decodes to a valid ed25519 curve point.
// Program-derived addresses are intentionally off-curve, so a producer
// identity key must be on-curve.
func IsOnCurve(pubkey string) bool {
	decoded, err := base58.Decode(pubkey)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}

// ValidEntries filters an intel map down to entries whose producer key is
// well-formed and on-curve, returning the sorted rejected keys. Malformed
// rows in the backing store must never reach the lookup.
func ValidEntries(entries map[string]*domain.ProducerIntel) (map[string]*domain.ProducerIntel, []string) {
	valid := make(map[string]*domain.ProducerIntel, len(entries))
	var rejected []string
	for key, p := range entries {
		if ValidatePubkey(key) != nil || !IsOnCurve(key) {
			rejected = append(rejected, key)
			continue
		}
		valid[key] = p
	}
	sort.Strings(rejected)
	return valid, rejected
}

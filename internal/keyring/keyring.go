// Package keyring holds the process-wide secret key material. The keys are
// derived once at startup from a single master key and handed by reference to
// each component's constructor; the storage backend never sees any of them.
package keyring

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Purpose labels used as HKDF info strings. Each consumer gets its own
// independent subkey so a compromise of one cannot be leveraged against the
// others.
const (
	purposeIntegrity = "ehr-gateway/integrity-mac/v1"
	purposeSensitive = "ehr-gateway/sensitive-aead/v1"
	purposeChain     = "ehr-gateway/completeness-chain/v1"
	purposeOrder     = "ehr-gateway/order-preserving/v1"
)

// Ring carries the derived subkeys for every cryptographic concern.
type Ring struct {
	integrityKey []byte // HMAC key for per-row tags
	sensitiveKey []byte // AES-256 key for field encryption
	chainKey     []byte // HMAC key for completeness chains
	orderKey     []byte // seed for the order-preserving table
}

// New derives all subkeys from a 32-byte master key using HKDF-SHA256.
func New(masterKey []byte) (*Ring, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}
	r := &Ring{}
	for _, d := range []struct {
		purpose string
		dst     *[]byte
	}{
		{purposeIntegrity, &r.integrityKey},
		{purposeSensitive, &r.sensitiveKey},
		{purposeChain, &r.chainKey},
		{purposeOrder, &r.orderKey},
	} {
		key := make([]byte, 32)
		kdf := hkdf.New(sha256.New, masterKey, nil, []byte(d.purpose))
		if _, err := io.ReadFull(kdf, key); err != nil {
			return nil, fmt.Errorf("failed to derive %q subkey: %w", d.purpose, err)
		}
		*d.dst = key
	}
	return r, nil
}

// IntegrityKey returns the HMAC key for row integrity tags.
func (r *Ring) IntegrityKey() []byte { return r.integrityKey }

// SensitiveKey returns the AES key for the confidentiality transform.
func (r *Ring) SensitiveKey() []byte { return r.sensitiveKey }

// ChainKey returns the HMAC key for completeness chain digests.
func (r *Ring) ChainKey() []byte { return r.chainKey }

// OrderKey returns the seed for the order-preserving encoder.
func (r *Ring) OrderKey() []byte { return r.orderKey }

// Zero overwrites all key material. Call on process shutdown.
func (r *Ring) Zero() {
	for _, k := range [][]byte{r.integrityKey, r.sensitiveKey, r.chainKey, r.orderKey} {
		for i := range k {
			k[i] = 0
		}
	}
}

package sensitive

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Order-preserving weight encoding. Weights are quantized to 0.1 kg over
// [0, 500] kg and mapped through a keyed monotone table: each quantum gets a
// pseudorandom positive gap derived from the key, and a weight encodes to the
// prefix sum of gaps up to its quantum. Ciphertext order equals plaintext
// order, which is the scheme's whole leakage; without the key the gap sizes
// are unpredictable and the code alone does not reveal the value. Exact
// decoding needs the key (binary search over the table), and display uses the
// auxiliary AES-GCM weight ciphertext regardless.

const (
	// WeightQuantum is the encoding precision in kg.
	WeightQuantum = 0.1
	// MaxWeightKg bounds the encodable domain.
	MaxWeightKg = 500

	maxUnits = int(MaxWeightKg / WeightQuantum)
)

// Encoder holds the keyed monotone table.
type Encoder struct {
	table []uint64
}

// NewEncoder builds the table from the order-preserving seed key.
func NewEncoder(key []byte) *Encoder {
	table := make([]uint64, maxUnits+1)
	var sum uint64
	for i := 0; i <= maxUnits; i++ {
		sum += gap(key, i)
		table[i] = sum
	}
	return &Encoder{table: table}
}

// gap derives a pseudorandom gap in [1, 65536] for one quantum.
func gap(key []byte, i int) uint64 {
	mac := hmac.New(sha256.New, key)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(i))
	mac.Write(buf[:])
	d := mac.Sum(nil)
	return uint64(binary.BigEndian.Uint16(d)) + 1
}

// Encode maps a weight to its order-preserving code.
func (e *Encoder) Encode(weight float64) (uint64, error) {
	q, err := quantize(weight)
	if err != nil {
		return 0, err
	}
	return e.table[q], nil
}

// Decode recovers the exact quantized weight from a code, or fails when the
// code does not sit on the table (a fabricated or foreign code).
func (e *Encoder) Decode(code uint64) (float64, error) {
	q := sort.Search(len(e.table), func(i int) bool { return e.table[i] >= code })
	if q == len(e.table) || e.table[q] != code {
		return 0, fmt.Errorf("code %d is not a valid encoding", code)
	}
	return float64(q) * WeightQuantum, nil
}

// EncodeRange maps an inclusive plaintext range onto code bounds for the
// backend's BETWEEN predicate. The lower bound rounds up and the upper bound
// rounds down to the next quantum, so the code range never admits a weight
// outside the plaintext range.
func (e *Encoder) EncodeRange(min, max float64) (lo, hi uint64, err error) {
	if min > max {
		return 0, 0, fmt.Errorf("invalid range [%v, %v]", min, max)
	}
	// The epsilon absorbs float artifacts like 70.5/0.1 = 704.9999...
	qlo := int(math.Ceil(min/WeightQuantum - 1e-9))
	qhi := int(math.Floor(max/WeightQuantum + 1e-9))
	if qlo < 0 {
		qlo = 0
	}
	if qhi > maxUnits {
		qhi = maxUnits
	}
	if qlo > qhi {
		return 0, 0, fmt.Errorf("range [%v, %v] contains no encodable weight", min, max)
	}
	return e.table[qlo], e.table[qhi], nil
}

func quantize(weight float64) (int, error) {
	if weight < 0 || weight > MaxWeightKg || math.IsNaN(weight) {
		return 0, fmt.Errorf("weight %v outside encodable range [0, %d]", weight, MaxWeightKg)
	}
	return int(math.Round(weight / WeightQuantum)), nil
}

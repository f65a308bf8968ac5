package completeness

import "crypto/sha256"

// Merkle tree over row leaf hashes. Leaves and internal nodes are
// domain-separated so an internal node can never be passed off as a leaf. An
// odd level duplicates its last hash. The root goes into the exportable
// digest manifest; point queries come back with an inclusion proof.

// ProofStep is one sibling on the path from a leaf to the root.
type ProofStep struct {
	Sibling []byte `json:"sibling"`
	Left    bool   `json:"left"`
}

// LeafHash hashes a row id and its integrity tag into a leaf.
func LeafHash(rowID string, tag []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x00})
	h.Write([]byte(rowID))
	h.Write(tag)
	return h.Sum(nil)
}

func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Root builds the Merkle root from leaf hashes. The empty set hashes to the
// digest of the empty string by convention.
func Root(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		sum := sha256.Sum256(nil)
		return sum[:]
	}
	level := append([][]byte(nil), leaves...)
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, nodeHash(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

// Proof returns the inclusion proof for the leaf at index. Returns nil when
// the index is out of range.
func Proof(leaves [][]byte, index int) []ProofStep {
	if index < 0 || index >= len(leaves) {
		return nil
	}
	var proof []ProofStep
	level := append([][]byte(nil), leaves...)
	idx := index
	for len(level) > 1 {
		sibIdx := idx ^ 1
		if sibIdx >= len(level) {
			sibIdx = idx // odd level, sibling is the duplicate
		}
		proof = append(proof, ProofStep{Sibling: level[sibIdx], Left: sibIdx < idx})
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, nodeHash(level[i], level[i]))
			}
		}
		level = next
		idx /= 2
	}
	return proof
}

// VerifyProof recomputes the root from a leaf and its proof.
func VerifyProof(leaf []byte, proof []ProofStep, root []byte) bool {
	cur := leaf
	for _, step := range proof {
		if step.Left {
			cur = nodeHash(step.Sibling, cur)
		} else {
			cur = nodeHash(cur, step.Sibling)
		}
	}
	return string(cur) == string(root)
}

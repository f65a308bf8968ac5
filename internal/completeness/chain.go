// Package completeness detects row omission. Every bucket of rows carries a
// keyed hash chain over its row ids in insertion order; the chain head and
// count form the bucket's digest. A backend that drops a row from a result
// cannot mend the chain without the key.
package completeness

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// IncompleteError reports that a result set failed chain verification and may
// be missing rows. Confidence is the detection probability the failed check
// provided; it is reported, never hidden.
type IncompleteError struct {
	Bucket     int
	Confidence float64
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete result for bucket %d (detection confidence %.4f)", e.Bucket, e.Confidence)
}

// Entry is one returned row's position in its bucket chain. Commitment is the
// chain link value the row was assigned at insertion; it is covered by the
// row's integrity tag, so a verified row's commitment is trustworthy.
type Entry struct {
	RowID      string
	Pos        int
	Commitment []byte
}

// Chain computes and checks keyed bucket chains.
type Chain struct {
	key []byte
}

// NewChain creates a Chain around the given HMAC key.
func NewChain(key []byte) *Chain {
	return &Chain{key: key}
}

// Seed is the chain value of an empty bucket.
func (c *Chain) Seed(bucket int) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte("bucket"))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(bucket))
	mac.Write(buf[:])
	return mac.Sum(nil)
}

// Link extends a chain value with one row id.
func (c *Chain) Link(prev []byte, rowID string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(prev)
	mac.Write([]byte(rowID))
	return mac.Sum(nil)
}

// BuildHead recomputes the chain head for a bucket from its ordered row ids.
func (c *Chain) BuildHead(bucket int, rowIDs []string) []byte {
	head := c.Seed(bucket)
	for _, id := range rowIDs {
		head = c.Link(head, id)
	}
	return head
}

// VerifyBucket checks a full bucket's returned entries against its manifest
// digest. Detection of any omission is deterministic here: dropping any row,
// boundary or not, changes the recomputed head and the count.
func (c *Chain) VerifyBucket(bucket int, entries []Entry, head []byte, count int) error {
	if len(entries) != count {
		return &IncompleteError{Bucket: bucket, Confidence: 1}
	}
	got := c.Seed(bucket)
	for _, e := range entries {
		got = c.Link(got, e.RowID)
	}
	if !hmac.Equal(got, head) {
		return &IncompleteError{Bucket: bucket, Confidence: 1}
	}
	return nil
}

// VerifyLinks checks a bucket's returned entries without a manifest digest,
// using only the commitments the rows themselves carry: the first entry must
// anchor to the bucket seed and every later entry must extend its
// predecessor's commitment at the next position. Any interior omission breaks
// an adjacency and is caught; a truncated tail is the one position this check
// cannot see. The returned confidence is therefore 1 - 1/n for a bucket of n
// rows, and it applies to the success path as much as the failure path.
func (c *Chain) VerifyLinks(bucket int, entries []Entry, bucketSize int) (float64, error) {
	confidence := linkConfidence(bucketSize)
	prev := c.Seed(bucket)
	prevPos := -1
	for _, e := range entries {
		if e.Pos != prevPos+1 {
			return confidence, &IncompleteError{Bucket: bucket, Confidence: confidence}
		}
		if !hmac.Equal(e.Commitment, c.Link(prev, e.RowID)) {
			return confidence, &IncompleteError{Bucket: bucket, Confidence: confidence}
		}
		prev = e.Commitment
		prevPos = e.Pos
	}
	return confidence, nil
}

func linkConfidence(bucketSize int) float64 {
	if bucketSize <= 0 {
		return 0
	}
	return 1 - 1/float64(bucketSize)
}

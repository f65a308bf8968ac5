package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"secure-ehr-gateway/internal/models"
)

// MemoryStore is an in-process implementation of AccountStore and RowStore.
// Besides tests it doubles as the adversarial backend: Mutate edits stored
// bytes directly, bypassing the write path, the way a tampering storage party
// would.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	rows     map[string]models.PatientRecord
	digests  map[int]models.BucketDigest
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]models.Account),
		rows:     make(map[string]models.PatientRecord),
		digests:  make(map[int]models.BucketDigest),
	}
}

// FindAccount implements AccountStore.
func (s *MemoryStore) FindAccount(ctx context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

// CreateAccount implements AccountStore.
func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Username]; ok {
		return ErrDuplicate
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	s.accounts[account.Username] = *account
	return nil
}

// SaveAccount implements AccountStore.
func (s *MemoryStore) SaveAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Username] = *account
	return nil
}

// InsertRow implements RowStore.
func (s *MemoryStore) InsertRow(ctx context.Context, row *models.PatientRecord, digest *models.BucketDigest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	s.rows[row.ID] = *row
	s.digests[digest.Bucket] = *digest
	return row.ID, nil
}

// UpdateRow implements RowStore.
func (s *MemoryStore) UpdateRow(ctx context.Context, row *models.PatientRecord, digest *models.BucketDigest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[row.ID]; !ok {
		return ErrNotFound
	}
	s.rows[row.ID] = *row
	s.digests[digest.Bucket] = *digest
	return nil
}

// FetchAll implements RowStore.
func (s *MemoryStore) FetchAll(ctx context.Context) ([]models.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]models.PatientRecord, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	sortRows(rows)
	return rows, nil
}

// FetchBuckets implements RowStore.
func (s *MemoryStore) FetchBuckets(ctx context.Context, buckets []int, lo, hi uint64) ([]models.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[int]bool, len(buckets))
	for _, b := range buckets {
		want[b] = true
	}
	var rows []models.PatientRecord
	for _, row := range s.rows {
		if want[row.Bucket] && row.WeightCode >= lo && row.WeightCode <= hi {
			rows = append(rows, row)
		}
	}
	sortRows(rows)
	return rows, nil
}

// FetchByID implements RowStore.
func (s *MemoryStore) FetchByID(ctx context.Context, id string) (*models.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

// Digest implements RowStore.
func (s *MemoryStore) Digest(ctx context.Context, bucket int) (*models.BucketDigest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	digest, ok := s.digests[bucket]
	if !ok {
		return nil, ErrNotFound
	}
	return &digest, nil
}

// Digests implements RowStore.
func (s *MemoryStore) Digests(ctx context.Context) ([]models.BucketDigest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	digests := make([]models.BucketDigest, 0, len(s.digests))
	for _, d := range s.digests {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool { return digests[i].Bucket < digests[j].Bucket })
	return digests, nil
}

// Mutate edits a stored row in place, bypassing the signing write path. It
// simulates a backend that manipulates stored bytes directly.
func (s *MemoryStore) Mutate(id string, fn func(*models.PatientRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return false
	}
	fn(&row)
	s.rows[id] = row
	return true
}

// Drop removes a stored row without touching the digest, simulating a backend
// that omits matching rows from a result set.
func (s *MemoryStore) Drop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return false
	}
	delete(s.rows, id)
	return true
}

func sortRows(rows []models.PatientRecord) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Bucket != rows[j].Bucket {
			return rows[i].Bucket < rows[j].Bucket
		}
		return rows[i].ChainPos < rows[j].ChainPos
	})
}

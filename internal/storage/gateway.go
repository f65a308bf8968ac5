package storage

import (
	"context"

	"secure-ehr-gateway/internal/models"
)

// AccountStore persists accounts for the credential manager.
type AccountStore interface {
	// FindAccount returns the account for a username, or ErrNotFound.
	FindAccount(ctx context.Context, username string) (*models.Account, error)
	// CreateAccount inserts a new account.
	CreateAccount(ctx context.Context, account *models.Account) error
	// SaveAccount updates an existing account (password rotation).
	SaveAccount(ctx context.Context, account *models.Account) error
}

// RowStore persists patient rows and the completeness manifest. A row insert
// or update and the digest change it implies are applied atomically, so
// concurrent writers to the same bucket cannot lose a chain update.
type RowStore interface {
	// InsertRow persists the row together with its bucket's updated digest.
	InsertRow(ctx context.Context, row *models.PatientRecord, digest *models.BucketDigest) (string, error)
	// UpdateRow replaces a row's fields together with its bucket's digest.
	UpdateRow(ctx context.Context, row *models.PatientRecord, digest *models.BucketDigest) error
	// FetchAll returns every row ordered by bucket, then chain position.
	FetchAll(ctx context.Context) ([]models.PatientRecord, error)
	// FetchBuckets returns the rows of the given buckets whose
	// order-preserving codes fall in [lo, hi], in chain order. The code
	// bounds are the only value predicate the backend ever evaluates.
	FetchBuckets(ctx context.Context, buckets []int, lo, hi uint64) ([]models.PatientRecord, error)
	// FetchByID returns a single row, or ErrNotFound.
	FetchByID(ctx context.Context, id string) (*models.PatientRecord, error)
	// Digest returns the stored manifest entry for a bucket, or ErrNotFound.
	Digest(ctx context.Context, bucket int) (*models.BucketDigest, error)
	// Digests returns every stored manifest entry.
	Digests(ctx context.Context) ([]models.BucketDigest, error)
}

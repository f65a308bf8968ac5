package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"secure-ehr-gateway/internal/models"
)

// Gateway is the MySQL-backed implementation of AccountStore and RowStore.
type Gateway struct {
	db *gorm.DB
}

// NewGateway wraps a gorm connection.
func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// FindAccount implements AccountStore.
func (g *Gateway) FindAccount(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := g.db.WithContext(ctx).Where("username = ?", username).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &account, nil
}

// CreateAccount implements AccountStore. A unique-index hit maps to
// ErrDuplicate so a registration that loses an insert race is still reported
// as a duplicate, not a backend failure.
func (g *Gateway) CreateAccount(ctx context.Context, account *models.Account) error {
	if err := g.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return wrap(err)
	}
	return nil
}

// SaveAccount implements AccountStore.
func (g *Gateway) SaveAccount(ctx context.Context, account *models.Account) error {
	if err := g.db.WithContext(ctx).Save(account).Error; err != nil {
		return wrap(err)
	}
	return nil
}

// InsertRow implements RowStore. The row and its bucket digest are written in
// one transaction so a failure midway leaves previously committed data
// unchanged.
func (g *Gateway) InsertRow(ctx context.Context, row *models.PatientRecord, digest *models.BucketDigest) (string, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(digest).Error
	})
	if err != nil {
		return "", wrap(err)
	}
	return row.ID, nil
}

// UpdateRow implements RowStore.
func (g *Gateway) UpdateRow(ctx context.Context, row *models.PatientRecord, digest *models.BucketDigest) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(row).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(digest).Error
	})
	if err != nil {
		return wrap(err)
	}
	return nil
}

// FetchAll implements RowStore.
func (g *Gateway) FetchAll(ctx context.Context) ([]models.PatientRecord, error) {
	var rows []models.PatientRecord
	if err := g.db.WithContext(ctx).Order("bucket, chain_pos").Find(&rows).Error; err != nil {
		return nil, wrap(err)
	}
	return rows, nil
}

// FetchBuckets implements RowStore. The value predicate runs on the indexed
// weight_code column; MySQL never sees a weight.
func (g *Gateway) FetchBuckets(ctx context.Context, buckets []int, lo, hi uint64) ([]models.PatientRecord, error) {
	var rows []models.PatientRecord
	err := g.db.WithContext(ctx).
		Where("bucket IN ? AND weight_code BETWEEN ? AND ?", buckets, lo, hi).
		Order("bucket, chain_pos").
		Find(&rows).Error
	if err != nil {
		return nil, wrap(err)
	}
	return rows, nil
}

// FetchByID implements RowStore.
func (g *Gateway) FetchByID(ctx context.Context, id string) (*models.PatientRecord, error) {
	var row models.PatientRecord
	err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &row, nil
}

// Digest implements RowStore.
func (g *Gateway) Digest(ctx context.Context, bucket int) (*models.BucketDigest, error) {
	var digest models.BucketDigest
	err := g.db.WithContext(ctx).First(&digest, "bucket = ?", bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &digest, nil
}

// Digests implements RowStore.
func (g *Gateway) Digests(ctx context.Context) ([]models.BucketDigest, error) {
	var digests []models.BucketDigest
	if err := g.db.WithContext(ctx).Order("bucket").Find(&digests).Error; err != nil {
		return nil, wrap(err)
	}
	return digests, nil
}

func wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

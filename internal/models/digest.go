package models

import "time"

// BucketDigest is the persisted completeness manifest entry for one bucket:
// the keyed chain head over every row id in the bucket, in chain order, plus
// the row count. The chain key lives only in the client's keyring, so storage
// can replay an old digest but never forge a new one.
type BucketDigest struct {
	Bucket    int       `gorm:"primaryKey;autoIncrement:false" json:"bucket"`
	Head      []byte    `gorm:"type:varbinary(32);not null" json:"head"`
	Count     int       `gorm:"not null" json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

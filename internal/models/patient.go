package models

// PatientRecord is a patient row as the semi-trusted backend stores it.
// Gender, age and the exact weight are AES-GCM ciphertexts (nonce prepended);
// WeightCode is the order-preserving encoding the backend may compare for
// range predicates without learning the value. IntegrityTag authenticates the
// whole row, SeqCommitment and ChainPos link it into its bucket's
// completeness chain.
type PatientRecord struct {
	BaseModel
	FirstName     string  `gorm:"size:100" json:"firstName,omitempty"`
	LastName      string  `gorm:"size:100" json:"lastName,omitempty"`
	GenderCipher  []byte  `gorm:"type:varbinary(64);not null" json:"-"`
	AgeCipher     []byte  `gorm:"type:varbinary(64);not null" json:"-"`
	WeightCipher  []byte  `gorm:"type:varbinary(64);not null" json:"-"`
	WeightCode    uint64  `gorm:"index;not null" json:"-"`
	Height        float64 `json:"height"`
	HealthHistory string  `gorm:"type:text" json:"healthHistory"`
	Bucket        int     `gorm:"index;not null" json:"-"`
	ChainPos      int     `gorm:"not null" json:"-"`
	SeqCommitment []byte  `gorm:"type:varbinary(32);not null" json:"-"`
	IntegrityTag  []byte  `gorm:"type:varbinary(32);not null" json:"-"`
}

// PatientView is the decrypted, verified form of a record handed back to the
// caller after the confidentiality transform and field masking have run.
// FirstName and LastName are omitted entirely when a role's mask hides them.
type PatientView struct {
	ID            string  `json:"id"`
	FirstName     string  `json:"firstName,omitempty"`
	LastName      string  `json:"lastName,omitempty"`
	Gender        string  `json:"gender,omitempty"`
	Age           int     `json:"age"`
	Weight        float64 `json:"weight"`
	Height        float64 `json:"height"`
	HealthHistory string  `json:"healthHistory"`
}

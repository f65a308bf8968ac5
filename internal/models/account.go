package models

// Role enum. H users hold full visibility and write access, R users get a
// redacted read-only view.
type Role string

const (
	RoleH Role = "H"
	RoleR Role = "R"
)

// Valid reports whether the role is one of the two recognized classes.
func (r Role) Valid() bool {
	return r == RoleH || r == RoleR
}

// Account represents a registered user. The password itself is never stored;
// only the salted PBKDF2 verifier and its derivation parameters are, so a dump
// of this table cannot be replayed as a credential.
type Account struct {
	BaseModel
	Username   string `gorm:"uniqueIndex;size:255;not null" json:"username"`
	Salt       []byte `gorm:"type:varbinary(32);not null" json:"-"`
	Verifier   []byte `gorm:"type:varbinary(64);not null" json:"-"`
	Iterations int    `gorm:"not null" json:"-"`
	Role       Role   `gorm:"size:4;not null" json:"role"`
}

// AccountSanitized represents the account data that is safe to send in API
// responses.
type AccountSanitized struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Sanitize creates an AccountSanitized struct from an Account model, excluding
// verifier material.
func (a *Account) Sanitize() AccountSanitized {
	return AccountSanitized{
		ID:       a.ID,
		Username: a.Username,
		Role:     a.Role,
	}
}

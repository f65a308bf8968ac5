// Package access maps an authenticated role to its field-visibility mask and
// write permission. Redaction happens here, in the trusted layer, after
// decryption; the backend is never asked to omit fields on our behalf.
package access

import (
	"errors"

	"secure-ehr-gateway/internal/models"
)

// ErrForbidden is returned when a role lacks permission for a requested
// operation.
var ErrForbidden = errors.New("forbidden")

// Mask is the fixed field-visibility mask for a role. There are exactly two,
// resolved once at session creation.
type Mask struct {
	ShowNames bool
}

var (
	maskH = Mask{ShowNames: true}
	maskR = Mask{ShowNames: false}
)

// Session is the per-login context: who is acting, as what role, with which
// mask. It is built by the authentication layer and never persisted.
type Session struct {
	Username string
	Role     models.Role
	Mask     Mask
}

// NewSession resolves the role's mask once and pins it for the session.
func NewSession(username string, role models.Role) Session {
	return Session{Username: username, Role: role, Mask: MaskFor(role)}
}

// MaskFor returns the visibility mask for a role. Unknown roles get the most
// restrictive mask.
func MaskFor(role models.Role) Mask {
	if role == models.RoleH {
		return maskH
	}
	return maskR
}

// AuthorizeWrite reports whether the role may use the write path. Only H may.
func AuthorizeWrite(role models.Role) bool {
	return role == models.RoleH
}

// Apply redacts the view according to the mask. Gender, age and weight are
// deliberately untouched: encryption protects them from the storage party,
// the mask protects name fields from role R, and the two are orthogonal.
func (m Mask) Apply(view models.PatientView) models.PatientView {
	if !m.ShowNames {
		view.FirstName = ""
		view.LastName = ""
	}
	return view
}

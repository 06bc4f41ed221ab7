package registration

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrIdentityConflict   = errors.New("an account with this email is already registered")
	ErrRosterMismatch     = errors.New("no pre-registration found for this email and role")
	ErrIdentityNotVisible = errors.New("identity is not yet visible to the profile store")
	ErrProfileExists      = errors.New("a profile already exists for this identity")
	ErrEmailTaken         = errors.New("a profile with this email already exists")
	ErrRoleRecordExists   = errors.New("a role record with this id already exists")
	ErrRosterEntryExists  = errors.New("an unconsumed roster entry already exists for this email and role")
)

// IdentityProviderError is a transport or internal failure of the identity provider.
type IdentityProviderError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *IdentityProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("identity provider: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("identity provider: %s: %v", e.Op, e.Err)
}

func (e *IdentityProviderError) Unwrap() error { return e.Err }

// ProvisioningFailed is returned once every profile strategy failed on a foreign-key-class error.
// Reasons are meant for logs only.
type ProvisioningFailed struct {
	IdentityID string
	Reasons    []string
}

func (e *ProvisioningFailed) Error() string {
	return fmt.Sprintf("profile provisioning failed for identity %s: %s", e.IdentityID, strings.Join(e.Reasons, "; "))
}

// ReconciliationWarning reports a role record that could not be linked to its new identity.
// The registration itself succeeded.
type ReconciliationWarning struct {
	IdentityID    string
	RosterEntryID string
	PlaceholderID string // empty when a new role record was being created
	Err           error
}

func (w *ReconciliationWarning) Error() string {
	if w.PlaceholderID != "" {
		return fmt.Sprintf("re-keying role record %s to identity %s: %v", w.PlaceholderID, w.IdentityID, w.Err)
	}
	return fmt.Sprintf("creating role record for identity %s: %v", w.IdentityID, w.Err)
}

func (w *ReconciliationWarning) Unwrap() error { return w.Err }

// IsIdentityNotVisible reports whether err is the foreign-key-class signal that moves the ladder forward.
func IsIdentityNotVisible(err error) bool {
	return errors.Cause(err) == ErrIdentityNotVisible
}

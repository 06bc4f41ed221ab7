package registration

import (
	"context"
	"time"
)

type (
	// IdentityProvider is the gateway to the external identity system.
	// Implementations force-verify through the provider's privileged API.
	IdentityProvider interface {
		// CreateIdentity fails with ErrIdentityConflict if the email is taken,
		// *IdentityProviderError for anything else.
		CreateIdentity(ctx context.Context, email, password string, traits Traits) (Identity, error)
		VerifyIdentity(ctx context.Context, id string) error
		// DeleteIdentity returns nil if the identity does not exist.
		DeleteIdentity(ctx context.Context, id string) error
	}

	RosterRepository interface {
		CreateRosterEntry(ctx context.Context, entry RosterEntry) (RosterEntry, error)
		GetRosterEntry(ctx context.Context, id string) (RosterEntry, error)
		// FindUnconsumed returns ErrNotFound if no unconsumed entry matches (email, role).
		FindUnconsumed(ctx context.Context, email, role string) (RosterEntry, error)
		// Reserve atomically consumes the unconsumed entry for (email, role), storing identityID on it.
		// An entry already consumed by the same identity is returned as is.
		// Returns ErrRosterMismatch if there is nothing left to consume.
		Reserve(ctx context.Context, email, role, identityID string, at time.Time) (RosterEntry, error)
		// Release undoes Reserve, only if the entry is still held by identityID.
		Release(ctx context.Context, entryID, identityID string) error
		ListRosterEntries(ctx context.Context, includeConsumed bool) ([]RosterEntry, error)
	}

	// ProfileRepository works with normal write privileges.
	ProfileRepository interface {
		// CreateProfile fails with ErrIdentityNotVisible when the identity FK check fails,
		// ErrProfileExists / ErrEmailTaken on uniqueness violations.
		CreateProfile(ctx context.Context, profile Profile) (Profile, error)
		GetProfile(ctx context.Context, id string) (Profile, error)
	}

	// PrivilegedProfileRepository works with the admin connection.
	PrivilegedProfileRepository interface {
		// CreateProfileBypass calls the stored routine that skips the identity FK check.
		CreateProfileBypass(ctx context.Context, profile Profile) (Profile, error)
		// CreateProfileRaw inserts with a plain parameterized statement and re-reads the row.
		CreateProfileRaw(ctx context.Context, profile Profile) (Profile, error)
	}

	RoleRecordRepository interface {
		CreateRoleRecord(ctx context.Context, record RoleRecord) (RoleRecord, error)
		GetRoleRecord(ctx context.Context, id string) (RoleRecord, error)
		// RekeyRoleRecord moves the record from placeholderID to identityID, keeping every other field.
		// A record already keyed by identityID is returned as is.
		RekeyRoleRecord(ctx context.Context, placeholderID, identityID string) (RoleRecord, error)
	}

	// Journal stores one Attempt per identity id.
	Journal interface {
		SaveAttempt(ctx context.Context, attempt Attempt) error
		GetAttempt(ctx context.Context, identityID string) (Attempt, error)
		// ListOpenAttempts returns pending, provisioned and compensation_failed attempts last updated before t.
		ListOpenAttempts(ctx context.Context, before time.Time) ([]Attempt, error)
	}

	// Observer receives saga outcomes, e.g. for metrics.
	Observer interface {
		ObserveOutcome(outcome string)
		ObserveStrategy(strategy string, ok bool)
	}
)

// Outcomes
const (
	OutcomeSuccess          = "success"
	OutcomeDegraded         = "degraded"
	OutcomeRosterMismatch   = "roster_mismatch"
	OutcomeIdentityConflict = "identity_conflict"
	OutcomeIdentityError    = "identity_provider_error"
	OutcomeProvisioning     = "provisioning_failed"
	OutcomeError            = "error"
)

type nopObserver struct{}

func (nopObserver) ObserveOutcome(string)        {}
func (nopObserver) ObserveStrategy(string, bool) {}

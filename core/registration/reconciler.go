package registration

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
)

// Reconciler matches a new identity against the roster and links its role record.
type Reconciler struct {
	roster  RosterRepository
	records RoleRecordRepository
	logger  core.Logger
}

func NewReconciler(roster RosterRepository, records RoleRecordRepository, logger core.Logger) *Reconciler {
	return &Reconciler{roster: roster, records: records, logger: logger}
}

// Match is the authoritative roster gate, run after the identity exists.
// It consumes the entry in one conditional update, so of two concurrent registrations
// for the same entry only one gets it; the other gets ErrRosterMismatch.
func (r *Reconciler) Match(ctx context.Context, email, role, identityID string, at time.Time) (RosterEntry, error) {
	entry, err := r.roster.Reserve(ctx, email, role, identityID, at)
	if err != nil {
		if errors.Cause(err) == ErrRosterMismatch {
			return RosterEntry{}, ErrRosterMismatch
		}
		return RosterEntry{}, errors.Wrap(err, "reserving roster entry")
	}
	return entry, nil
}

// Link attaches the role record of a matched entry to the identity: the placeholder is re-keyed,
// or a new record is created when the entry has none. Failures are warnings, never errors.
func (r *Reconciler) Link(ctx context.Context, identityID string, entry RosterEntry, department string) *ReconciliationWarning {
	var err error
	var placeholderID string
	if entry.LinkedPlaceholderID != nil && *entry.LinkedPlaceholderID != "" {
		placeholderID = *entry.LinkedPlaceholderID
		_, err = r.records.RekeyRoleRecord(ctx, placeholderID, identityID)
	} else {
		_, err = r.records.CreateRoleRecord(ctx, RoleRecord{
			ID:         identityID,
			Role:       entry.Role,
			Department: department,
		})
		if errors.Cause(err) == ErrRoleRecordExists {
			err = nil // created by an earlier run of the same saga
		}
	}
	if err == nil {
		return nil
	}

	warning := &ReconciliationWarning{
		IdentityID:    identityID,
		RosterEntryID: entry.ID,
		PlaceholderID: placeholderID,
		Err:           err,
	}
	r.logger.Warn(warning.Error(), warning, map[string]interface{}{
		"identity_id":     identityID,
		"roster_entry_id": entry.ID,
		"placeholder_id":  placeholderID,
	})
	return warning
}

package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

const rosterColumns = "id, email, role, required_first_name, required_last_name, linked_placeholder_id, consumed_at, identity_id, created_at"

type rosterRepository struct {
	db core.DB
}

var _ registration.RosterRepository = (*rosterRepository)(nil)

func NewRosterRepository(db core.DB) registration.RosterRepository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) CreateRosterEntry(ctx context.Context, e registration.RosterEntry) (registration.RosterEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var created registration.RosterEntry
	err := repo.db.GetContext(ctx, &created, `
		INSERT INTO roster_entries (id, email, role, required_first_name, required_last_name, linked_placeholder_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+rosterColumns,
		e.ID, e.Email, e.Role, e.RequiredFirstName, e.RequiredLastName, e.LinkedPlaceholderID,
	)
	if err != nil {
		return registration.RosterEntry{}, classify(err)
	}
	return created, nil
}

func (repo *rosterRepository) GetRosterEntry(ctx context.Context, id string) (registration.RosterEntry, error) {
	var e registration.RosterEntry
	if err := repo.db.GetContext(ctx, &e, "SELECT "+rosterColumns+" FROM roster_entries WHERE id = $1", id); err != nil {
		return registration.RosterEntry{}, classify(err)
	}
	return e, nil
}

func (repo *rosterRepository) FindUnconsumed(ctx context.Context, email, role string) (registration.RosterEntry, error) {
	var e registration.RosterEntry
	err := repo.db.GetContext(ctx, &e,
		"SELECT "+rosterColumns+" FROM roster_entries WHERE email = $1 AND role = $2 AND consumed_at IS NULL",
		email, role,
	)
	if err != nil {
		return registration.RosterEntry{}, classify(err)
	}
	return e, nil
}

// Reserve is a single conditional UPDATE: under concurrent calls the row lock serializes them
// and the loser's WHERE no longer matches once the winner committed.
func (repo *rosterRepository) Reserve(ctx context.Context, email, role, identityID string, at time.Time) (registration.RosterEntry, error) {
	var e registration.RosterEntry
	err := repo.db.GetContext(ctx, &e, `
		UPDATE roster_entries
		SET consumed_at = COALESCE(consumed_at, $4), identity_id = $3
		WHERE email = $1 AND role = $2 AND (consumed_at IS NULL OR identity_id = $3)
		RETURNING `+rosterColumns,
		email, role, identityID, at,
	)
	if err != nil {
		if err = classify(err); err == registration.ErrNotFound {
			return registration.RosterEntry{}, registration.ErrRosterMismatch
		}
		return registration.RosterEntry{}, errors.Wrap(err, "reserving roster entry")
	}
	return e, nil
}

func (repo *rosterRepository) Release(ctx context.Context, entryID, identityID string) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE roster_entries SET consumed_at = NULL, identity_id = NULL WHERE id = $1 AND identity_id = $2",
		entryID, identityID,
	)
	return classify(err)
}

func (repo *rosterRepository) ListRosterEntries(ctx context.Context, includeConsumed bool) ([]registration.RosterEntry, error) {
	q := "SELECT " + rosterColumns + " FROM roster_entries"
	if !includeConsumed {
		q += " WHERE consumed_at IS NULL"
	}
	q += " ORDER BY created_at"

	entries := make([]registration.RosterEntry, 0)
	if err := repo.db.SelectContext(ctx, &entries, q); err != nil {
		return nil, classify(err)
	}
	return entries, nil
}

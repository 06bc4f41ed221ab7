package pgrepos

import (
	"context"
	"time"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

const attemptColumns = "identity_id, email, role, roster_entry_id, department, state, detail, created_at, updated_at"

type journal struct {
	db core.DB
}

var _ registration.Journal = (*journal)(nil)

func NewJournal(db core.DB) registration.Journal {
	return &journal{db: db}
}

func (j *journal) SaveAttempt(ctx context.Context, a registration.Attempt) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO registrations (identity_id, email, role, roster_entry_id, department, state, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identity_id) DO UPDATE
		SET roster_entry_id = EXCLUDED.roster_entry_id,
		    state = EXCLUDED.state,
		    detail = EXCLUDED.detail,
		    updated_at = now()`,
		a.IdentityID, a.Email, a.Role, a.RosterEntryID, a.Department, a.State, a.Detail,
	)
	return classify(err)
}

func (j *journal) GetAttempt(ctx context.Context, identityID string) (registration.Attempt, error) {
	var a registration.Attempt
	if err := j.db.GetContext(ctx, &a, "SELECT "+attemptColumns+" FROM registrations WHERE identity_id = $1", identityID); err != nil {
		return registration.Attempt{}, classify(err)
	}
	return a, nil
}

func (j *journal) ListOpenAttempts(ctx context.Context, before time.Time) ([]registration.Attempt, error) {
	attempts := make([]registration.Attempt, 0)
	err := j.db.SelectContext(ctx, &attempts, `
		SELECT `+attemptColumns+` FROM registrations
		WHERE state IN ($1, $2, $3) AND updated_at < $4
		ORDER BY updated_at`,
		registration.StatePending, registration.StateProvisioned, registration.StateCompensationFailed, before,
	)
	if err != nil {
		return nil, classify(err)
	}
	return attempts, nil
}

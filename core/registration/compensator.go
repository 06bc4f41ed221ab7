package registration

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
)

// Compensator undoes a registration that has an identity but no profile.
type Compensator struct {
	identities IdentityProvider
	roster     RosterRepository
	journal    Journal
	logger     core.Logger
}

func NewCompensator(identities IdentityProvider, roster RosterRepository, journal Journal, logger core.Logger) *Compensator {
	return &Compensator{identities: identities, roster: roster, journal: journal, logger: logger}
}

// Compensate deletes the identity of attempt and releases its roster reservation, if any.
// It is not retried here: failures are logged and recorded on the journal for `admin reconcile`.
// The returned error is informative only; callers keep reporting cause.
func (c *Compensator) Compensate(ctx context.Context, attempt Attempt, cause error) error {
	person := core.Person{ID: attempt.IdentityID, Email: attempt.Email}

	if err := c.identities.DeleteIdentity(ctx, attempt.IdentityID); err != nil {
		err = errors.Wrap(err, "deleting identity")
		c.logger.Error(fmt.Sprintf("compensation failed for identity %s: %v", attempt.IdentityID, err), err, person,
			map[string]interface{}{"cause": errString(cause)})

		attempt.State = StateCompensationFailed
		attempt.Detail = err.Error()
		c.save(ctx, attempt)
		return err
	}

	if attempt.RosterEntryID != nil {
		if err := c.roster.Release(ctx, *attempt.RosterEntryID, attempt.IdentityID); err != nil {
			// the identity is gone: the entry only stays consumed until an admin frees it
			c.logger.Error(fmt.Sprintf("releasing roster entry %s: %v", *attempt.RosterEntryID, err), err, person)
		}
	}

	c.logger.Info("registration compensated: identity "+attempt.IdentityID+" deleted", person,
		map[string]interface{}{"cause": errString(cause)})
	attempt.State = StateCompensated
	attempt.Detail = errString(cause)
	c.save(ctx, attempt)
	return nil
}

func (c *Compensator) save(ctx context.Context, attempt Attempt) {
	if err := c.journal.SaveAttempt(ctx, attempt); err != nil {
		c.logger.Error("saving registration attempt: "+err.Error(), err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

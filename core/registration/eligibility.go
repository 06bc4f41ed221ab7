package registration

import (
	"context"

	"github.com/pkg/errors"
)

const (
	MsgNoPreRegistrationRequired = "no pre-registration required"
	MsgNoPreRegistrationFound    = "no pre-registration found for this email and role"
	MsgPreRegistrationFound      = "pre-registration found; first and last name must match it"
)

// Checker answers the advisory eligibility question. It never writes.
type Checker struct {
	roster RosterRepository
}

func NewChecker(roster RosterRepository) *Checker {
	return &Checker{roster: roster}
}

// Check expects a cleaned email and role (see EligibilityQuery.Validate).
func (c *Checker) Check(ctx context.Context, email, role string) (Eligibility, error) {
	if role == RoleAdmin {
		return Eligibility{Eligible: true, Message: MsgNoPreRegistrationRequired}, nil
	}

	entry, err := c.roster.FindUnconsumed(ctx, email, role)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Eligibility{Eligible: false, Message: MsgNoPreRegistrationFound}, nil
		}
		return Eligibility{}, errors.Wrap(err, "finding roster entry")
	}
	return Eligibility{
		Eligible: true,
		Message:  MsgPreRegistrationFound,
		RequiredName: &Name{
			FirstName: entry.RequiredFirstName,
			LastName:  entry.RequiredLastName,
		},
	}, nil
}

package pgrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

// PostgreSQL error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	classDataException      = "22"
)

const (
	constraintProfilesPkey       = "profiles_pkey"
	constraintProfilesEmail      = "profiles_email_key"
	constraintRoleRecordsPkey    = "role_records_pkey"
	constraintRosterUnconsumedIx = "roster_entries_unconsumed_idx"
)

// classify maps driver errors onto the registration error classes.
// Foreign-key violations become ErrIdentityNotVisible, the ladder's retry signal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows {
		return registration.ErrNotFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch {
	case pqErr.Code == codeForeignKeyViolation:
		return errors.WithMessage(registration.ErrIdentityNotVisible, pqErr.Message)
	case pqErr.Code == codeUniqueViolation:
		switch pqErr.Constraint {
		case constraintProfilesPkey:
			return registration.ErrProfileExists
		case constraintProfilesEmail:
			return registration.ErrEmailTaken
		case constraintRoleRecordsPkey:
			return registration.ErrRoleRecordExists
		case constraintRosterUnconsumedIx:
			return registration.ErrRosterEntryExists
		}
		return errors.Wrap(err, "unique violation")
	case pqErr.Code == codeCheckViolation, pqErr.Code == codeNotNullViolation, pqErr.Code.Class() == classDataException:
		if pqErr.Column != "" {
			return core.NewValidationError(errors.New("invalid data"), core.FieldError{Field: pqErr.Column, Error: "invalid value"})
		}
		return core.NewValidationError(errors.New("invalid data"))
	}
	return err
}

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

type rosterInput struct {
	email, role         string
	firstName, lastName string
	placeholderID       string
	department, batch   string
}

// addRosterEntry creates the placeholder role record, if any, then the roster entry pointing to it.
func (cli *commandLine) addRosterEntry(in rosterInput) error {
	ctx := context.Background()
	in.email = core.CleanString(in.email, true /* lower */)
	in.role = core.CleanString(in.role, true /* lower */)

	if !registration.IsRosterRole(in.role) {
		return errors.Errorf("role must be %s or %s", registration.RoleStudent, registration.RoleProfessor)
	}
	if err := cli.validate.Var(in.email, "required,email"); err != nil {
		return errors.Errorf("invalid email %q", in.email)
	}

	entry := registration.RosterEntry{
		Email:             in.email,
		Role:              in.role,
		RequiredFirstName: core.CleanString(in.firstName),
		RequiredLastName:  core.CleanString(in.lastName),
	}
	if in.placeholderID != "" {
		rec, err := cli.roleRecords.CreateRoleRecord(ctx, registration.RoleRecord{
			ID:         core.CleanString(in.placeholderID),
			Role:       in.role,
			Department: core.CleanString(in.department),
			Batch:      core.CleanString(in.batch),
		})
		if err != nil {
			return errors.Wrap(err, "creating placeholder role record")
		}
		entry.LinkedPlaceholderID = &rec.ID
	}

	entry, err := cli.roster.CreateRosterEntry(ctx, entry)
	if err != nil {
		return errors.Wrap(err, "creating roster entry")
	}
	fmt.Fprintf(cli.out, "roster entry %s created for %s (%s)\n", entry.ID, entry.Email, entry.Role)
	return nil
}

func (cli *commandLine) listRoster(includeConsumed bool) error {
	entries, err := cli.roster.ListRosterEntries(context.Background(), includeConsumed)
	if err != nil {
		return errors.Wrap(err, "listing roster entries")
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tNAME\tPLACEHOLDER\tCONSUMED")
	for _, e := range entries {
		placeholder := "-"
		if e.LinkedPlaceholderID != nil {
			placeholder = *e.LinkedPlaceholderID
		}
		consumed := "-"
		if e.ConsumedAt != nil {
			consumed = e.ConsumedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
			e.ID, e.Email, e.Role, e.RequiredFirstName, e.RequiredLastName, placeholder, consumed)
	}
	return w.Flush()
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core/registration"
)

func (cli *commandLine) register(nr registration.NewRegistration) error {
	if err := nr.Validate(cli.validate); err != nil {
		return err
	}

	res, err := cli.regSvc.Register(context.Background(), nr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "account %s created for %s (%s)\n", res.Profile.ID, res.Profile.Email, res.Profile.Role)
	for _, w := range res.Warnings {
		fmt.Fprintf(cli.out, "warning: %v\n", w)
	}
	return nil
}

func (cli *commandLine) reconcile(olderThan time.Duration) error {
	report, err := cli.regSvc.ReconcileOpen(context.Background(), olderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "completed: %d, compensated: %d, failed: %d\n",
		len(report.Completed), len(report.Compensated), len(report.Failed))
	for id, fErr := range report.Failed {
		fmt.Fprintf(cli.out, "  %s: %v\n", id, fErr)
	}
	if len(report.Failed) > 0 {
		return errors.Errorf("%d registration(s) could not be reconciled", len(report.Failed))
	}
	return nil
}

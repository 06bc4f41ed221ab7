package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/apps/bootstrap"
	"github.com/trezcool/masomo-enrol/core"
)

func main() {
	conf := core.NewConfig()
	logger := bootstrap.NewLogger(conf, "ADMIN")

	// `migrate` must work on an empty or broken schema
	skipMigrations := len(os.Args) > 1 && os.Args[1] == "migrate"

	stack, err := bootstrap.New(context.Background(), conf, logger, bootstrap.Options{SkipMigrations: skipMigrations})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:          stack.SQLDB(),
		regSvc:      stack.RegSvc,
		roster:      stack.Roster,
		roleRecords: stack.RoleRecords,
		validate:    stack.Validate,
		staleAfter:  conf.Registration.StaleAfter,
		out:         os.Stdout,
	}
	err = cli.run(os.Args)
	stack.Close()
	if err != nil {
		if err != errHelp {
			var vErrs validator.ValidationErrors
			if errors.As(err, &vErrs) {
				err = core.TranslateErrors(vErrs, stack.Translator)
				for fld, msg := range err.(*core.ValidationError).FieldMap() {
					fmt.Fprintf(os.Stderr, "  %s: %s\n", fld, msg)
				}
			}
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

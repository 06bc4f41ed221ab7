package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/masomo-enrol/core/registration"
	"github.com/trezcool/masomo-enrol/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword    // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type (
	registrar interface {
		Register(ctx context.Context, nr registration.NewRegistration) (registration.Result, error)
		ReconcileOpen(ctx context.Context, olderThan time.Duration) (registration.ReconcileReport, error)
	}

	commandLine struct {
		db          *sql.DB // privileged; nil on the memory engine
		regSvc      registrar
		roster      registration.RosterRepository
		roleRecords registration.RoleRecordRepository
		validate    *validator.Validate
		staleAfter  time.Duration
		out         io.Writer
	}
)

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                    - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  roster add -email EMAIL -role ROLE ...   - pre-register a student or professor")
	fmt.Fprintln(cli.out, "  roster list [-all]                        - list roster entries")
	fmt.Fprintln(cli.out, "  register -email EMAIL -role ROLE ...     - register an account; the password is prompted")
	fmt.Fprintln(cli.out, "  reconcile [-older-than DURATION]          - finish or undo stale registrations")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "roster":
		return cli.runRoster(args[2:])
	case "register":
		return cli.runRegister(args[2:])
	case "reconcile":
		return cli.runReconcile(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) runRoster(args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	switch args[0] {
	case "add":
		addCmd := flag.NewFlagSet("roster add", flag.ContinueOnError)
		addCmd.SetOutput(cli.out)
		email := addCmd.String("email", "", "The email the person will register with.")
		role := addCmd.String("role", "", "student or professor.")
		first := addCmd.String("first", "", "Required first name.")
		last := addCmd.String("last", "", "Required last name.")
		placeholder := addCmd.String("placeholder", "", "Id of the placeholder role record (e.g. the student number). Optional.")
		department := addCmd.String("department", "", "Department of the placeholder role record.")
		batch := addCmd.String("batch", "", "Batch of the placeholder role record.")
		if err := addCmd.Parse(args[1:]); err != nil {
			return errHelp
		}
		if *email == "" || *role == "" || *first == "" || *last == "" {
			addCmd.Usage()
			return errHelp
		}
		return cli.addRosterEntry(rosterInput{
			email:         *email,
			role:          *role,
			firstName:     *first,
			lastName:      *last,
			placeholderID: *placeholder,
			department:    *department,
			batch:         *batch,
		})
	case "list":
		listCmd := flag.NewFlagSet("roster list", flag.ContinueOnError)
		listCmd.SetOutput(cli.out)
		all := listCmd.Bool("all", false, "Include consumed entries.")
		if err := listCmd.Parse(args[1:]); err != nil {
			return errHelp
		}
		return cli.listRoster(*all)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) runRegister(args []string) error {
	registerCmd := flag.NewFlagSet("register", flag.ContinueOnError)
	registerCmd.SetOutput(cli.out)
	email := registerCmd.String("email", "", "Account email.")
	role := registerCmd.String("role", "", "student, professor or admin.")
	first := registerCmd.String("first", "", "First name.")
	last := registerCmd.String("last", "", "Last name.")
	phone := registerCmd.String("phone", "", "Phone number. Optional.")
	department := registerCmd.String("department", "", "Department (students and professors).")
	if err := registerCmd.Parse(args); err != nil {
		return errHelp
	}
	if *email == "" || *role == "" {
		registerCmd.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		registerCmd.Usage()
		return errHelp
	}

	return cli.register(registration.NewRegistration{
		FirstName:       *first,
		LastName:        *last,
		Email:           *email,
		Password:        string(pwd),
		ConfirmPassword: string(pwd),
		Role:            *role,
		Phone:           *phone,
		Department:      *department,
		AcceptTerms:     true,
	})
}

func (cli *commandLine) runReconcile(args []string) error {
	reconcileCmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	reconcileCmd.SetOutput(cli.out)
	olderThan := reconcileCmd.Duration("older-than", cli.staleAfter, "Only attempts not updated for this long.")
	if err := reconcileCmd.Parse(args); err != nil {
		return errHelp
	}
	return cli.reconcile(*olderThan)
}

package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
	appfs "github.com/trezcool/masomo-enrol/fs"
	emailsvc "github.com/trezcool/masomo-enrol/services/email"
	identitysvc "github.com/trezcool/masomo-enrol/services/identity"
	logsvc "github.com/trezcool/masomo-enrol/services/logger"
	dummydb "github.com/trezcool/masomo-enrol/storage/database/dummy"
)

// Env is a fully wired registration stack on the in-memory engine.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	DB          *dummydb.DB
	Identities  *identitysvc.MemoryGateway
	Roster      registration.RosterRepository
	Profiles    registration.ProfileRepository
	Privileged  registration.PrivilegedProfileRepository
	RoleRecords registration.RoleRecordRepository
	Journal     registration.Journal
	MailSvc     core.EmailService
}

func NewConfig() *core.Config {
	return &core.Config{
		Env:              "test",
		AppName:          "Masomo",
		TestMode:         true,
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Masomo", Address: "noreply@masomo.test"},
		Server: core.ServerConfig{
			Host:           "localhost",
			Port:           "8000",
			DisableReqLogs: true,
		},
		Database: core.DatabaseConfig{Engine: "memory"},
		Identity: core.IdentityConfig{Provider: "memory"},
	}
}

// NewLogger returns a silent logger with rollbar disabled.
func NewLogger() core.Logger {
	conf := NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf)
	logger.Enable(false)
	return logger
}

// NewEnv wires the in-memory database and identity provider together:
// a profile can only reference an identity the gateway knows about.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	identities := identitysvc.NewMemoryGateway(false)
	db.SetIdentityVisibility(identities.Exists)

	conf := NewConfig()
	logger := NewLogger()
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	registration.InitValidators(validate, translator)

	emailsvc.ResetSentMessages()

	return &Env{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		DB:          db,
		Identities:  identities,
		Roster:      dummydb.NewRosterRepository(db),
		Profiles:    dummydb.NewProfileRepository(db),
		Privileged:  dummydb.NewPrivilegedProfileRepository(db),
		RoleRecords: dummydb.NewRoleRecordRepository(db),
		Journal:     dummydb.NewJournal(db),
		MailSvc:     emailsvc.NewConsoleServiceMock(conf, logger),
	}
}

// Deps returns service dependencies over the Env; callers may override fields before NewService.
func (env *Env) Deps() registration.Deps {
	return registration.Deps{
		Identities:         env.Identities,
		Roster:             env.Roster,
		Profiles:           env.Profiles,
		PrivilegedProfiles: env.Privileged,
		RoleRecords:        env.RoleRecords,
		Journal:            env.Journal,
		MailSvc:            env.MailSvc,
		Logger:             env.Logger,
	}
}

func (env *Env) NewService() *registration.Service {
	return registration.NewService(env.Deps())
}

// AddRosterEntry pre-registers (email, role) with a placeholder role record keyed by placeholderID.
// An empty placeholderID skips the role record.
func (env *Env) AddRosterEntry(t *testing.T, email, role, first, last, placeholderID string) registration.RosterEntry {
	t.Helper()
	ctx := context.Background()

	entry := registration.RosterEntry{
		Email:             email,
		Role:              role,
		RequiredFirstName: first,
		RequiredLastName:  last,
	}
	if placeholderID != "" {
		if _, err := env.RoleRecords.CreateRoleRecord(ctx, registration.RoleRecord{
			ID:         placeholderID,
			Role:       role,
			Department: "Computer Science",
			Batch:      "2024",
		}); err != nil {
			t.Fatalf("CreateRoleRecord() failed: %v", err)
		}
		entry.LinkedPlaceholderID = &placeholderID
	}

	entry, err := env.Roster.CreateRosterEntry(ctx, entry)
	if err != nil {
		t.Fatalf("CreateRosterEntry() failed: %v", err)
	}
	return entry
}

// NewRegistration returns a valid request for (email, role).
func NewRegistration(email, role string) registration.NewRegistration {
	nr := registration.NewRegistration{
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           email,
		Password:        "s3cret-pass",
		ConfirmPassword: "s3cret-pass",
		Role:            role,
		AcceptTerms:     true,
	}
	if registration.IsRosterRole(role) {
		nr.Department = "Computer Science"
	}
	return nr
}

// Package bootstrap wires the registration stack shared by the API server and the admin CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
	appfs "github.com/trezcool/masomo-enrol/fs"
	emailsvc "github.com/trezcool/masomo-enrol/services/email"
	identitysvc "github.com/trezcool/masomo-enrol/services/identity"
	logsvc "github.com/trezcool/masomo-enrol/services/logger"
	metricsvc "github.com/trezcool/masomo-enrol/services/metrics"
	"github.com/trezcool/masomo-enrol/storage/database"
	dummydb "github.com/trezcool/masomo-enrol/storage/database/dummy"
	pgrepos "github.com/trezcool/masomo-enrol/storage/database/postgres"
)

const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"

	ProviderKratos = "kratos"
	ProviderMemory = "memory"
)

type (
	Options struct {
		// Metrics registers the registration counters; nil disables them.
		Metrics prometheus.Registerer
		// SkipMigrations leaves the schema alone (`admin migrate` runs goose itself).
		SkipMigrations bool
	}

	Stack struct {
		Conf       *core.Config
		Logger     core.Logger
		DBLogger   core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		// AdminDB is the privileged connection, nil on the memory engine.
		AdminDB *sqlx.DB
		DB      *sqlx.DB

		Identities  registration.IdentityProvider
		Roster      registration.RosterRepository
		RoleRecords registration.RoleRecordRepository
		MailSvc     core.EmailService
		RegSvc      *registration.Service

		closers []func() error
	}
)

func NewLogger(conf *core.Config, prefix string) core.Logger {
	stdLogger := log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// New builds the whole stack. Close releases the database connections.
func New(ctx context.Context, conf *core.Config, logger core.Logger, opts Options) (*Stack, error) {
	s := &Stack{
		Conf:       conf,
		Logger:     logger,
		DBLogger:   NewLogger(conf, "DB"),
		Validate:   validator.New(),
		Translator: core.NewTranslator(),
	}
	core.InitValidators(s.Validate, s.Translator)
	registration.InitValidators(s.Validate, s.Translator)
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	deps := registration.Deps{
		Logger:       logger,
		ProfileDelay: conf.Registration.ProfileDelay,
	}

	var memIdentities *identitysvc.MemoryGateway
	switch conf.Identity.Provider {
	case ProviderKratos:
		gw, err := identitysvc.NewKratosGateway(conf, logger)
		if err != nil {
			return nil, err
		}
		deps.Identities = gw
	case ProviderMemory:
		memIdentities = identitysvc.NewMemoryGateway(true)
		deps.Identities = memIdentities
	default:
		return nil, errors.Errorf("unknown identity provider %q", conf.Identity.Provider)
	}

	switch conf.Database.Engine {
	case EnginePostgres:
		if err := s.setUpPostgres(ctx, opts); err != nil {
			s.Close()
			return nil, err
		}
		deps.Roster = pgrepos.NewRosterRepository(s.DB)
		deps.Profiles = pgrepos.NewProfileRepository(s.DB)
		deps.PrivilegedProfiles = pgrepos.NewPrivilegedProfileRepository(s.AdminDB)
		deps.RoleRecords = pgrepos.NewRoleRecordRepository(s.DB)
		deps.Journal = pgrepos.NewJournal(s.DB)
	case EngineMemory:
		db, err := dummydb.Open()
		if err != nil {
			return nil, err
		}
		if memIdentities != nil {
			db.SetIdentityVisibility(memIdentities.Exists)
		}
		s.closers = append(s.closers, db.Close)
		deps.Roster = dummydb.NewRosterRepository(db)
		deps.Profiles = dummydb.NewProfileRepository(db)
		deps.PrivilegedProfiles = dummydb.NewPrivilegedProfileRepository(db)
		deps.RoleRecords = dummydb.NewRoleRecordRepository(db)
		deps.Journal = dummydb.NewJournal(db)
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	if opts.Metrics != nil {
		m, err := metricsvc.NewRegistrationMetrics(opts.Metrics)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "registering metrics")
		}
		deps.Observer = m
	}

	s.MailSvc = NewEmailService(conf, logger)
	deps.MailSvc = s.MailSvc

	s.Identities = deps.Identities
	s.Roster = deps.Roster
	s.RoleRecords = deps.RoleRecords
	s.RegSvc = registration.NewService(deps)
	return s, nil
}

func (s *Stack) setUpPostgres(ctx context.Context, opts Options) error {
	conf := s.Conf

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return errors.Wrap(err, "creating database")
	}

	adminDB, err := database.OpenPrivileged(conf)
	if err != nil {
		return errors.Wrap(err, "opening privileged connection")
	}
	s.AdminDB = adminDB
	s.closers = append(s.closers, adminDB.Close)

	if !opts.SkipMigrations {
		if err = database.Migrate(adminDB.DB); err != nil {
			return err
		}
		if err = database.GrantAppUser(ctx, adminDB, conf); err != nil {
			return err
		}
	}

	db, err := database.Open(conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	s.DB = db
	s.closers = append(s.closers, db.Close)

	if err = database.Ping(ctx, db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	s.DBLogger.Info(fmt.Sprintf("connected to %s on %s", conf.Database.Name, conf.Database.Address()))
	return nil
}

// SQLDB returns the privileged *sql.DB for goose, nil on the memory engine.
func (s *Stack) SQLDB() *sql.DB {
	if s.AdminDB == nil {
		return nil
	}
	return s.AdminDB.DB
}

func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.DBLogger.Error(fmt.Sprintf("closing: %v", err), err)
		}
	}
	s.closers = nil
}

package pgrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

const profileColumns = "id, email, first_name, last_name, phone, role, created_at"

type profileRepository struct {
	db core.DB
}

var _ registration.ProfileRepository = (*profileRepository)(nil) // interface compliance check

// NewProfileRepository expects the app-user connection.
func NewProfileRepository(db core.DB) registration.ProfileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) CreateProfile(ctx context.Context, p registration.Profile) (registration.Profile, error) {
	var created registration.Profile
	err := repo.db.GetContext(ctx, &created, `
		INSERT INTO profiles (id, email, first_name, last_name, phone, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+profileColumns,
		p.ID, p.Email, p.FirstName, p.LastName, p.Phone, p.Role,
	)
	if err != nil {
		return registration.Profile{}, classify(err)
	}
	return created, nil
}

func (repo *profileRepository) GetProfile(ctx context.Context, id string) (registration.Profile, error) {
	return getProfile(ctx, repo.db, id)
}

func getProfile(ctx context.Context, exec core.DBExecutor, id string) (registration.Profile, error) {
	var p registration.Profile
	if err := exec.GetContext(ctx, &p, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id); err != nil {
		return registration.Profile{}, classify(err)
	}
	return p, nil
}

type privilegedProfileRepository struct {
	db core.DB
}

var _ registration.PrivilegedProfileRepository = (*privilegedProfileRepository)(nil)

// NewPrivilegedProfileRepository expects the admin connection.
func NewPrivilegedProfileRepository(db core.DB) registration.PrivilegedProfileRepository {
	return &privilegedProfileRepository{db: db}
}

func (repo *privilegedProfileRepository) CreateProfileBypass(ctx context.Context, p registration.Profile) (registration.Profile, error) {
	var created registration.Profile
	err := repo.db.GetContext(ctx, &created,
		"SELECT "+profileColumns+" FROM provision_profile($1, $2, $3, $4, $5, $6)",
		p.ID, p.Email, p.FirstName, p.LastName, p.Phone, p.Role,
	)
	if err != nil {
		return registration.Profile{}, classify(err)
	}
	return created, nil
}

// CreateProfileRaw inserts and re-reads the row in one transaction.
// ON CONFLICT covers a concurrent rung of the same saga having won.
func (repo *privilegedProfileRepository) CreateProfileRaw(ctx context.Context, p registration.Profile) (_ registration.Profile, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return registration.Profile{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (id, email, first_name, last_name, phone, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Email, p.FirstName, p.LastName, p.Phone, p.Role,
	)
	if err != nil {
		return registration.Profile{}, classify(err)
	}

	created, err := getProfile(ctx, tx, p.ID)
	if err != nil {
		return registration.Profile{}, err
	}
	if err = tx.Commit(); err != nil {
		return registration.Profile{}, classify(errors.Wrap(err, "committing profile"))
	}
	return created, nil
}

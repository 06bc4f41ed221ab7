package dummydb

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core/registration"
)

type profileRepository struct {
	db *DB
}

var _ registration.ProfileRepository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) registration.ProfileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) CreateProfile(_ context.Context, p registration.Profile) (registration.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.db.insertProfile(p, true /* checkFK */)
}

func (repo *profileRepository) GetProfile(_ context.Context, id string) (registration.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return *p, nil
	}
	return registration.Profile{}, registration.ErrNotFound
}

// ProfileCount is used by tests to assert that a saga never double-creates.
func (db *DB) ProfileCount() int {
	db.RLock()
	defer db.RUnlock()
	return len(db.profiles)
}

type privilegedProfileRepository struct {
	db *DB
}

var _ registration.PrivilegedProfileRepository = (*privilegedProfileRepository)(nil)

func NewPrivilegedProfileRepository(db *DB) registration.PrivilegedProfileRepository {
	return &privilegedProfileRepository{db: db}
}

func (repo *privilegedProfileRepository) CreateProfileBypass(_ context.Context, p registration.Profile) (registration.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.db.insertProfile(p, false /* checkFK */)
}

func (repo *privilegedProfileRepository) CreateProfileRaw(_ context.Context, p registration.Profile) (registration.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.db.insertProfile(p, true /* checkFK */)
}

// must be called with the lock held
func (db *DB) insertProfile(p registration.Profile, checkFK bool) (registration.Profile, error) {
	if checkFK && !db.visible(p.ID) {
		return registration.Profile{}, errors.WithMessage(registration.ErrIdentityNotVisible, "profiles.id -> identities.id")
	}
	if _, ok := db.profiles[p.ID]; ok {
		return registration.Profile{}, registration.ErrProfileExists
	}
	for _, existing := range db.profiles {
		if existing.Email == p.Email {
			return registration.Profile{}, registration.ErrEmailTaken
		}
	}
	p.CreatedAt = time.Now().UTC()
	db.profiles[p.ID] = &p
	return p, nil
}

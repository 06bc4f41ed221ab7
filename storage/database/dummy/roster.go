package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-enrol/core/registration"
)

type rosterRepository struct {
	db *DB
}

var _ registration.RosterRepository = (*rosterRepository)(nil)

func NewRosterRepository(db *DB) registration.RosterRepository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) CreateRosterEntry(_ context.Context, entry registration.RosterEntry) (registration.RosterEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, err := repo.findUnconsumed(entry.Email, entry.Role); err == nil {
		return registration.RosterEntry{}, registration.ErrRosterEntryExists
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	repo.db.rosterEntries[entry.ID] = &entry
	return entry, nil
}

func (repo *rosterRepository) GetRosterEntry(_ context.Context, id string) (registration.RosterEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.rosterEntries[id]; ok {
		return *e, nil
	}
	return registration.RosterEntry{}, registration.ErrNotFound
}

func (repo *rosterRepository) FindUnconsumed(_ context.Context, email, role string) (registration.RosterEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	e, err := repo.findUnconsumed(email, role)
	if err != nil {
		return registration.RosterEntry{}, err
	}
	return *e, nil
}

func (repo *rosterRepository) findUnconsumed(email, role string) (*registration.RosterEntry, error) {
	for _, e := range repo.db.rosterEntries {
		if e.Email == email && e.Role == role && !e.IsConsumed() {
			return e, nil
		}
	}
	return nil, registration.ErrNotFound
}

func (repo *rosterRepository) Reserve(_ context.Context, email, role, identityID string, at time.Time) (registration.RosterEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, e := range repo.db.rosterEntries {
		if e.Email == email && e.Role == role && e.ReservedBy(identityID) {
			return *e, nil
		}
	}
	e, err := repo.findUnconsumed(email, role)
	if err != nil {
		return registration.RosterEntry{}, registration.ErrRosterMismatch
	}
	consumedAt, id := at, identityID
	e.ConsumedAt = &consumedAt
	e.IdentityID = &id
	return *e, nil
}

func (repo *rosterRepository) Release(_ context.Context, entryID, identityID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if e, ok := repo.db.rosterEntries[entryID]; ok && e.ReservedBy(identityID) {
		e.ConsumedAt = nil
		e.IdentityID = nil
	}
	return nil
}

func (repo *rosterRepository) ListRosterEntries(_ context.Context, includeConsumed bool) ([]registration.RosterEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]registration.RosterEntry, 0, len(repo.db.rosterEntries))
	for _, e := range repo.db.rosterEntries {
		if includeConsumed || !e.IsConsumed() {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/masomo-enrol/core/registration"
)

type roleRecordRepository struct {
	db *DB
}

var _ registration.RoleRecordRepository = (*roleRecordRepository)(nil)

func NewRoleRecordRepository(db *DB) registration.RoleRecordRepository {
	return &roleRecordRepository{db: db}
}

func (repo *roleRecordRepository) CreateRoleRecord(_ context.Context, rec registration.RoleRecord) (registration.RoleRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.roleRecords[rec.ID]; ok {
		return registration.RoleRecord{}, registration.ErrRoleRecordExists
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	repo.db.roleRecords[rec.ID] = &rec
	return rec, nil
}

func (repo *roleRecordRepository) GetRoleRecord(_ context.Context, id string) (registration.RoleRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.roleRecords[id]; ok {
		return *rec, nil
	}
	return registration.RoleRecord{}, registration.ErrNotFound
}

func (repo *roleRecordRepository) RekeyRoleRecord(_ context.Context, placeholderID, identityID string) (registration.RoleRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.roleRecords[placeholderID]
	if !ok {
		if done, ok := repo.db.roleRecords[identityID]; ok {
			return *done, nil
		}
		return registration.RoleRecord{}, registration.ErrNotFound
	}
	if _, ok := repo.db.roleRecords[identityID]; ok {
		return registration.RoleRecord{}, registration.ErrRoleRecordExists
	}
	delete(repo.db.roleRecords, placeholderID)
	rec.ID = identityID
	rec.UpdatedAt = time.Now().UTC()
	repo.db.roleRecords[identityID] = rec
	return *rec, nil
}

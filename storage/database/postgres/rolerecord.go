package pgrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

const roleRecordColumns = "id, role, department, batch, created_at, updated_at"

type roleRecordRepository struct {
	db core.DB
}

var _ registration.RoleRecordRepository = (*roleRecordRepository)(nil)

func NewRoleRecordRepository(db core.DB) registration.RoleRecordRepository {
	return &roleRecordRepository{db: db}
}

func (repo *roleRecordRepository) CreateRoleRecord(ctx context.Context, rec registration.RoleRecord) (registration.RoleRecord, error) {
	var created registration.RoleRecord
	err := repo.db.GetContext(ctx, &created, `
		INSERT INTO role_records (id, role, department, batch)
		VALUES ($1, $2, $3, $4)
		RETURNING `+roleRecordColumns,
		rec.ID, rec.Role, rec.Department, rec.Batch,
	)
	if err != nil {
		return registration.RoleRecord{}, classify(err)
	}
	return created, nil
}

func (repo *roleRecordRepository) GetRoleRecord(ctx context.Context, id string) (registration.RoleRecord, error) {
	return getRoleRecord(ctx, repo.db, id)
}

func getRoleRecord(ctx context.Context, exec core.DBExecutor, id string) (registration.RoleRecord, error) {
	var rec registration.RoleRecord
	if err := exec.GetContext(ctx, &rec, "SELECT "+roleRecordColumns+" FROM role_records WHERE id = $1", id); err != nil {
		return registration.RoleRecord{}, classify(err)
	}
	return rec, nil
}

// RekeyRoleRecord updates the primary key in place, so every other column is kept as is.
func (repo *roleRecordRepository) RekeyRoleRecord(ctx context.Context, placeholderID, identityID string) (registration.RoleRecord, error) {
	var rec registration.RoleRecord
	err := repo.db.GetContext(ctx, &rec, `
		UPDATE role_records SET id = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+roleRecordColumns,
		placeholderID, identityID,
	)
	if err == nil {
		return rec, nil
	}
	if err = classify(err); err != registration.ErrNotFound {
		return registration.RoleRecord{}, errors.Wrap(err, "re-keying role record")
	}

	// already re-keyed by an earlier run of the same saga?
	return getRoleRecord(ctx, repo.db, identityID)
}

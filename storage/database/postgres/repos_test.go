package pgrepos

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

var (
	profileCols    = []string{"id", "email", "first_name", "last_name", "phone", "role", "created_at"}
	rosterCols     = []string{"id", "email", "role", "required_first_name", "required_last_name", "linked_placeholder_id", "consumed_at", "identity_id", "created_at"}
	roleRecordCols = []string{"id", "role", "department", "batch", "created_at", "updated_at"}
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

func testProfile() registration.Profile {
	return registration.Profile{ID: "id-1", Email: "a@x.edu", FirstName: "Ann", LastName: "Lee", Role: registration.RoleStudent}
}

func profileRow(p registration.Profile) *sqlmock.Rows {
	return sqlmock.NewRows(profileCols).AddRow(p.ID, p.Email, p.FirstName, p.LastName, nil, p.Role, time.Now())
}

func Test_classify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name: "nil",
			check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "no rows",
			err:  sql.ErrNoRows,
			check: func(t *testing.T, err error) {
				assert.Equal(t, registration.ErrNotFound, err)
			},
		},
		{
			name: "foreign key",
			err:  &pq.Error{Code: "23503", Message: `insert or update on table "profiles" violates foreign key constraint`},
			check: func(t *testing.T, err error) {
				assert.True(t, registration.IsIdentityNotVisible(err))
				assert.Contains(t, err.Error(), "violates foreign key")
			},
		},
		{
			name: "profile pkey",
			err:  &pq.Error{Code: "23505", Constraint: "profiles_pkey"},
			check: func(t *testing.T, err error) {
				assert.Equal(t, registration.ErrProfileExists, err)
			},
		},
		{
			name: "profile email",
			err:  &pq.Error{Code: "23505", Constraint: "profiles_email_key"},
			check: func(t *testing.T, err error) {
				assert.Equal(t, registration.ErrEmailTaken, err)
			},
		},
		{
			name: "role record pkey",
			err:  &pq.Error{Code: "23505", Constraint: "role_records_pkey"},
			check: func(t *testing.T, err error) {
				assert.Equal(t, registration.ErrRoleRecordExists, err)
			},
		},
		{
			name: "unconsumed roster entry",
			err:  &pq.Error{Code: "23505", Constraint: "roster_entries_unconsumed_idx"},
			check: func(t *testing.T, err error) {
				assert.Equal(t, registration.ErrRosterEntryExists, err)
			},
		},
		{
			name: "check violation",
			err:  &pq.Error{Code: "23514", Column: "role"},
			check: func(t *testing.T, err error) {
				vErr, ok := err.(*core.ValidationError)
				require.True(t, ok)
				assert.Equal(t, map[string]string{"role": "invalid value"}, vErr.FieldMap())
			},
		},
		{
			name: "data exception",
			err:  &pq.Error{Code: "22001"},
			check: func(t *testing.T, err error) {
				_, ok := err.(*core.ValidationError)
				assert.True(t, ok)
			},
		},
		{
			name: "anything else",
			err:  &pq.Error{Code: "40001"},
			check: func(t *testing.T, err error) {
				_, ok := errors.Cause(err).(*pq.Error)
				assert.True(t, ok)
				assert.False(t, registration.IsIdentityNotVisible(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, classify(tt.err))
		})
	}
}

func Test_profileRepository_CreateProfile(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepository(db)
	p := testProfile()

	mock.ExpectQuery("INSERT INTO profiles").
		WithArgs(p.ID, p.Email, p.FirstName, p.LastName, nil, p.Role).
		WillReturnError(&pq.Error{Code: "23503"})
	_, err := repo.CreateProfile(context.Background(), p)
	assert.True(t, registration.IsIdentityNotVisible(err))

	mock.ExpectQuery("INSERT INTO profiles").WillReturnRows(profileRow(p))
	got, err := repo.CreateProfile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Nil(t, got.Phone)
}

func Test_privilegedProfileRepository_CreateProfileBypass(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPrivilegedProfileRepository(db)
	p := testProfile()

	mock.ExpectQuery(`FROM provision_profile\(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WithArgs(p.ID, p.Email, p.FirstName, p.LastName, nil, p.Role).
		WillReturnRows(profileRow(p))

	got, err := repo.CreateProfileBypass(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p.Email, got.Email)
}

func Test_privilegedProfileRepository_CreateProfileRaw(t *testing.T) {
	p := testProfile()

	t.Run("inserted", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPrivilegedProfileRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO profiles .* ON CONFLICT \\(id\\) DO NOTHING").
			WithArgs(p.ID, p.Email, p.FirstName, p.LastName, nil, p.Role).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT .* FROM profiles WHERE id = \\$1").WithArgs(p.ID).WillReturnRows(profileRow(p))
		mock.ExpectCommit()

		got, err := repo.CreateProfileRaw(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("foreign key", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPrivilegedProfileRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO profiles").WillReturnError(&pq.Error{Code: "23503"})
		mock.ExpectRollback()

		_, err := repo.CreateProfileRaw(context.Background(), p)
		assert.True(t, registration.IsIdentityNotVisible(err))
	})
}

func Test_rosterRepository_Reserve(t *testing.T) {
	now := time.Now().UTC()

	t.Run("consumed", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRosterRepository(db)

		mock.ExpectQuery("UPDATE roster_entries").
			WithArgs("a@x.edu", registration.RoleStudent, "id-1", now).
			WillReturnRows(sqlmock.NewRows(rosterCols).
				AddRow("entry-1", "a@x.edu", registration.RoleStudent, "Ann", "Lee", "STU-1", now, "id-1", now))

		e, err := repo.Reserve(context.Background(), "a@x.edu", registration.RoleStudent, "id-1", now)
		require.NoError(t, err)
		assert.True(t, e.ReservedBy("id-1"))
		require.NotNil(t, e.LinkedPlaceholderID)
		assert.Equal(t, "STU-1", *e.LinkedPlaceholderID)
	})

	t.Run("nothing left", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRosterRepository(db)

		mock.ExpectQuery("UPDATE roster_entries").WillReturnRows(sqlmock.NewRows(rosterCols))

		_, err := repo.Reserve(context.Background(), "a@x.edu", registration.RoleStudent, "id-2", now)
		assert.Equal(t, registration.ErrRosterMismatch, err)
	})
}

func Test_rosterRepository_CreateRosterEntry_duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRosterRepository(db)

	mock.ExpectQuery("INSERT INTO roster_entries").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "roster_entries_unconsumed_idx"})

	_, err := repo.CreateRosterEntry(context.Background(), registration.RosterEntry{Email: "a@x.edu", Role: registration.RoleStudent})
	assert.Equal(t, registration.ErrRosterEntryExists, err)
}

func Test_roleRecordRepository_RekeyRoleRecord(t *testing.T) {
	now := time.Now()

	t.Run("re-keyed", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRoleRecordRepository(db)

		mock.ExpectQuery("UPDATE role_records SET id = \\$2").
			WithArgs("STU-1", "id-1").
			WillReturnRows(sqlmock.NewRows(roleRecordCols).AddRow("id-1", registration.RoleStudent, "CS", "2024", now, now))

		rec, err := repo.RekeyRoleRecord(context.Background(), "STU-1", "id-1")
		require.NoError(t, err)
		assert.Equal(t, "id-1", rec.ID)
		assert.Equal(t, "2024", rec.Batch)
	})

	t.Run("already re-keyed", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRoleRecordRepository(db)

		mock.ExpectQuery("UPDATE role_records").WillReturnRows(sqlmock.NewRows(roleRecordCols))
		mock.ExpectQuery("SELECT .* FROM role_records WHERE id = \\$1").
			WithArgs("id-1").
			WillReturnRows(sqlmock.NewRows(roleRecordCols).AddRow("id-1", registration.RoleStudent, "CS", "2024", now, now))

		rec, err := repo.RekeyRoleRecord(context.Background(), "STU-1", "id-1")
		require.NoError(t, err)
		assert.Equal(t, "id-1", rec.ID)
	})

	t.Run("placeholder missing", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRoleRecordRepository(db)

		mock.ExpectQuery("UPDATE role_records").WillReturnRows(sqlmock.NewRows(roleRecordCols))
		mock.ExpectQuery("SELECT .* FROM role_records").WillReturnRows(sqlmock.NewRows(roleRecordCols))

		_, err := repo.RekeyRoleRecord(context.Background(), "STU-1", "id-1")
		assert.Equal(t, registration.ErrNotFound, err)
	})

	t.Run("target taken", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRoleRecordRepository(db)

		mock.ExpectQuery("UPDATE role_records").WillReturnError(&pq.Error{Code: "23505", Constraint: "role_records_pkey"})

		_, err := repo.RekeyRoleRecord(context.Background(), "STU-1", "id-1")
		assert.Equal(t, registration.ErrRoleRecordExists, errors.Cause(err))
	})
}

func Test_journal(t *testing.T) {
	db, mock := newMock(t)
	j := NewJournal(db)
	entryID := "entry-1"
	before := time.Now()

	mock.ExpectExec("INSERT INTO registrations .* ON CONFLICT \\(identity_id\\) DO UPDATE").
		WithArgs("id-1", "a@x.edu", registration.RoleStudent, entryID, "CS", registration.StatePending, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, j.SaveAttempt(context.Background(), registration.Attempt{
		IdentityID:    "id-1",
		Email:         "a@x.edu",
		Role:          registration.RoleStudent,
		RosterEntryID: &entryID,
		Department:    "CS",
		State:         registration.StatePending,
	}))

	mock.ExpectQuery("FROM registrations\\s+WHERE state IN \\(\\$1, \\$2, \\$3\\) AND updated_at < \\$4").
		WithArgs(registration.StatePending, registration.StateProvisioned, registration.StateCompensationFailed, before).
		WillReturnRows(sqlmock.NewRows([]string{"identity_id", "email", "role", "roster_entry_id", "department", "state", "detail", "created_at", "updated_at"}).
			AddRow("id-1", "a@x.edu", registration.RoleStudent, entryID, "CS", registration.StatePending, "", before, before))
	attempts, err := j.ListOpenAttempts(context.Background(), before)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].IsOpen())

	mock.ExpectQuery("FROM registrations WHERE identity_id").WithArgs("id-2").WillReturnError(sql.ErrNoRows)
	_, err = j.GetAttempt(context.Background(), "id-2")
	assert.Equal(t, registration.ErrNotFound, err)
}

package dummydb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-enrol/core/registration"
)

func openDB(t *testing.T) *DB {
	db, err := Open()
	require.NoError(t, err)
	return db
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	db.SetIdentityVisibility(func(id string) bool { return id == "visible" })

	profiles := NewProfileRepository(db)
	privileged := NewPrivilegedProfileRepository(db)

	tests := []struct {
		name    string
		create  func(context.Context, registration.Profile) (registration.Profile, error)
		profile registration.Profile
		wantErr error
	}{
		{"fk violation", profiles.CreateProfile, registration.Profile{ID: "hidden", Email: "h@x.edu"}, registration.ErrIdentityNotVisible},
		{"raw fk violation", privileged.CreateProfileRaw, registration.Profile{ID: "hidden", Email: "h@x.edu"}, registration.ErrIdentityNotVisible},
		{"created", profiles.CreateProfile, registration.Profile{ID: "visible", Email: "v@x.edu"}, nil},
		{"same id", privileged.CreateProfileBypass, registration.Profile{ID: "visible", Email: "other@x.edu"}, registration.ErrProfileExists},
		{"bypass skips fk", privileged.CreateProfileBypass, registration.Profile{ID: "hidden", Email: "h@x.edu"}, nil},
		{"email taken", privileged.CreateProfileBypass, registration.Profile{ID: "third", Email: "v@x.edu"}, registration.ErrEmailTaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.create(ctx, tc.profile)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.False(t, p.CreatedAt.IsZero())
		})
	}

	assert.Equal(t, 2, db.ProfileCount())
	_, err := profiles.GetProfile(ctx, "third")
	assert.Equal(t, registration.ErrNotFound, err)
}

func TestRoster_Reserve(t *testing.T) {
	ctx := context.Background()
	repo := NewRosterRepository(openDB(t))

	entry, err := repo.CreateRosterEntry(ctx, registration.RosterEntry{Email: "a@x.edu", Role: registration.RoleStudent})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)

	_, err = repo.CreateRosterEntry(ctx, registration.RosterEntry{Email: "a@x.edu", Role: registration.RoleStudent})
	assert.Equal(t, registration.ErrRosterEntryExists, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	ids := []string{"id-1", "id-2", "id-3", "id-4", "id-5", "id-6"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, "a@x.edu", registration.RoleStudent, id, time.Now()); err == nil {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
			} else {
				assert.Equal(t, registration.ErrRosterMismatch, err)
			}
		}(id)
	}
	wg.Wait()
	require.Len(t, winners, 1)
	winner := winners[0]

	// reserving again for the same identity is a no-op
	again, err := repo.Reserve(ctx, "a@x.edu", registration.RoleStudent, winner, time.Now())
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)

	_, err = repo.FindUnconsumed(ctx, "a@x.edu", registration.RoleStudent)
	assert.Equal(t, registration.ErrNotFound, err)

	// only the holder can release
	require.NoError(t, repo.Release(ctx, entry.ID, "someone-else"))
	got, err := repo.GetRosterEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.ReservedBy(winner))

	require.NoError(t, repo.Release(ctx, entry.ID, winner))
	got, err = repo.GetRosterEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, got.IsConsumed())

	all, err := repo.ListRosterEntries(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRoleRecords_Rekey(t *testing.T) {
	ctx := context.Background()
	repo := NewRoleRecordRepository(openDB(t))

	_, err := repo.CreateRoleRecord(ctx, registration.RoleRecord{ID: "placeholder", Role: registration.RoleStudent})
	require.NoError(t, err)
	_, err = repo.CreateRoleRecord(ctx, registration.RoleRecord{ID: "placeholder"})
	assert.Equal(t, registration.ErrRoleRecordExists, err)
	_, err = repo.CreateRoleRecord(ctx, registration.RoleRecord{ID: "taken"})
	require.NoError(t, err)

	_, err = repo.RekeyRoleRecord(ctx, "placeholder", "taken")
	assert.Equal(t, registration.ErrRoleRecordExists, err)

	rec, err := repo.RekeyRoleRecord(ctx, "placeholder", "identity")
	require.NoError(t, err)
	assert.Equal(t, "identity", rec.ID)
	assert.Equal(t, registration.RoleStudent, rec.Role)

	// already re-keyed
	rec, err = repo.RekeyRoleRecord(ctx, "placeholder", "identity")
	require.NoError(t, err)
	assert.Equal(t, "identity", rec.ID)

	_, err = repo.GetRoleRecord(ctx, "placeholder")
	assert.Equal(t, registration.ErrNotFound, err)
	_, err = repo.RekeyRoleRecord(ctx, "missing", "nobody")
	assert.Equal(t, registration.ErrNotFound, err)
}

func TestJournal_ListOpenAttempts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	j := NewJournal(openDB(t), WithClock(func() time.Time { return now }))
	require.NoError(t, j.SaveAttempt(ctx, registration.Attempt{IdentityID: "old", State: registration.StatePending}))
	require.NoError(t, j.SaveAttempt(ctx, registration.Attempt{IdentityID: "done", State: registration.StateCompleted}))

	now = now.Add(time.Hour)
	require.NoError(t, j.SaveAttempt(ctx, registration.Attempt{IdentityID: "fresh", State: registration.StateProvisioned}))

	open, err := j.ListOpenAttempts(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "old", open[0].IdentityID)

	require.NoError(t, j.SaveAttempt(ctx, registration.Attempt{IdentityID: "old", State: registration.StateCompensated}))
	got, err := j.GetAttempt(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, registration.StateCompensated, got.State)
	assert.True(t, got.CreatedAt.Before(got.UpdatedAt))
}

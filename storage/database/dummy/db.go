package dummydb

import (
	"sync"

	"github.com/trezcool/masomo-enrol/core/registration"
)

type (
	// DB is an in-memory stand-in for the portal database, used by tests and `DATABASE_ENGINE=memory`.
	// It enforces the same keys as the SQL schema, including the profile -> identity foreign key
	// through identityVisible. Role record ids are free-form text, as in the role_records table.
	DB struct {
		sync.RWMutex

		profiles      map[string]*registration.Profile
		rosterEntries map[string]*registration.RosterEntry
		roleRecords   map[string]*registration.RoleRecord
		attempts      map[string]*registration.Attempt

		// identityVisible answers the FK check of the normal and raw privileged inserts.
		// nil means every identity is visible.
		identityVisible func(identityID string) bool
	}
)

func Open() (*DB, error) {
	db := &DB{
		profiles:      make(map[string]*registration.Profile),
		rosterEntries: make(map[string]*registration.RosterEntry),
		roleRecords:   make(map[string]*registration.RoleRecord),
		attempts:      make(map[string]*registration.Attempt),
	}
	return db, nil
}

// SetIdentityVisibility replaces the FK check, e.g. with the identity provider's own lookup.
func (db *DB) SetIdentityVisibility(fn func(identityID string) bool) {
	db.Lock()
	defer db.Unlock()
	db.identityVisible = fn
}

// must be called with the lock held
func (db *DB) visible(identityID string) bool {
	return db.identityVisible == nil || db.identityVisible(identityID)
}

func (db *DB) Close() error { return nil }

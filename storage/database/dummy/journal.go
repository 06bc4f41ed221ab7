package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/masomo-enrol/core/registration"
)

type (
	journal struct {
		db  *DB
		now func() time.Time
	}

	JournalOption func(*journal)
)

var _ registration.Journal = (*journal)(nil)

// WithClock makes SaveAttempt stamp attempts with now(), so tests can age attempts.
func WithClock(now func() time.Time) JournalOption {
	return func(j *journal) { j.now = now }
}

func NewJournal(db *DB, opts ...JournalOption) registration.Journal {
	j := &journal{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *journal) SaveAttempt(_ context.Context, a registration.Attempt) error {
	j.db.Lock()
	defer j.db.Unlock()

	now := j.now()
	if existing, ok := j.db.attempts[a.IdentityID]; ok {
		a.CreatedAt = existing.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	j.db.attempts[a.IdentityID] = &a
	return nil
}

func (j *journal) GetAttempt(_ context.Context, identityID string) (registration.Attempt, error) {
	j.db.RLock()
	defer j.db.RUnlock()

	if a, ok := j.db.attempts[identityID]; ok {
		return *a, nil
	}
	return registration.Attempt{}, registration.ErrNotFound
}

func (j *journal) ListOpenAttempts(_ context.Context, before time.Time) ([]registration.Attempt, error) {
	j.db.RLock()
	defer j.db.RUnlock()

	attempts := make([]registration.Attempt, 0)
	for _, a := range j.db.attempts {
		if a.IsOpen() && a.UpdatedAt.Before(before) {
			attempts = append(attempts, *a)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].UpdatedAt.Before(attempts[j].UpdatedAt) })
	return attempts, nil
}

package identitysvc

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-enrol/core/registration"
)

type memIdentity struct {
	registration.Identity
	traits       registration.Traits
	passwordHash []byte
}

// MemoryGateway is an in-process identity provider for local runs and tests.
// Like a provider with email confirmation enabled, it creates identities unverified unless autoVerify is set.
type MemoryGateway struct {
	mu         sync.RWMutex
	byID       map[string]*memIdentity
	byEmail    map[string]string
	autoVerify bool
}

var _ registration.IdentityProvider = (*MemoryGateway)(nil)

func NewMemoryGateway(autoVerify bool) *MemoryGateway {
	return &MemoryGateway{
		byID:       make(map[string]*memIdentity),
		byEmail:    make(map[string]string),
		autoVerify: autoVerify,
	}
}

func (g *MemoryGateway) CreateIdentity(_ context.Context, email, password string, traits registration.Traits) (registration.Identity, error) {
	email = strings.ToLower(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return registration.Identity{}, &registration.IdentityProviderError{Op: "create identity", Err: errors.Wrap(err, "hashing password")}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.byEmail[email]; ok {
		return registration.Identity{}, registration.ErrIdentityConflict
	}
	ident := &memIdentity{
		Identity: registration.Identity{
			ID:       uuid.NewString(),
			Email:    email,
			Verified: g.autoVerify,
		},
		traits:       traits,
		passwordHash: hash,
	}
	g.byID[ident.ID] = ident
	g.byEmail[email] = ident.ID
	return ident.Identity, nil
}

func (g *MemoryGateway) VerifyIdentity(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ident, ok := g.byID[id]
	if !ok {
		return &registration.IdentityProviderError{Op: "verify identity", StatusCode: 404, Err: registration.ErrNotFound}
	}
	ident.Verified = true
	return nil
}

func (g *MemoryGateway) DeleteIdentity(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ident, ok := g.byID[id]; ok {
		delete(g.byEmail, ident.Email)
		delete(g.byID, id)
	}
	return nil
}

// GetIdentity returns ErrNotFound for unknown (or deleted) ids.
func (g *MemoryGateway) GetIdentity(id string) (registration.Identity, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if ident, ok := g.byID[id]; ok {
		return ident.Identity, nil
	}
	return registration.Identity{}, registration.ErrNotFound
}

// Exists doubles as the FK visibility check of the in-memory database.
func (g *MemoryGateway) Exists(id string) bool {
	_, err := g.GetIdentity(id)
	return err == nil
}

func (g *MemoryGateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}

// Authenticate checks a password the way a login flow would.
func (g *MemoryGateway) Authenticate(email, password string) (registration.Identity, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.byEmail[strings.ToLower(email)]
	if !ok {
		return registration.Identity{}, registration.ErrNotFound
	}
	ident := g.byID[id]
	if err := bcrypt.CompareHashAndPassword(ident.passwordHash, []byte(password)); err != nil {
		return registration.Identity{}, errors.Wrap(err, "checking password")
	}
	return ident.Identity, nil
}

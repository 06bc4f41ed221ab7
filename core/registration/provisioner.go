package registration

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
)

// Strategy names
const (
	StrategyDirectInsert    = "direct-insert"
	StrategyBypassProcedure = "bypass-procedure"
	StrategyRawPrivileged   = "raw-privileged"
)

// ProvisionStrategy is one rung of the profile ladder.
// It signals "try the next rung" by failing with ErrIdentityNotVisible.
type ProvisionStrategy interface {
	Name() string
	Provision(ctx context.Context, profile Profile) (Profile, error)
}

type strategyFunc struct {
	name string
	fn   func(ctx context.Context, profile Profile) (Profile, error)
}

func (s strategyFunc) Name() string { return s.name }

func (s strategyFunc) Provision(ctx context.Context, profile Profile) (Profile, error) {
	return s.fn(ctx, profile)
}

func NewStrategy(name string, fn func(ctx context.Context, profile Profile) (Profile, error)) ProvisionStrategy {
	return strategyFunc{name: name, fn: fn}
}

// DefaultLadder is direct insert, then the privileged bypass routine, then the raw privileged insert.
func DefaultLadder(profiles ProfileRepository, privileged PrivilegedProfileRepository) []ProvisionStrategy {
	return []ProvisionStrategy{
		NewStrategy(StrategyDirectInsert, profiles.CreateProfile),
		NewStrategy(StrategyBypassProcedure, privileged.CreateProfileBypass),
		NewStrategy(StrategyRawPrivileged, privileged.CreateProfileRaw),
	}
}

type Provisioner struct {
	ladder   []ProvisionStrategy
	profiles ProfileRepository
	delay    time.Duration
	logger   core.Logger
	observer Observer
}

func NewProvisioner(ladder []ProvisionStrategy, profiles ProfileRepository, delay time.Duration, logger core.Logger, observer Observer) *Provisioner {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Provisioner{
		ladder:   ladder,
		profiles: profiles,
		delay:    delay,
		logger:   logger,
		observer: observer,
	}
}

// CreateProfile creates the one profile of identity, walking down the ladder on foreign-key-class errors only.
// A profile that already exists for the identity id is returned as is, so a retried saga never double-creates.
func (p *Provisioner) CreateProfile(ctx context.Context, identity Identity, nr NewRegistration) (Profile, error) {
	profile := nr.profile(identity.ID)

	// the identity is usually visible after a short while; the ladder handles the rest
	if p.delay > 0 {
		t := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return Profile{}, errors.Wrap(ctx.Err(), "waiting before profile creation")
		case <-t.C:
		}
	}

	reasons := make([]string, 0, len(p.ladder))
	for _, strategy := range p.ladder {
		created, err := strategy.Provision(ctx, profile)
		if err == nil {
			p.observer.ObserveStrategy(strategy.Name(), true)
			if len(reasons) > 0 {
				p.logger.Info("profile created by fallback strategy "+strategy.Name(),
					map[string]interface{}{"identity_id": identity.ID, "failed": reasons})
			}
			return created, nil
		}
		p.observer.ObserveStrategy(strategy.Name(), false)

		switch errors.Cause(err) {
		case ErrIdentityNotVisible:
			reasons = append(reasons, strategy.Name()+": "+err.Error())
			continue
		case ErrProfileExists:
			existing, gErr := p.profiles.GetProfile(ctx, profile.ID)
			if gErr != nil {
				return Profile{}, errors.Wrap(gErr, "loading existing profile")
			}
			return existing, nil
		default:
			return Profile{}, errors.Wrapf(err, "creating profile (%s)", strategy.Name())
		}
	}
	return Profile{}, &ProvisioningFailed{IdentityID: identity.ID, Reasons: reasons}
}

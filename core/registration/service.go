package registration

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
)

const defaultSagaTimeout = time.Minute

type (
	Deps struct {
		Identities         IdentityProvider
		Roster             RosterRepository
		Profiles           ProfileRepository
		PrivilegedProfiles PrivilegedProfileRepository
		RoleRecords        RoleRecordRepository
		Journal            Journal
		MailSvc            core.EmailService
		Logger             core.Logger
		Observer           Observer // optional

		// Ladder overrides DefaultLadder (tests).
		Ladder       []ProvisionStrategy
		ProfileDelay time.Duration
		// SagaTimeout bounds the steps that run after the identity exists. They are detached
		// from the caller's context so that a client timeout cannot strand an identity.
		SagaTimeout time.Duration
	}

	// Service runs the registration saga: identity, roster match, profile, role record link.
	// Its only compensating action is deleting the identity.
	Service struct {
		identities  IdentityProvider
		roster      RosterRepository
		profiles    ProfileRepository
		journal     Journal
		checker     *Checker
		provisioner *Provisioner
		reconciler  *Reconciler
		compensator *Compensator
		mailSvc     core.EmailService
		logger      core.Logger
		observer    Observer
		sagaTimeout time.Duration
		now         func() time.Time
	}

	// ReconcileReport summarizes a sweep over open journal attempts.
	ReconcileReport struct {
		Completed   []string
		Compensated []string
		Failed      map[string]error
	}
)

func NewService(d Deps) *Service {
	observer := d.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	ladder := d.Ladder
	if ladder == nil {
		ladder = DefaultLadder(d.Profiles, d.PrivilegedProfiles)
	}
	sagaTimeout := d.SagaTimeout
	if sagaTimeout <= 0 {
		sagaTimeout = defaultSagaTimeout
	}
	return &Service{
		identities:  d.Identities,
		roster:      d.Roster,
		profiles:    d.Profiles,
		journal:     d.Journal,
		checker:     NewChecker(d.Roster),
		provisioner: NewProvisioner(ladder, d.Profiles, d.ProfileDelay, d.Logger, observer),
		reconciler:  NewReconciler(d.Roster, d.RoleRecords, d.Logger),
		compensator: NewCompensator(d.Identities, d.Roster, d.Journal, d.Logger),
		mailSvc:     d.MailSvc,
		logger:      d.Logger,
		observer:    observer,
		sagaTimeout: sagaTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CheckEligibility is the advisory pre-submission check.
func (svc *Service) CheckEligibility(ctx context.Context, q EligibilityQuery) (Eligibility, error) {
	return svc.checker.Check(ctx, q.Email, q.Role)
}

// Register turns a validated NewRegistration into an identity and its profile, or into nothing.
//
// Unmatched student/professor registrations are rejected before the identity is created.
// Once the identity exists, any failure that leaves it without a profile deletes it again.
func (svc *Service) Register(ctx context.Context, nr NewRegistration) (Result, error) {
	if IsRosterRole(nr.Role) {
		if _, err := svc.roster.FindUnconsumed(ctx, nr.Email, nr.Role); err != nil {
			if errors.Cause(err) == ErrNotFound {
				svc.observer.ObserveOutcome(OutcomeRosterMismatch)
				return Result{}, ErrRosterMismatch
			}
			svc.observer.ObserveOutcome(OutcomeError)
			return Result{}, errors.Wrap(err, "finding roster entry")
		}
	}

	identity, err := svc.identities.CreateIdentity(ctx, nr.Email, nr.Password, nr.traits())
	if err != nil {
		svc.observer.ObserveOutcome(outcomeOf(err))
		return Result{}, errors.Wrap(err, "creating identity")
	}

	sagaCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), svc.sagaTimeout)
	defer cancel()

	res, err := svc.provision(sagaCtx, identity, nr)
	if err != nil {
		svc.observer.ObserveOutcome(outcomeOf(err))
		return Result{}, err
	}
	if res.Degraded() {
		svc.observer.ObserveOutcome(OutcomeDegraded)
	} else {
		svc.observer.ObserveOutcome(OutcomeSuccess)
	}
	return res, nil
}

func (svc *Service) provision(ctx context.Context, identity Identity, nr NewRegistration) (Result, error) {
	// journaled first: from here on `admin reconcile` can find the identity
	attempt := Attempt{
		IdentityID: identity.ID,
		Email:      nr.Email,
		Role:       nr.Role,
		Department: nr.Department,
		State:      StatePending,
	}
	if err := svc.journal.SaveAttempt(ctx, attempt); err != nil {
		err = errors.Wrap(err, "recording registration attempt")
		_ = svc.compensator.Compensate(ctx, attempt, err)
		return Result{}, err
	}

	if !identity.Verified {
		if err := svc.identities.VerifyIdentity(ctx, identity.ID); err != nil {
			// the account still works once the owner confirms their email
			svc.logger.Warn(fmt.Sprintf("force-verifying identity %s: %v", identity.ID, err), err,
				core.Person{ID: identity.ID, Email: nr.Email})
		}
	}

	var entry *RosterEntry
	if IsRosterRole(nr.Role) {
		matched, err := svc.reconciler.Match(ctx, nr.Email, nr.Role, identity.ID, svc.now())
		if err != nil {
			_ = svc.compensator.Compensate(ctx, attempt, err)
			return Result{}, err
		}
		entry = &matched
		attempt.RosterEntryID = &matched.ID
	}

	profile, err := svc.provisioner.CreateProfile(ctx, identity, nr)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("provisioning profile for identity %s: %v", identity.ID, err), err,
			core.Person{ID: identity.ID, Email: nr.Email})
		_ = svc.compensator.Compensate(ctx, attempt, err)
		return Result{}, err
	}

	attempt.State = StateProvisioned
	svc.saveAttempt(ctx, attempt)

	res := Result{Profile: profile}
	if entry != nil {
		if w := svc.reconciler.Link(ctx, identity.ID, *entry, nr.Department); w != nil {
			res.Warnings = append(res.Warnings, w)
		}
	}
	svc.finish(ctx, attempt, res)
	return res, nil
}

func (svc *Service) finish(ctx context.Context, attempt Attempt, res Result) {
	attempt.State = StateCompleted
	attempt.Detail = ""
	if res.Degraded() {
		attempt.State = StateDegraded
		attempt.Detail = res.Warnings[0].Error()
	}
	svc.saveAttempt(ctx, attempt)

	svc.logger.Info(fmt.Sprintf("registration %s: %s (%s)", attempt.State, res.Profile.Email, res.Profile.Role), res.Profile.Person())
	svc.sendWelcome(res.Profile)
}

// saveAttempt is best effort once the profile exists: the account is usable either way.
func (svc *Service) saveAttempt(ctx context.Context, attempt Attempt) {
	if err := svc.journal.SaveAttempt(ctx, attempt); err != nil {
		svc.logger.Error("saving registration attempt: "+err.Error(), err, core.Person{ID: attempt.IdentityID, Email: attempt.Email})
	}
}

func (svc *Service) sendWelcome(profile Profile) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: profile.FirstName + " " + profile.LastName, Address: profile.Email}},
		Subject:      "Your account is ready",
		TemplateName: "welcome",
		TemplateData: profile,
	})
}

// Resume finishes or undoes one open attempt, keyed by its identity id:
// with a profile the role record is linked and the attempt completed, without one the identity is deleted.
func (svc *Service) Resume(ctx context.Context, identityID string) (string, error) {
	attempt, err := svc.journal.GetAttempt(ctx, identityID)
	if err != nil {
		return "", errors.Wrap(err, "loading registration attempt")
	}
	if !attempt.IsOpen() {
		return attempt.State, nil
	}

	profile, err := svc.profiles.GetProfile(ctx, identityID)
	switch errors.Cause(err) {
	case nil:
	case ErrNotFound:
		if err = svc.compensator.Compensate(ctx, attempt, errors.New("stale registration without profile")); err != nil {
			return StateCompensationFailed, err
		}
		return StateCompensated, nil
	default:
		return "", errors.Wrap(err, "loading profile")
	}

	res := Result{Profile: profile}
	if attempt.RosterEntryID != nil {
		entry, err := svc.roster.GetRosterEntry(ctx, *attempt.RosterEntryID)
		if err != nil {
			return "", errors.Wrap(err, "loading roster entry")
		}
		if entry.ReservedBy(identityID) {
			if w := svc.reconciler.Link(ctx, identityID, entry, attempt.Department); w != nil {
				res.Warnings = append(res.Warnings, w)
			}
		}
	}
	svc.finish(ctx, attempt, res)
	if res.Degraded() {
		return StateDegraded, nil
	}
	return StateCompleted, nil
}

// ReconcileOpen resumes every open attempt not updated for olderThan.
func (svc *Service) ReconcileOpen(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	report := ReconcileReport{Failed: make(map[string]error)}

	attempts, err := svc.journal.ListOpenAttempts(ctx, svc.now().Add(-olderThan))
	if err != nil {
		return report, errors.Wrap(err, "listing open registration attempts")
	}
	for _, a := range attempts {
		state, err := svc.Resume(ctx, a.IdentityID)
		switch {
		case err != nil:
			report.Failed[a.IdentityID] = err
		case state == StateCompensated:
			report.Compensated = append(report.Compensated, a.IdentityID)
		default:
			report.Completed = append(report.Completed, a.IdentityID)
		}
	}
	return report, nil
}

func outcomeOf(err error) string {
	switch cause := errors.Cause(err).(type) {
	case *IdentityProviderError:
		return OutcomeIdentityError
	case *ProvisioningFailed:
		return OutcomeProvisioning
	default:
		switch cause {
		case ErrIdentityConflict:
			return OutcomeIdentityConflict
		case ErrRosterMismatch:
			return OutcomeRosterMismatch
		}
	}
	return OutcomeError
}

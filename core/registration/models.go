package registration

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-enrol/core"
)

// Roles
const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
	RoleAdmin     = "admin"
)

var Roles = []string{RoleStudent, RoleProfessor, RoleAdmin}

// IsRosterRole reports whether self-registering with role requires a roster entry.
func IsRosterRole(role string) bool {
	return role == RoleStudent || role == RoleProfessor
}

func isRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Name struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// NewRegistration is a self-registration request. It is never persisted as is.
type NewRegistration struct {
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,regrole"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,phone"`
	Department      string `json:"department,omitempty" validate:"max=100"`
	AcceptTerms     bool   `json:"acceptTerms" validate:"accepted"`
}

func (nr *NewRegistration) Validate(validate *validator.Validate) error {
	nr.FirstName = core.CleanString(nr.FirstName)
	nr.LastName = core.CleanString(nr.LastName)
	nr.Email = core.CleanString(nr.Email, true /* lower */)
	nr.Role = core.CleanString(nr.Role, true /* lower */)
	nr.Phone = core.CleanString(nr.Phone)
	nr.Department = core.CleanString(nr.Department)
	if nr.Role == RoleAdmin {
		nr.Department = "" // admins have no RoleRecord
	}
	return validate.Struct(nr)
}

func (nr NewRegistration) traits() Traits {
	return Traits{
		Email:     nr.Email,
		FirstName: nr.FirstName,
		LastName:  nr.LastName,
		Phone:     nr.Phone,
		Role:      nr.Role,
	}
}

func (nr NewRegistration) profile(identityID string) Profile {
	p := Profile{
		ID:        identityID,
		Email:     nr.Email,
		FirstName: nr.FirstName,
		LastName:  nr.LastName,
		Role:      nr.Role,
	}
	if nr.Phone != "" {
		phone := nr.Phone
		p.Phone = &phone
	}
	return p
}

type EligibilityQuery struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,regrole"`
}

func (q *EligibilityQuery) Validate(validate *validator.Validate) error {
	q.Email = core.CleanString(q.Email, true /* lower */)
	q.Role = core.CleanString(q.Role, true /* lower */)
	return validate.Struct(q)
}

type Eligibility struct {
	Eligible     bool   `json:"eligible"`
	Message      string `json:"message"`
	RequiredName *Name  `json:"requiredName,omitempty"`
}

// Traits are the attributes stored on the identity by the provider.
type Traits struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// Identity is the authentication record owned by the identity provider.
type Identity struct {
	ID       string
	Email    string
	Verified bool
}

// RosterEntry is an administrator-created allowlist entry for one (email, role) pair.
type RosterEntry struct {
	ID                  string     `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	Role                string     `db:"role" json:"role"`
	RequiredFirstName   string     `db:"required_first_name" json:"requiredFirstName"`
	RequiredLastName    string     `db:"required_last_name" json:"requiredLastName"`
	LinkedPlaceholderID *string    `db:"linked_placeholder_id" json:"linkedPlaceholderId,omitempty"`
	ConsumedAt          *time.Time `db:"consumed_at" json:"consumedAt,omitempty"`
	IdentityID          *string    `db:"identity_id" json:"identityId,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
}

func (e RosterEntry) IsConsumed() bool {
	return e.ConsumedAt != nil
}

// ReservedBy reports whether the entry was consumed by the given identity.
func (e RosterEntry) ReservedBy(identityID string) bool {
	return e.IdentityID != nil && *e.IdentityID == identityID
}

// Profile is the application record, one per identity, sharing its id.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (p Profile) Person() core.Person {
	return core.Person{ID: p.ID, Name: p.FirstName + " " + p.LastName, Email: p.Email}
}

// RoleRecord holds the academic attributes of a student or professor.
// Placeholders are keyed by an admin-chosen id until re-keyed to the identity id.
type RoleRecord struct {
	ID         string    `db:"id" json:"id"`
	Role       string    `db:"role" json:"role"`
	Department string    `db:"department" json:"department"`
	Batch      string    `db:"batch" json:"batch"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Journal states
const (
	StatePending            = "pending"     // identity created
	StateProvisioned        = "provisioned" // profile created
	StateCompleted          = "completed"
	StateDegraded           = "degraded" // completed with reconciliation warnings
	StateCompensated        = "compensated"
	StateCompensationFailed = "compensation_failed"
)

// Attempt is the journal row of one registration saga, keyed by identity id.
type Attempt struct {
	IdentityID    string    `db:"identity_id"`
	Email         string    `db:"email"`
	Role          string    `db:"role"`
	RosterEntryID *string   `db:"roster_entry_id"`
	Department    string    `db:"department"`
	State         string    `db:"state"`
	Detail        string    `db:"detail"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (a Attempt) IsOpen() bool {
	switch a.State {
	case StatePending, StateProvisioned, StateCompensationFailed:
		return true
	}
	return false
}

// Result is what a successful registration returns.
type Result struct {
	Profile  Profile
	Warnings []*ReconciliationWarning
}

// Degraded reports whether the account exists but its administrative linkage is incomplete.
func (r Result) Degraded() bool {
	return len(r.Warnings) > 0
}

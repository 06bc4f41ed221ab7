package registration_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
	"github.com/trezcool/masomo-enrol/testutil"
)

func TestNewRegistration_Validate(t *testing.T) {
	env := testutil.NewEnv(t)

	tests := []struct {
		name       string
		modify     func(nr *registration.NewRegistration)
		wantFields map[string]string
	}{
		{
			name:   "valid student",
			modify: func(nr *registration.NewRegistration) {},
		},
		{
			name: "valid admin without department",
			modify: func(nr *registration.NewRegistration) {
				nr.Role = "ADMIN"
				nr.Department = "ignored"
			},
		},
		{
			name: "missing names",
			modify: func(nr *registration.NewRegistration) {
				nr.FirstName = "  "
				nr.LastName = ""
			},
			wantFields: map[string]string{
				"firstName": "this field is required",
				"lastName":  "this field is required",
			},
		},
		{
			name: "bad email",
			modify: func(nr *registration.NewRegistration) {
				nr.Email = "not-an-email"
			},
			wantFields: map[string]string{"email": "email must be a valid email address"},
		},
		{
			name: "short password",
			modify: func(nr *registration.NewRegistration) {
				nr.Password = "abc"
				nr.ConfirmPassword = "abc"
			},
			wantFields: map[string]string{"password": "password must contain at least 6 characters"},
		},
		{
			name: "passwords differ",
			modify: func(nr *registration.NewRegistration) {
				nr.ConfirmPassword = "something-else"
			},
			wantFields: map[string]string{"confirmPassword": "passwords do not match"},
		},
		{
			name: "unknown role",
			modify: func(nr *registration.NewRegistration) {
				nr.Role = "janitor"
			},
			wantFields: map[string]string{"role": "role must be one of student, professor or admin"},
		},
		{
			name: "terms not accepted",
			modify: func(nr *registration.NewRegistration) {
				nr.AcceptTerms = false
			},
			wantFields: map[string]string{"acceptTerms": "you must accept the terms and conditions"},
		},
		{
			name: "bad phone",
			modify: func(nr *registration.NewRegistration) {
				nr.Phone = "call me"
			},
			wantFields: map[string]string{"phone": "enter a valid phone number"},
		},
		{
			name: "student without department",
			modify: func(nr *registration.NewRegistration) {
				nr.Department = ""
			},
			wantFields: map[string]string{"department": "department is required for students and professors"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nr := testutil.NewRegistration("v@x.edu", registration.RoleStudent)
			tt.modify(&nr)

			err := nr.Validate(env.Validate)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "want validator.ValidationErrors, got %T", err)

			vErr := core.TranslateErrors(vErrs, env.Translator).(*core.ValidationError)
			assert.Equal(t, tt.wantFields, vErr.FieldMap())
		})
	}
}

func TestNewRegistration_Validate_cleans(t *testing.T) {
	env := testutil.NewEnv(t)

	nr := testutil.NewRegistration("  Mixed@Case.EDU ", " Admin ")
	nr.FirstName = "  Jane  "
	nr.Department = "Maths"
	require.NoError(t, nr.Validate(env.Validate))

	assert.Equal(t, "mixed@case.edu", nr.Email)
	assert.Equal(t, registration.RoleAdmin, nr.Role)
	assert.Equal(t, "Jane", nr.FirstName)
	assert.Empty(t, nr.Department)
}

func TestEligibilityQuery_Validate(t *testing.T) {
	env := testutil.NewEnv(t)

	q := registration.EligibilityQuery{Email: " S@X.edu", Role: "Student"}
	require.NoError(t, q.Validate(env.Validate))
	assert.Equal(t, "s@x.edu", q.Email)
	assert.Equal(t, registration.RoleStudent, q.Role)

	q = registration.EligibilityQuery{Email: "s@x.edu", Role: "dean"}
	assert.Error(t, q.Validate(env.Validate))
}

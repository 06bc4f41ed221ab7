package registration

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProfiles struct {
	existing map[string]Profile
	inserts  int
}

func (s *stubProfiles) CreateProfile(_ context.Context, p Profile) (Profile, error) {
	s.inserts++
	if _, ok := s.existing[p.ID]; ok {
		return Profile{}, ErrProfileExists
	}
	s.existing[p.ID] = p
	return p, nil
}

func (s *stubProfiles) GetProfile(_ context.Context, id string) (Profile, error) {
	if p, ok := s.existing[id]; ok {
		return p, nil
	}
	return Profile{}, ErrNotFound
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestProvisioner_CreateProfile(t *testing.T) {
	identity := Identity{ID: "id-1", Email: "a@x.edu"}
	nr := NewRegistration{FirstName: "Ann", LastName: "Lee", Email: "a@x.edu", Role: RoleStudent, Phone: "+243 810 000 000"}

	fkErr := func(context.Context, Profile) (Profile, error) {
		return Profile{}, errors.WithMessage(ErrIdentityNotVisible, "fk")
	}

	tests := []struct {
		name     string
		existing map[string]Profile
		ladder   func(s *stubProfiles) []ProvisionStrategy
		wantErr  func(t *testing.T, err error)
		wantName string
	}{
		{
			name: "first strategy",
			ladder: func(s *stubProfiles) []ProvisionStrategy {
				return []ProvisionStrategy{NewStrategy(StrategyDirectInsert, s.CreateProfile)}
			},
			wantName: "Ann",
		},
		{
			name:     "existing profile is returned",
			existing: map[string]Profile{"id-1": {ID: "id-1", FirstName: "Earlier"}},
			ladder: func(s *stubProfiles) []ProvisionStrategy {
				return []ProvisionStrategy{NewStrategy(StrategyDirectInsert, s.CreateProfile)}
			},
			wantName: "Earlier",
		},
		{
			name: "falls through FK errors",
			ladder: func(s *stubProfiles) []ProvisionStrategy {
				return []ProvisionStrategy{
					NewStrategy(StrategyDirectInsert, fkErr),
					NewStrategy(StrategyRawPrivileged, s.CreateProfile),
				}
			},
			wantName: "Ann",
		},
		{
			name: "exhausted",
			ladder: func(s *stubProfiles) []ProvisionStrategy {
				return []ProvisionStrategy{NewStrategy(StrategyDirectInsert, fkErr), NewStrategy(StrategyBypassProcedure, fkErr)}
			},
			wantErr: func(t *testing.T, err error) {
				failed, ok := err.(*ProvisioningFailed)
				require.True(t, ok)
				assert.Equal(t, "id-1", failed.IdentityID)
				assert.Len(t, failed.Reasons, 2)
			},
		},
		{
			name: "email taken is not retried",
			ladder: func(s *stubProfiles) []ProvisionStrategy {
				return []ProvisionStrategy{
					NewStrategy(StrategyDirectInsert, func(context.Context, Profile) (Profile, error) {
						return Profile{}, ErrEmailTaken
					}),
					NewStrategy(StrategyBypassProcedure, s.CreateProfile),
				}
			},
			wantErr: func(t *testing.T, err error) {
				assert.Equal(t, ErrEmailTaken, errors.Cause(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubProfiles{existing: make(map[string]Profile)}
			for k, v := range tt.existing {
				stub.existing[k] = v
			}
			p := NewProvisioner(tt.ladder(stub), stub, 0, nopLogger{}, nil)

			got, err := p.CreateProfile(context.Background(), identity, nr)
			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)
				assert.Zero(t, stub.inserts)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "id-1", got.ID)
			assert.Equal(t, tt.wantName, got.FirstName)
			assert.Len(t, stub.existing, 1)
		})
	}
}

func TestProvisioner_CreateProfile_phone(t *testing.T) {
	stub := &stubProfiles{existing: make(map[string]Profile)}
	p := NewProvisioner([]ProvisionStrategy{NewStrategy(StrategyDirectInsert, stub.CreateProfile)}, stub, 0, nopLogger{}, nil)

	got, err := p.CreateProfile(context.Background(), Identity{ID: "id-2"}, NewRegistration{Email: "b@x.edu", Phone: "+243 810 000 000"})
	require.NoError(t, err)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "+243 810 000 000", *got.Phone)

	got, err = p.CreateProfile(context.Background(), Identity{ID: "id-3"}, NewRegistration{Email: "c@x.edu"})
	require.NoError(t, err)
	assert.Nil(t, got.Phone)
}

func TestProvisioner_CreateProfile_cancelledDuringDelay(t *testing.T) {
	stub := &stubProfiles{existing: make(map[string]Profile)}
	p := NewProvisioner([]ProvisionStrategy{NewStrategy(StrategyDirectInsert, stub.CreateProfile)}, stub, time.Hour, nopLogger{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CreateProfile(ctx, Identity{ID: "id-4"}, NewRegistration{})
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.Zero(t, stub.inserts)
}

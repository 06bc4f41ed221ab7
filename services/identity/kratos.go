package identitysvc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	kratos "github.com/ory/kratos-client-go"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

// KratosGateway talks to the Ory Kratos admin API, the privileged side of the provider.
type KratosGateway struct {
	admin    *kratos.APIClient
	schemaID string
	logger   core.Logger
}

var _ registration.IdentityProvider = (*KratosGateway)(nil)

func NewKratosGateway(conf *core.Config, logger core.Logger) (*KratosGateway, error) {
	u, err := url.Parse(conf.Identity.AdminURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid Kratos admin URL: %q", conf.Identity.AdminURL)
	}

	kc := kratos.NewConfiguration()
	kc.Servers = []kratos.ServerConfiguration{{URL: conf.Identity.AdminURL}}
	kc.HTTPClient = &http.Client{Timeout: conf.Identity.Timeout}

	return &KratosGateway{
		admin:    kratos.NewAPIClient(kc),
		schemaID: conf.Identity.SchemaID,
		logger:   logger,
	}, nil
}

// HealthCheck makes sure the admin API answers.
func (g *KratosGateway) HealthCheck(ctx context.Context) error {
	_, resp, err := g.admin.MetadataAPI.GetVersion(ctx).Execute()
	if err != nil {
		return transformKratosError(err, resp, "health check")
	}
	return nil
}

func (g *KratosGateway) CreateIdentity(ctx context.Context, email, password string, traits registration.Traits) (registration.Identity, error) {
	t := map[string]interface{}{
		"email": email,
		"name": map[string]interface{}{
			"first": traits.FirstName,
			"last":  traits.LastName,
		},
		"role": traits.Role,
	}
	if traits.Phone != "" {
		t["phone"] = traits.Phone
	}

	body := kratos.NewCreateIdentityBody(g.schemaID, t)
	body.SetCredentials(kratos.IdentityWithCredentials{
		Password: &kratos.IdentityWithCredentialsPassword{
			Config: &kratos.IdentityWithCredentialsPasswordConfig{Password: &password},
		},
	})

	ident, resp, err := g.admin.IdentityAPI.CreateIdentity(ctx).CreateIdentityBody(*body).Execute()
	if err != nil {
		return registration.Identity{}, transformKratosError(err, resp, "create identity")
	}
	return registration.Identity{
		ID:       ident.Id,
		Email:    email,
		Verified: isVerified(ident),
	}, nil
}

// VerifyIdentity marks every verifiable address of the identity as verified.
func (g *KratosGateway) VerifyIdentity(ctx context.Context, id string) error {
	ident, resp, err := g.admin.IdentityAPI.GetIdentity(ctx, id).Execute()
	if err != nil {
		return transformKratosError(err, resp, "get identity")
	}
	if isVerified(ident) {
		return nil
	}

	patches := make([]kratos.JsonPatch, 0, 2*len(ident.VerifiableAddresses))
	for i := range ident.VerifiableAddresses {
		patches = append(patches,
			kratos.JsonPatch{Op: "replace", Path: fmt.Sprintf("/verifiable_addresses/%d/verified", i), Value: true},
			kratos.JsonPatch{Op: "replace", Path: fmt.Sprintf("/verifiable_addresses/%d/status", i), Value: "completed"},
		)
	}
	if len(patches) == 0 {
		return nil
	}

	_, resp, err = g.admin.IdentityAPI.PatchIdentity(ctx, id).JsonPatch(patches).Execute()
	if err != nil {
		return transformKratosError(err, resp, "verify identity")
	}
	return nil
}

func (g *KratosGateway) DeleteIdentity(ctx context.Context, id string) error {
	resp, err := g.admin.IdentityAPI.DeleteIdentity(ctx, id).Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			g.logger.Debug("identity " + id + " already deleted")
			return nil
		}
		return transformKratosError(err, resp, "delete identity")
	}
	return nil
}

func isVerified(ident *kratos.Identity) bool {
	if ident == nil || len(ident.VerifiableAddresses) == 0 {
		return false
	}
	for _, addr := range ident.VerifiableAddresses {
		if !addr.Verified {
			return false
		}
	}
	return true
}

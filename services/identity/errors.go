package identitysvc

import (
	"encoding/json"
	"net/http"

	kratos "github.com/ory/kratos-client-go"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core/registration"
)

// kratosErrorBody is the generic error envelope of the Kratos API.
type kratosErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

// transformKratosError maps a failed Kratos call to ErrIdentityConflict or an *IdentityProviderError.
func transformKratosError(err error, resp *http.Response, op string) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	var apiErr *kratos.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		var body kratosErrorBody
		if jErr := json.Unmarshal(apiErr.Body(), &body); jErr == nil && body.Error.Code != 0 {
			if status == 0 {
				status = body.Error.Code
			}
			msg := body.Error.Message
			if body.Error.Reason != "" {
				msg += ": " + body.Error.Reason
			}
			err = errors.New(msg)
		}
	}

	if status == http.StatusConflict {
		return registration.ErrIdentityConflict
	}
	return &registration.IdentityProviderError{Op: op, StatusCode: status, Err: err}
}

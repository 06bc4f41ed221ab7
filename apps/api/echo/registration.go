package echoapi

import (
	"context"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core/registration"
)

// RegistrationService is the part of registration.Service the API needs.
type RegistrationService interface {
	CheckEligibility(ctx context.Context, q registration.EligibilityQuery) (registration.Eligibility, error)
	Register(ctx context.Context, nr registration.NewRegistration) (registration.Result, error)
}

var _ RegistrationService = (*registration.Service)(nil)

type registrationApi struct {
	svc        RegistrationService
	validate   *validator.Validate
	translator ut.Translator
}

type profileSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Pending   bool      `json:"pendingReconciliation,omitempty"`
}

func newProfileSummary(res registration.Result) profileSummary {
	p := res.Profile
	return profileSummary{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
		Phone:     p.Phone,
		CreatedAt: p.CreatedAt,
		Pending:   res.Degraded(),
	}
}

func registerRegistrationAPI(
	g *echo.Group,
	limiter echo.MiddlewareFunc,
	svc RegistrationService,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := registrationApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	var mw []echo.MiddlewareFunc
	if limiter != nil {
		mw = append(mw, limiter)
	}

	g.POST("/register", api.register, mw...)
	g.POST("/check-eligibility", api.checkEligibility, mw...)
}

// Handlers

func (api *registrationApi) register(ctx echo.Context) error {
	var data registration.NewRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRegistration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newProfileSummary(res))
}

func (api *registrationApi) checkEligibility(ctx echo.Context) error {
	var data registration.EligibilityQuery
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EligibilityQuery")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	elig, err := api.svc.CheckEligibility(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, elig)
}

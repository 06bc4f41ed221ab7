package registration

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-enrol/core"
)

var (
	roleTag  = "regrole"
	roleText = "role must be one of student, professor or admin"

	acceptedTag  = "accepted"
	acceptedText = "you must accept the terms and conditions"

	departmentTag  = "deptrequired"
	departmentText = "department is required for students and professors"

	pwdMatchTag  = "eqfield"
	pwdMatchText = "passwords do not match"

	pwdMinLenTag  = "min"
	pwdMinLenText = "password must contain at least 6 characters"
)

// InitValidators registers the registration tags and messages. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(acceptedTag, acceptedValidation)
	core.RegisterCustomTranslation(validate, translator, acceptedTag, acceptedText)

	validate.RegisterStructValidation(registrationStructValidation, NewRegistration{})
	core.RegisterCustomTranslation(validate, translator, departmentTag, departmentText)

	registerFieldTranslation(validate, translator, pwdMatchTag, "confirmPassword", pwdMatchText)
	registerFieldTranslation(validate, translator, pwdMinLenTag, "password", pwdMinLenText)
}

// registerFieldTranslation overrides the default message of tag for a single field only.
func registerFieldTranslation(validate *validator.Validate, translator ut.Translator, tag, field, text string) {
	key := tag + "." + field
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error {
			if err := t.Add(key, text, true); err != nil {
				return err
			}
			return nil
		},
		func(t ut.Translator, fe validator.FieldError) string {
			if fe.Field() == field {
				s, _ := t.T(key)
				return s
			}
			return fallbackTranslation(t, fe)
		},
	)
}

// fallbackTranslation mirrors the default en messages for the overridden tags.
func fallbackTranslation(t ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case pwdMatchTag:
		return fe.Field() + " must be equal to " + fe.Param()
	case pwdMinLenTag:
		return fe.Field() + " must be at least " + fe.Param() + " characters in length"
	}
	return fe.Error()
}

func roleValidation(fl validator.FieldLevel) bool {
	return isRole(fl.Field().String())
}

func acceptedValidation(fl validator.FieldLevel) bool {
	return fl.Field().Bool()
}

func registrationStructValidation(sl validator.StructLevel) {
	nr := sl.Current().Interface().(NewRegistration)
	if IsRosterRole(nr.Role) && nr.Department == "" {
		sl.ReportError(nr.Department, "department", "Department", departmentTag, "")
	}
}

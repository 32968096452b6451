// internal/utils/validator.go
package utils

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/javajoker/ipscope/internal/i18n"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	registerValidations(validate)

	// gin validates bound query and URI structs with its own engine
	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerValidations(engine)
	}
}

func registerValidations(v *validator.Validate) {
	v.RegisterValidation("hexaddr", validateHexAddress)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// validateHexAddress accepts 0x-prefixed 20-byte hex addresses in any letter case.
func validateHexAddress(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.HasPrefix(strings.ToLower(s), "0x") && common.IsHexAddress(s)
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error, lang string) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   lowerFirst(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e, lang),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError, lang string) string {
	field := lowerFirst(e.Field())
	switch e.Tag() {
	case "required", "required_without":
		return i18n.T(lang, i18n.KeyValidationRequired, field)
	case "min", "max":
		return i18n.T(lang, i18n.KeyValidationRange, field)
	case "hexaddr":
		return i18n.T(lang, i18n.KeyValidationAddress, field)
	default:
		return i18n.T(lang, i18n.KeyValidationInvalid, field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

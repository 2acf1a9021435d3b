// internal/utils/validator.go
package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mr-tron/base58"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("wallet", validateWalletAddress)
	validate.RegisterValidation("tx_signature", validateTxSignature)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// validateWalletAddress accepts base58-encoded 32-byte public keys.
func validateWalletAddress(fl validator.FieldLevel) bool {
	decoded, err := base58.Decode(fl.Field().String())
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// validateTxSignature accepts base58-encoded 64-byte signatures.
func validateTxSignature(fl validator.FieldLevel) bool {
	decoded, err := base58.Decode(fl.Field().String())
	if err != nil {
		return false
	}
	return len(decoded) == 64
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "wallet":
		return e.Field() + " must be a base58-encoded wallet address"
	case "tx_signature":
		return e.Field() + " must be a base58-encoded transaction signature"
	default:
		return e.Field() + " is invalid"
	}
}

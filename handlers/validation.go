package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validatePatientID checks the 8-character alphanumeric patient ID format.
func validatePatientID(patientID string) bool {
	if len(patientID) != 8 {
		return false
	}
	for _, char := range patientID {
		if !((char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9')) {
			return false
		}
	}
	return true
}

func validateUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// formatValidationErrors formats validation errors for better response
func formatValidationErrors(err error) interface{} {
	var validationErrors []map[string]string

	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			validationErrors = append(validationErrors, map[string]string{
				"field":   fe.Field(),
				"tag":     fe.Tag(),
				"value":   fmt.Sprintf("%v", fe.Value()),
				"message": getValidationMessage(fe),
			})
		}
		return validationErrors
	}

	return err.Error()
}

// getValidationMessage returns user-friendly validation messages
func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

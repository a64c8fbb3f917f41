// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var isoDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("security_category", validateSecurityCategory)
		_ = v.RegisterValidation("entity_type", validateEntityType)
		_ = v.RegisterValidation("iso_date", validateISODate)
	}
}

func validateSecurityCategory(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "shares", "futures", "options":
		return true
	}
	return false
}

func validateEntityType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "individual", "legal":
		return true
	}
	return false
}

func validateISODate(fl validator.FieldLevel) bool {
	return isoDateRegex.MatchString(fl.Field().String())
}

package models

import (
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the enum tags used in request bindings.
func RegisterValidators(v *validator.Validate) error {
	enums := map[string]func(string) bool{
		"role":      func(s string) bool { return Role(s).Valid() },
		"post_type": func(s string) bool { return PostType(s).Valid() },
		"priority":  func(s string) bool { return Priority(s).Valid() },
	}
	for tag, valid := range enums {
		valid := valid
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

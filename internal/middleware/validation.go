package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/churchdesk/admin-api/internal/model"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationConfig represents validation configuration
type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"channel":  validateChannel,
			"audience": validateAudience,
		},
		CustomErrorMessages: map[string]string{
			"required": "Field is required",
			"email":    "Invalid email format",
			"min":      "Value is too short",
			"max":      "Value is too long",
			"channel":  "Delivery channel must be email or sms",
			"audience": "Unknown audience type",
			"oneof":    "Value is not one of the allowed options",
		},
	}
}

// RegisterValidators installs the custom tags on gin's validator and makes
// field names in errors follow the json tags.
func RegisterValidators(config ValidationConfig) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	for tag, fn := range config.CustomValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return nil
}

// DescribeValidation flattens validator errors into field messages.
func DescribeValidation(err error, config ValidationConfig) []ValidationError {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := config.CustomErrorMessages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}

func validateChannel(fl validator.FieldLevel) bool {
	return model.Channel(fl.Field().String()).Valid()
}

func validateAudience(fl validator.FieldLevel) bool {
	_, ok := model.ParseAudienceType(fl.Field().String())
	return ok
}

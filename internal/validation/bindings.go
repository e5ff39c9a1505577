package validation

import (
	"fmt"
	"time"

	"teetime/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterBindings adds the isodate and hhmm tags to gin's validator.
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("isodate", layout(models.DateLayout)); err != nil {
		return fmt.Errorf("failed to register isodate: %w", err)
	}
	if err := v.RegisterValidation("hhmm", layout(models.TimeLayout)); err != nil {
		return fmt.Errorf("failed to register hhmm: %w", err)
	}
	return nil
}

func layout(l string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != len(l) {
			return false
		}
		_, err := time.Parse(l, s)
		return err == nil
	}
}

// FieldErrors flattens validator errors into field -> tag pairs.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

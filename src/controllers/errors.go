package controllers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/logger"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Message string      `json:"message"`
	Code    apperr.Code `json:"code"`
}

// ErrorHandler renders controller errors as ErrorResponse. Anything that is not
// an application error is logged and answered with a generic 500.
func ErrorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return c.Status(appErr.Status).JSON(ErrorResponse{Message: appErr.Message, Code: appErr.Code})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Message: fiberErr.Message, Code: codeForStatus(fiberErr.Code)})
		}

		log.WithError(err).Error("Unhandled request error", map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Message: "Server error", Code: apperr.CodeInternal})
	}
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case fiber.StatusConflict:
		return apperr.CodeInvalidStateTransition
	}
	if status >= fiber.StatusBadRequest && status < fiber.StatusInternalServerError {
		return apperr.CodeValidation
	}
	return apperr.CodeInternal
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// validateInput runs struct validation and turns the first failure into a Validation error.
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("Invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation(fe.Field() + " is required")
	case "max":
		return apperr.Validation(fe.Field() + " must be at most " + fe.Param() + " characters")
	case "min":
		return apperr.Validation(fe.Field() + " must be at least " + fe.Param())
	case "oneof":
		return apperr.Validation(fe.Field() + " must be one of: " + fe.Param())
	default:
		return apperr.Validation(fe.Field() + " is invalid")
	}
}

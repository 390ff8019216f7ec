package validator

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator"

	"regportal/internal/model"
)

var global *validator.Validate

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("classoption", validateClassOption)
	_ = v.RegisterValidation("regstatus", validateRegistrationStatus)
	return v
}

// fieldName reports fields by their form or json name so messages match the request.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func validateClassOption(fl validator.FieldLevel) bool {
	return IsClassOption(fl.Field().String())
}

func validateRegistrationStatus(fl validator.FieldLevel) bool {
	return IsRegistrationStatus(fl.Field().String())
}

func IsClassOption(s string) bool {
	return slices.Contains(model.ClassOptions, s)
}

func IsRegistrationStatus(s string) bool {
	return slices.Contains(model.RegistrationStatus, s)
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "required":
		msg = ErrFieldRequired
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "uuid", "uuid4":
		msg = ErrInvalidFormat
	case "classoption":
		msg = "Class option must be one of A, B, C"
	case "regstatus":
		msg = "Status must be one of pending, approved, rejected"
	default:
		msg = ErrUnknownValidation
	}
	return &FieldError{Field: ve.Field(), Tag: ve.Tag(), Msg: msg}
}

// FieldError describes the first failed rule of a validated struct.
type FieldError struct {
	Field string
	Tag   string
	Msg   string
}

func (e *FieldError) Error() string {
	return e.Msg + ": " + e.Field
}

// IsMissingField reports whether err was produced by a "required" rule.
func IsMissingField(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe) && fe.Tag == "required"
}

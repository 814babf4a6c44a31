// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var sharedValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// GetValidator returns the process-wide validator. The instance caches
// parsed struct tags, so sharing one between the intake consumer and
// the API handlers is cheaper than constructing per call.
func GetValidator() *validator.Validate {
	return sharedValidator()
}

// ValidationError is one field that failed validation, with enough
// context to render a message or a structured API detail.
type ValidationError struct {
	field string
	tag   string
	param string
	value interface{}
	kind  reflect.Kind
}

func fieldError(fe validator.FieldError) ValidationError {
	return ValidationError{
		field: fe.Field(),
		tag:   fe.Tag(),
		param: fe.Param(),
		value: fe.Value(),
		kind:  fe.Kind(),
	}
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag parameter, such as "720" for "max=720".
func (e *ValidationError) Param() string { return e.param }

// Value returns the value that failed validation.
func (e *ValidationError) Value() interface{} { return e.value }

// Error derives a human-readable message from the failed tag.
func (e *ValidationError) Error() string {
	switch e.tag {
	case "required":
		return e.field + " is required"
	case "email":
		return e.field + " must be a valid email address"
	case "url":
		return e.field + " must be a valid URL"
	case "uuid":
		return e.field + " must be a valid UUID"
	case "datetime":
		return fmt.Sprintf("%s must be a date matching layout %s", e.field, e.param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.field, e.param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", e.field, e.param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", e.field, e.param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.field, e.param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", e.field, e.param)
	case "min":
		if e.kind == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", e.field, e.param)
		}
		return fmt.Sprintf("%s must be at least %s", e.field, e.param)
	case "max":
		if e.kind == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", e.field, e.param)
		}
		return fmt.Sprintf("%s must be at most %s", e.field, e.param)
	default:
		return fmt.Sprintf("%s failed %s validation", e.field, e.tag)
	}
}

// RequestValidationError aggregates every field failure from one
// ValidateStruct call.
type RequestValidationError struct {
	errors []ValidationError

	// invalid is set when the input could not be validated at all,
	// which means the caller passed something other than a struct.
	invalid error
}

// Errors returns the individual field errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface with one line per failed field.
func (ve *RequestValidationError) Error() string {
	if ve.invalid != nil {
		return "validation failed: " + ve.invalid.Error()
	}
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	var b strings.Builder
	for i := range ve.errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ve.errors[i].Error())
	}
	return b.String()
}

// APIError carries the validation outcome in the shape the HTTP layer
// serializes. Declared here rather than imported from internal/api to
// keep the dependency pointing one way.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError renders the failure set for an HTTP error response. A
// single failed field gets flat detail keys; multiple failures get a
// per-field list under "fields".
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.errors) {
	case 0:
		return &APIError{Code: "VALIDATION_ERROR", Message: ve.Error()}
	case 1:
		e := &ve.errors[0]
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: e.Error(),
			Details: map[string]interface{}{
				"field": e.field,
				"tag":   e.tag,
				"value": e.value,
			},
		}
	}

	fields := make([]map[string]interface{}, 0, len(ve.errors))
	var b strings.Builder
	for i := range ve.errors {
		e := &ve.errors[i]
		fields = append(fields, map[string]interface{}{
			"field":   e.field,
			"tag":     e.tag,
			"message": e.Error(),
		})
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.field)
		b.WriteString(": ")
		b.WriteString(e.Error())
	}

	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: b.String(),
		Details: map[string]interface{}{"fields": fields},
	}
}

// ValidateStruct runs the shared validator over s. It returns nil when
// every tag passes, so callers can treat the result as an error value
// directly.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{invalid: err}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, fieldError(fe))
	}
	return &RequestValidationError{errors: out}
}

// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/tastemap/internal/recommend/vecmath"
)

// CodeValidation is the API error code for rejected input.
const CodeValidation = "VALIDATION_ERROR"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one rejected field.
type FieldError struct {
	// Field is the wire name of the field, e.g. "rating".
	Field string `json:"field"`

	// Path locates the field inside nested input, e.g. "items[2].id".
	// Equal to Field for top-level fields.
	Path string `json:"path"`

	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// RequestValidationError collects every field that failed.
type RequestValidationError struct {
	Fields []FieldError
}

func (ve *RequestValidationError) Error() string {
	switch len(ve.Fields) {
	case 0:
		return "validation failed"
	case 1:
		return ve.Fields[0].Message
	}
	parts := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		parts[i] = f.Path + ": " + f.Message
	}
	return strings.Join(parts, "; ")
}

// APIError is the error body the API layer renders. It is declared here so
// this package does not import the api package.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError converts the error into an API error body. Details always
// carry the full field list; a single failure also names its field.
func (ve *RequestValidationError) ToAPIError() *APIError {
	apiErr := &APIError{Code: CodeValidation, Message: ve.Error()}
	if len(ve.Fields) == 0 {
		apiErr.Message = "Validation failed"
		return apiErr
	}
	apiErr.Details = map[string]interface{}{"fields": ve.Fields}
	if len(ve.Fields) == 1 {
		apiErr.Details["field"] = ve.Fields[0].Path
	}
	return apiErr
}

// GetValidator returns the shared validator with the custom tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(wireName)

		// Registration only fails on an empty tag or nil func.
		_ = validate.RegisterValidation("half_step", validateHalfStep)
		_ = validate.RegisterValidation("user_id", validateUserID)
	})
	return validate
}

// ValidateStruct validates s. It returns nil when s is valid.
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: s was not a struct.
		return &RequestValidationError{Fields: []FieldError{{
			Field:   "request",
			Path:    "request",
			Tag:     "struct",
			Message: err.Error(),
		}}}
	}

	out := &RequestValidationError{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Path:    fieldPath(fe),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		}
	}
	return out
}

// wireName reports fields by their json name, falling back to the query
// tag used by the API's query structs.
func wireName(fld reflect.StructField) string {
	for _, key := range []string{"json", "query"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return ""
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok && rest != "" {
		return rest
	}
	return fe.Field()
}

func validateHalfStep(fl validator.FieldLevel) bool {
	return vecmath.ValidRating(fl.Field().Float())
}

// userIDPattern admits opaque identifiers that are safe in a URL path
// segment and a cache key.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@:-]{1,128}$`)

func validateUserID(fl validator.FieldLevel) bool {
	return userIDPattern.MatchString(fl.Field().String())
}

// messages are indexed format strings: %[1]s is the field, %[2]s the tag
// parameter.
var messages = map[string]string{
	"required":  "%[1]s is required",
	"half_step": "%[1]s must be between 0.5 and 5.0 in steps of 0.5",
	"user_id":   "%[1]s must be 1-128 characters of letters, digits or ._@:-",
	"oneof":     "%[1]s must be one of: %[2]s",
	"gt":        "%[1]s must be greater than %[2]s",
	"gte":       "%[1]s must be greater than or equal to %[2]s",
	"lt":        "%[1]s must be less than %[2]s",
	"lte":       "%[1]s must be less than or equal to %[2]s",
	"min":       "%[1]s must be at least %[2]s",
	"max":       "%[1]s must be at most %[2]s",
}

func message(fe validator.FieldError) string {
	format, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	msg := fmt.Sprintf(format, fe.Field(), fe.Param())
	if (fe.Tag() == "min" || fe.Tag() == "max") && fe.Kind() == reflect.String {
		msg += " characters"
	}
	return msg
}

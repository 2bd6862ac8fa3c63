// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError], and HTTP middleware that
// applies it to typed request contracts.
//
// # Architecture
//
// Handlers never validate by hand. Each endpoint declares a request contract
// (a struct implementing [Schema] or [QuerySchema]) and mounts [Body] or
// [Query]; by the time the handler runs, the contract is decoded, normalized
// and valid.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/pkg/slice"
)

var (
	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// The zero value is ready to use. [Validator.At] returns a child scoped to a
// nested object; failures recorded on the child land on the root with
// dot-joined field paths.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs   []apperr.FieldError
	parent *Validator
	prefix string
}

// At returns a validator whose field names are prefixed with segment.
//
// # Example
//
//	v.At("owner").Email("email", in.Owner.Email) // field "owner.email"
func (v *Validator) At(segment string) *Validator {
	return &Validator{parent: v, prefix: segment}
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// Email fails if the value is not a valid RFC 5322 email address.
func (v *Validator) Email(field, value string) *Validator {
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// OneOf fails if the value is not in the allowed set of strings.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.add(field, fmt.Sprintf("Must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Role fails if the value does not name a defined [sec.Role]. Matching is
// case-insensitive, like [sec.ParseRole].
func (v *Validator) Role(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
		return v
	}
	names := slice.Map(sec.AllRoles(), sec.Role.String)
	return v.OneOf(field, strings.ToUpper(strings.TrimSpace(value)), names...)
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("newRole", role == current, "Must differ from the current role")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method; call it at the end of the chain.
func (v *Validator) Err() error {
	root := v.root()
	if len(root.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", root.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.root().errs) > 0
}

// add appends a [apperr.FieldError] to the root validator.
func (v *Validator) add(field, message string) {
	path := field
	for node := v; node.parent != nil; node = node.parent {
		path = Path(node.prefix, path)
	}
	root := v.root()
	root.errs = append(root.errs, apperr.FieldError{Field: path, Message: message})
}

func (v *Validator) root() *Validator {
	node := v
	for node.parent != nil {
		node = node.parent
	}
	return node
}

// Path joins non-empty field segments with dots.
func Path(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment != "" {
			parts = append(parts, segment)
		}
	}
	return strings.Join(parts, ".")
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}

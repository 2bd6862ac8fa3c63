// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/ctxkey"
	"github.com/taibuivan/workhub/internal/platform/respond"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// # Request Contracts

// Schema is implemented by request contracts decoded from a JSON body.
type Schema interface {
	Validate(v *Validator)
}

// QuerySchema is implemented by request contracts built from URL query values.
// ParseQuery both reads and normalizes the values, reporting problems on v.
type QuerySchema interface {
	ParseQuery(values url.Values, v *Validator)
}

// # Middleware

// Body decodes the JSON request body into a fresh T, validates it, and stores
// it in the request context for [Payload].
//
// # Flow
//  1. Decode. Malformed JSON or mistyped fields short-circuit with 400.
//  2. Validate. Rule failures short-circuit with 400 listing {field, message}.
//  3. Any other failure (e.g. a broken body stream) goes to [respond.Error],
//     the same error handler every handler uses, which renders it as a 500.
func Body[T any, P interface {
	*T
	Schema
}]() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			payload := P(new(T))

			if err := decodeJSON(writer, request, payload); err != nil {
				respond.Error(writer, request, err)
				return
			}

			validator := &Validator{}
			payload.Validate(validator)
			if err := validator.Err(); err != nil {
				respond.Error(writer, request, err)
				return
			}

			ctx := context.WithValue(request.Context(), ctxkey.KeyPayload, payload)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// Query builds T from the URL query string and stores the normalized value in
// the request context for [Payload].
func Query[T any, P interface {
	*T
	QuerySchema
}]() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			payload := P(new(T))

			validator := &Validator{}
			payload.ParseQuery(request.URL.Query(), validator)
			if err := validator.Err(); err != nil {
				respond.Error(writer, request, err)
				return
			}

			ctx := context.WithValue(request.Context(), ctxkey.KeyPayload, payload)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// Payload returns the contract stored by [Body] or [Query].
func Payload[T any](ctx context.Context) (*T, bool) {
	payload, ok := ctx.Value(ctxkey.KeyPayload).(*T)
	return payload, ok
}

// # Query Helpers

// QueryBool reads an optional boolean query parameter.
func QueryBool(values url.Values, key string, v *Validator) bool {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		v.add(key, "Must be true or false")
		return false
	}
	return parsed
}

// # Decoding

// decodeJSON classifies decoding failures: client mistakes become validation
// errors, everything else is returned untouched.
func decodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxBodyBytes))

	err := decoder.Decode(target)
	if err == nil {
		return nil
	}

	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var sizeError *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return apperr.ValidationError("Request body is required")
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrInvalidJSON
	case errors.As(err, &typeError):
		field := typeError.Field
		if field == "" {
			field = "body"
		}
		return apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   field,
			Message: fmt.Sprintf("Must be of type %s", typeError.Type.String()),
		})
	case errors.As(err, &sizeError):
		return apperr.ValidationError(fmt.Sprintf("Request body must not exceed %d bytes", sizeError.Limit))
	default:
		return fmt.Errorf("validate_decode_body_failed: %w", err)
	}
}

// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction so handlers get
typed, validated values or a client-facing error.
*/
package requestutil

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/ctxutil"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/platform/validate"
)

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
UUIDParam retrieves a named URL parameter and checks that it is a UUID.

Returns:
  - string: The canonical lower-case UUID
  - error: apperr.ValidationError naming the parameter when it is malformed
*/
func UUIDParam(request *http.Request, name string) (string, error) {
	parsed, err := uuid.Parse(Param(request, name))
	if err != nil {
		return "", validate.RequiredError(name, "Must be a valid UUID")
	}
	return parsed.String(), nil
}

/*
RequiredClaims ensures the request is authenticated and returns the user claims.

Returns:
  - *sec.AuthClaims: The authenticated user claims
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredClaims(request *http.Request) (*sec.AuthClaims, error) {
	claims := ctxutil.GetAuthUser(request.Context())
	if claims == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return claims, nil
}

/*
RequiredUserID returns the User ID of the currently logged-in user.
*/
func RequiredUserID(request *http.Request) (string, error) {
	claims, err := RequiredClaims(request)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

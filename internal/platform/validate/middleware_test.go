// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/workhub/internal/platform/respond"
	"github.com/taibuivan/workhub/internal/platform/validate"
)

type inviteRequest struct {
	Email string `json:"email"`
	Owner struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	} `json:"owner"`
}

func (in *inviteRequest) Validate(v *validate.Validator) {
	v.Email("email", in.Email)
	v.At("owner").Required("name", in.Owner.Name)
}

type listRequest struct {
	Department      string
	IncludeInactive bool
}

func (in *listRequest) ParseQuery(values url.Values, v *validate.Validator) {
	in.Department = strings.ToLower(strings.TrimSpace(values.Get("department")))
	in.IncludeInactive = validate.QueryBool(values, "includeInactive", v)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func serveBody(t *testing.T, body *http.Request) (*httptest.ResponseRecorder, *inviteRequest) {
	t.Helper()
	var seen *inviteRequest
	handler := validate.Body[inviteRequest]()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := validate.Payload[inviteRequest](r.Context())
		require.True(t, ok)
		seen = payload
		w.WriteHeader(http.StatusNoContent)
	}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, body)
	return recorder, seen
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) respond.ErrorEnvelope {
	t.Helper()
	var envelope respond.ErrorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	return envelope
}

/*
TestBody_PassesValidPayload stores the decoded contract and calls the next handler.
*/
func TestBody_PassesValidPayload(t *testing.T) {
	request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"ada@workhub.test","owner":{"name":"Ada"}}`))

	recorder, seen := serveBody(t, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "Ada", seen.Owner.Name)
}

/*
TestBody_ValidationFailures reports every failed rule with dot-joined field paths.
*/
func TestBody_ValidationFailures(t *testing.T) {
	request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","owner":{}}`))

	recorder, seen := serveBody(t, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Nil(t, seen)

	envelope := decodeError(t, recorder)
	require.Len(t, envelope.Errors, 2)
	assert.Equal(t, "email", envelope.Errors[0].Field)
	assert.Equal(t, "owner.name", envelope.Errors[1].Field)
}

/*
TestBody_DecodeFailures covers malformed JSON, type mismatches and empty bodies.
*/
func TestBody_DecodeFailures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"malformed", `{"email":`, ""},
		{"syntax", `{email}`, ""},
		{"empty", ``, ""},
		{"nested_type", `{"email":"a@b.co","owner":{"name":"A","age":"old"}}`, "owner.age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			recorder, seen := serveBody(t, request)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Nil(t, seen)

			envelope := decodeError(t, recorder)
			assert.Equal(t, "VALIDATION_ERROR", envelope.Code)
			if tt.wantField != "" {
				require.Len(t, envelope.Errors, 1)
				assert.Equal(t, tt.wantField, envelope.Errors[0].Field)
			}
		})
	}
}

/*
TestBody_PropagatesReadErrors hands non-validation failures to the generic error path.
*/
func TestBody_PropagatesReadErrors(t *testing.T) {
	request := httptest.NewRequest(http.MethodPost, "/", errReader{})

	recorder, seen := serveBody(t, request)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Nil(t, seen)

	envelope := decodeError(t, recorder)
	assert.Equal(t, "INTERNAL_ERROR", envelope.Code)
	assert.NotContains(t, envelope.Message, "connection reset")
}

/*
TestQuery_NormalizesValues stores trimmed, lower-cased values for the handler.
*/
func TestQuery_NormalizesValues(t *testing.T) {
	var seen *listRequest
	handler := validate.Query[listRequest]()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = validate.Payload[listRequest](r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/?department=%20Design%20&includeInactive=true", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "design", seen.Department)
	assert.True(t, seen.IncludeInactive)

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/?includeInactive=maybe", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	envelope := decodeError(t, recorder)
	require.Len(t, envelope.Errors, 1)
	assert.Equal(t, "includeInactive", envelope.Errors[0].Field)
}

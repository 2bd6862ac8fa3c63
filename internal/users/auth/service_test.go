// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/ctxutil"
	"github.com/taibuivan/workhub/internal/platform/sec"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*User
	err   error
}

func newMemoryUsers(users ...*User) *memoryUsers {
	store := &memoryUsers{users: map[string]*User{}}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("User")
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (m *memoryUsers) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func newTokens(t *testing.T) *sec.TokenService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return sec.NewTokenServiceFromKey(key, &key.PublicKey, "workhub.test")
}

func newUser(t *testing.T, id, email, password string, role sec.Role, active bool) *User {
	t.Helper()
	hash, err := sec.HashPassword(password)
	require.NoError(t, err)
	return &User{ID: id, Email: email, Name: id, PasswordHash: hash, Role: role, IsActive: active}
}

func TestService_Login(t *testing.T) {
	tokens := newTokens(t)
	users := newMemoryUsers(
		newUser(t, "u-admin", "ada@workhub.test", "correct horse", sec.RoleAdmin, true),
		newUser(t, "u-gone", "gone@workhub.test", "correct horse", sec.RoleMember, false),
	)
	service := NewService(users, tokens, 15*time.Minute)

	t.Run("valid_credentials", func(t *testing.T) {
		session, err := service.Login(context.Background(), LoginInput{Email: "ADA@workhub.test", Password: "correct horse"})
		require.NoError(t, err)

		claims, err := tokens.VerifyToken(session.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u-admin", claims.UserID)
		assert.Equal(t, sec.RoleAdmin, claims.Role)
		assert.Equal(t, 15*time.Minute, session.ExpiresIn)
	})

	rejected := []struct {
		name  string
		input LoginInput
	}{
		{"wrong_password", LoginInput{Email: "ada@workhub.test", Password: "battery staple"}},
		{"unknown_email", LoginInput{Email: "nobody@workhub.test", Password: "correct horse"}},
		{"inactive_account", LoginInput{Email: "gone@workhub.test", Password: "correct horse"}},
	}

	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Login(context.Background(), tt.input)
			assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
		})
	}

	t.Run("storage_failure", func(t *testing.T) {
		broken := newMemoryUsers()
		broken.err = errors.New("connection refused")

		_, err := NewService(broken, tokens, time.Minute).Login(context.Background(), LoginInput{Email: "ada@workhub.test", Password: "x"})
		require.Error(t, err)
		assert.Nil(t, apperr.As(err))
	})
}

func TestHandler_Login(t *testing.T) {
	users := newMemoryUsers(newUser(t, "u-1", "ada@workhub.test", "correct horse", sec.RoleManager, true))
	router := NewHandler(NewService(users, newTokens(t), time.Hour)).Routes()

	post := func(body string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))
		return recorder
	}

	recorder := post(`{"email":"ada@workhub.test","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data struct {
			AccessToken string `json:"accessToken"`
			TokenType   string `json:"tokenType"`
			ExpiresIn   int    `json:"expiresIn"`
			User        map[string]any
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.Equal(t, "Bearer", envelope.Data.TokenType)
	assert.Equal(t, 3600, envelope.Data.ExpiresIn)
	assert.Equal(t, "MANAGER", envelope.Data.User["role"])
	assert.NotContains(t, envelope.Data.User, "passwordHash")

	assert.Equal(t, http.StatusBadRequest, post(`{"email":"not-an-email"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(`{"email":"ada@workhub.test","password":"wrong"}`).Code)
}

func TestService_Register(t *testing.T) {
	users := newMemoryUsers(newUser(t, "u-1", "ada@workhub.test", "correct horse", sec.RoleAdmin, true))
	service := NewService(users, newTokens(t), time.Minute)

	user, err := service.Register(context.Background(), RegisterInput{
		Email:      "grace@workhub.test",
		Name:       "Grace",
		Password:   "correct horse",
		Department: "Research",
	})
	require.NoError(t, err)
	assert.Equal(t, sec.RoleMember, user.Role)
	assert.True(t, user.IsActive)
	assert.Len(t, user.ID, 36)
	assert.True(t, sec.CheckPasswordHash("correct horse", user.PasswordHash))

	stored, err := users.FindByEmail(context.Background(), "grace@workhub.test")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)

	_, err = service.Register(context.Background(), RegisterInput{Email: "ADA@workhub.test", Name: "Ada", Password: "whatever1"})
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
}

func TestHandler_Register(t *testing.T) {
	users := newMemoryUsers()
	router := NewHandler(NewService(users, newTokens(t), time.Hour)).Routes()

	post := func(role sec.Role, body string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
		claims := &sec.AuthClaims{UserID: "u-actor", Role: role}
		request = request.WithContext(ctxutil.WithAuthUser(request.Context(), claims))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		return recorder
	}

	body := `{"email":" grace@workhub.test ","name":"Grace","password":"correct horse"}`

	assert.Equal(t, http.StatusForbidden, post(sec.RoleManager, body).Code)

	recorder := post(sec.RoleAdmin, body)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	assert.Contains(t, recorder.Body.String(), `"email":"grace@workhub.test"`)
	assert.Contains(t, recorder.Body.String(), `"role":"MEMBER"`)

	assert.Equal(t, http.StatusConflict, post(sec.RoleAdmin, body).Code)

	recorder = post(sec.RoleAdmin, `{"email":"x@workhub.test","name":"","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"field":"name"`)
	assert.Contains(t, recorder.Body.String(), `"field":"password"`)
}

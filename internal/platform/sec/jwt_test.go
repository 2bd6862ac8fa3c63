// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/workhub/internal/platform/sec"
)

func newTestTokenService(t *testing.T, issuer string) *sec.TokenService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return sec.NewTokenServiceFromKey(key, &key.PublicKey, issuer)
}

/*
TestTokenService_RoundTrip signs a token and reads the same claims back.
*/
func TestTokenService_RoundTrip(t *testing.T) {
	service := newTestTokenService(t, "workhub.test")

	token, err := service.GenerateAccessToken("user-1", "ada@workhub.test", sec.RoleAdmin, time.Minute)
	require.NoError(t, err)

	claims, err := service.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ada@workhub.test", claims.Email)
	assert.Equal(t, sec.RoleAdmin, claims.Role)
	assert.Equal(t, "user-1", claims.Subject)
}

/*
TestTokenService_Rejects covers expired tokens, foreign keys and foreign issuers.
*/
func TestTokenService_Rejects(t *testing.T) {
	service := newTestTokenService(t, "workhub.test")

	expired, err := service.GenerateAccessToken("user-1", "a@b.c", sec.RoleMember, -time.Minute)
	require.NoError(t, err)
	_, err = service.VerifyToken(expired)
	assert.Error(t, err)

	foreign := newTestTokenService(t, "workhub.test")
	token, err := foreign.GenerateAccessToken("user-1", "a@b.c", sec.RoleMember, time.Minute)
	require.NoError(t, err)
	_, err = service.VerifyToken(token)
	assert.Error(t, err)

	_, err = service.VerifyToken("not-a-jwt")
	assert.Error(t, err)
}

/*
TestPasswordHash checks bcrypt hashing and comparison.
*/
func TestPasswordHash(t *testing.T) {
	hashed, err := sec.HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, sec.CheckPasswordHash("correct horse", hashed))
	assert.False(t, sec.CheckPasswordHash("battery staple", hashed))

	sec.BurnPasswordCheck("anything")
}

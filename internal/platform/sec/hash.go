// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	placeholderOnce sync.Once
	placeholderHash string
)

// HashPassword hashes a plain-text password using the bcrypt algorithm.
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// BurnPasswordCheck performs a bcrypt comparison against a throwaway hash so
// unknown accounts cost the same as a wrong password.
func BurnPasswordCheck(plainTextPassword string) {
	placeholderOnce.Do(func() {
		hashed, err := bcrypt.GenerateFromPassword([]byte("workhub-placeholder"), bcrypt.DefaultCost)
		if err == nil {
			placeholderHash = string(hashed)
		}
	})
	_ = CheckPasswordHash(plainTextPassword, placeholderHash)
}

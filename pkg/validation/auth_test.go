package validation

import (
	"codegen-app/internal/apperr"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthRequestValidator_ValidateUsername(t *testing.T) {
	validator := NewAuthRequestValidator()

	tests := []struct {
		name     string
		username string
		errMsg   string
	}{
		{name: "valid username", username: "testuser"},
		{name: "valid username with numbers", username: "user123"},
		{name: "valid username with underscore", username: "test_user"},
		{name: "valid username with hyphen", username: "test-user"},
		{name: "minimum length username", username: "abc"},
		{name: "empty username", username: "", errMsg: "username cannot be empty"},
		{name: "username too short", username: "ab", errMsg: "username must be at least 3 characters long"},
		{name: "username too long", username: strings.Repeat("a", 51), errMsg: "username must be at most 50 characters long"},
		{name: "username with spaces", username: "test user", errMsg: "username can only contain letters, numbers, underscores, and hyphens"},
		{name: "username with special characters", username: "test@user", errMsg: "username can only contain letters, numbers, underscores, and hyphens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateUsername(tt.username)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestAuthRequestValidator_ValidatePassword(t *testing.T) {
	validator := NewAuthRequestValidator()

	tests := []struct {
		name     string
		password string
		errMsg   string
	}{
		{name: "valid password", password: "password123"},
		{name: "minimum length password", password: "123456"},
		{name: "password with special characters", password: "P@ssw0rd!"},
		{name: "empty password", password: "", errMsg: "password cannot be empty"},
		{name: "password too short", password: "12345", errMsg: "password must be at least 6 characters long"},
		{name: "password too long", password: strings.Repeat("x", 129), errMsg: "password must be at most 128 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidatePassword(tt.password)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestAuthRequestValidator_ValidateEmail(t *testing.T) {
	validator := NewAuthRequestValidator()

	tests := []struct {
		name   string
		email  string
		errMsg string
	}{
		{name: "valid email", email: "test@example.com"},
		{name: "valid email with subdomain", email: "user@mail.example.com"},
		{name: "valid email with plus", email: "user+tag@example.com"},
		{name: "empty email is optional", email: ""},
		{name: "no @", email: "userexample.com", errMsg: "invalid email format"},
		{name: "no domain", email: "user@", errMsg: "invalid email format"},
		{name: "no local part", email: "@example.com", errMsg: "invalid email format"},
		{name: "no TLD", email: "user@example", errMsg: "invalid email format"},
		{name: "email too long", email: strings.Repeat("a", 250) + "@example.com", errMsg: "email must be at most 255 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateEmail(tt.email)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestAuthRequestValidator_ValidateLoginRequest(t *testing.T) {
	validator := NewAuthRequestValidator()

	assert.NoError(t, validator.ValidateLoginRequest("demo", "demo123"))
	assert.ErrorContains(t, validator.ValidateLoginRequest("", "demo123"), "username cannot be empty")
	assert.ErrorContains(t, validator.ValidateLoginRequest("demo", ""), "password cannot be empty")
	assert.ErrorContains(t, validator.ValidateLoginRequest("", ""), "username cannot be empty")
}

func TestAuthRequestValidator_ValidateRegisterRequest(t *testing.T) {
	validator := NewAuthRequestValidator()

	tests := []struct {
		name     string
		username string
		email    string
		password string
		errMsg   string
	}{
		{name: "valid registration request", username: "testuser", email: "test@example.com", password: "password123"},
		{name: "valid registration without email", username: "testuser", password: "password123"},
		{name: "invalid username", username: "ab", email: "test@example.com", password: "password123", errMsg: "username must be at least 3 characters long"},
		{name: "invalid email", username: "testuser", email: "invalid-email", password: "password123", errMsg: "invalid email format"},
		{name: "invalid password", username: "testuser", email: "test@example.com", password: "12345", errMsg: "password must be at least 6 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateRegisterRequest(tt.username, tt.email, tt.password)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

package validation

import (
	"codegen-app/internal/apperr"
	"fmt"
	"regexp"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// AuthRequestValidator validates login and registration requests
type AuthRequestValidator struct{}

// NewAuthRequestValidator creates a new AuthRequestValidator
func NewAuthRequestValidator() *AuthRequestValidator {
	return &AuthRequestValidator{}
}

// ValidateUsername validates a username
func (v *AuthRequestValidator) ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", apperr.ErrValidation)
	}
	if len(username) < 3 {
		return fmt.Errorf("%w: username must be at least 3 characters long, got %d", apperr.ErrValidation, len(username))
	}
	if len(username) > 50 {
		return fmt.Errorf("%w: username must be at most 50 characters long, got %d", apperr.ErrValidation, len(username))
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username can only contain letters, numbers, underscores, and hyphens", apperr.ErrValidation)
	}
	return nil
}

// ValidatePassword validates a password
func (v *AuthRequestValidator) ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", apperr.ErrValidation)
	}
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters long, got %d", apperr.ErrValidation, len(password))
	}
	if len(password) > 128 {
		return fmt.Errorf("%w: password must be at most 128 characters long, got %d", apperr.ErrValidation, len(password))
	}
	return nil
}

// ValidateEmail validates an optional email address
func (v *AuthRequestValidator) ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > 255 {
		return fmt.Errorf("%w: email must be at most 255 characters long, got %d", apperr.ErrValidation, len(email))
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", apperr.ErrValidation)
	}
	return nil
}

// ValidateLoginRequest validates a login request
func (v *AuthRequestValidator) ValidateLoginRequest(username, password string) error {
	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", apperr.ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", apperr.ErrValidation)
	}
	return nil
}

// ValidateRegisterRequest validates a registration request
func (v *AuthRequestValidator) ValidateRegisterRequest(username, email, password string) error {
	if err := v.ValidateUsername(username); err != nil {
		return err
	}
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	return v.ValidatePassword(password)
}

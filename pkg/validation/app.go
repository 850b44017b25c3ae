package validation

import (
	"codegen-app/internal/apperr"
	"codegen-app/internal/codegen"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxAppNameLength = 100
	maxPromptLength  = 20000

	// DefaultHistoryPageSize is used when a history request omits pageSize
	DefaultHistoryPageSize = 20
)

// AppRequestValidator validates application and generation requests
type AppRequestValidator struct{}

// NewAppRequestValidator creates a new AppRequestValidator
func NewAppRequestValidator() *AppRequestValidator {
	return &AppRequestValidator{}
}

// ValidateCreateApp validates an application name and generation type
func (v *AppRequestValidator) ValidateCreateApp(name, generationType string) (codegen.Type, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", apperr.ErrValidation)
	}
	if n := utf8.RuneCountInString(name); n > maxAppNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters long, got %d", apperr.ErrValidation, maxAppNameLength, n)
	}
	return codegen.ParseType(generationType)
}

// ValidatePrompt validates a generation prompt
func (v *AppRequestValidator) ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: message cannot be empty", apperr.ErrValidation)
	}
	if n := utf8.RuneCountInString(prompt); n > maxPromptLength {
		return fmt.Errorf("%w: message must be at most %d characters long, got %d", apperr.ErrValidation, maxPromptLength, n)
	}
	return nil
}

// ParseHistoryQuery parses the pageSize and lastCreateTime query parameters.
// A missing pageSize selects DefaultHistoryPageSize; range checks are left to the store.
func (v *AppRequestValidator) ParseHistoryQuery(pageSize, lastCreateTime string) (int, *time.Time, error) {
	size := DefaultHistoryPageSize
	if pageSize != "" {
		n, err := strconv.Atoi(pageSize)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: pageSize must be an integer, got %q", apperr.ErrValidation, pageSize)
		}
		size = n
	}

	if lastCreateTime == "" {
		return size, nil, nil
	}
	cursor, err := time.Parse(time.RFC3339Nano, lastCreateTime)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: lastCreateTime must be an RFC 3339 timestamp: %w", apperr.ErrValidation, err)
	}
	return size, &cursor, nil
}

package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const MaxPromptLength = 2000

// ErrPromptRejected marks a question blocked before it reaches the model.
var ErrPromptRejected = errors.New("prompt rejected")

// dangerousPatterns cover command execution and prompt injection attempts
var dangerousPatterns = []*regexp.Regexp{
	// Command execution
	regexp.MustCompile(`(?i)\brm\s+-`),
	regexp.MustCompile(`(?i)\brm\s+/`),
	regexp.MustCompile(`(?i)\bcurl\s+`),
	regexp.MustCompile(`(?i)\bwget\s+`),
	regexp.MustCompile(`(?i)\bbash\s+-`),
	regexp.MustCompile(`(?i)\bsudo\s+`),

	// File access
	regexp.MustCompile(`\.\.\/`),
	regexp.MustCompile(`/etc/passwd`),
	regexp.MustCompile(`/etc/shadow`),
	regexp.MustCompile(`/proc/`),
	regexp.MustCompile(`id_rsa`),
	regexp.MustCompile(`\.ssh/`),

	// Code execution
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`(?i)system\s*\(`),
	regexp.MustCompile(`(?i)__import__\s*\(`),
	regexp.MustCompile(`(?i)os\.system`),

	// Prompt injection
	regexp.MustCompile(`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)(new|change)\s+context\s*:`),
	regexp.MustCompile(`(?i)instead\s+of\s+the\s+above`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+system\s+prompt`),
}

// PromptValidator screens questions for injection and dangerous content
type PromptValidator struct {
	maxLength int
}

func NewPromptValidator(maxLength int) *PromptValidator {
	if maxLength <= 0 {
		maxLength = MaxPromptLength
	}
	return &PromptValidator{maxLength: maxLength}
}

// Validate returns an error wrapping ErrPromptRejected for questions that
// must not be sent to the model.
func (v *PromptValidator) Validate(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt cannot be empty", ErrPromptRejected)
	}
	if len(prompt) > v.maxLength {
		return fmt.Errorf("%w: prompt too long: %d chars (max %d)", ErrPromptRejected, len(prompt), v.maxLength)
	}
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(prompt) {
			return fmt.Errorf("%w: dangerous pattern detected: %s", ErrPromptRejected, pattern.String())
		}
	}
	return nil
}

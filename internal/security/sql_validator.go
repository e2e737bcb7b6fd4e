package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrForbiddenSQL marks a statement rejected by the read-only allow-list.
var ErrForbiddenSQL = errors.New("sql rejected by read-only filter")

// forbiddenKeywords are matched as whole words, so columns such as
// created_at or last_update pass.
var forbiddenKeywords = regexp.MustCompile(`(?i)\b(drop|delete|insert|update|alter|truncate|create|grant|revoke)\b`)

var sqlDangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i);\s*EXEC(UTE)?\b`),
	regexp.MustCompile(`(?i)\bINTO\s+OUTFILE\b`),
	regexp.MustCompile(`(?i)\bINTO\s+DUMPFILE\b`),
	regexp.MustCompile(`(?i)\bLOAD\s+DATA\b`),
	regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`),
	regexp.MustCompile(`(?i)\bBENCHMARK\s*\(`),
	regexp.MustCompile(`(?i)\bSLEEP\s*\(`),
	regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`),
	regexp.MustCompile(`;\s*--`),
	regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\bor\s+'1'\s*=\s*'1'`),
}

// SQLValidator is the read-only allow-list applied before any execution.
type SQLValidator struct{}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{}
}

// Validate returns an error wrapping ErrForbiddenSQL unless sql is a single
// read-only SELECT.
func (v *SQLValidator) Validate(sql string) error {
	trimmed := strings.ToLower(strings.TrimSpace(sql))
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", ErrForbiddenSQL)
	}
	if !strings.HasPrefix(trimmed, "select") {
		return fmt.Errorf("%w: only SELECT statements are allowed", ErrForbiddenSQL)
	}
	if kw := forbiddenKeywords.FindString(trimmed); kw != "" {
		return fmt.Errorf("%w: forbidden keyword %q", ErrForbiddenSQL, kw)
	}
	for _, pattern := range sqlDangerousPatterns {
		if pattern.MatchString(sql) {
			return fmt.Errorf("%w: injection pattern %s", ErrForbiddenSQL, pattern.String())
		}
	}
	return nil
}

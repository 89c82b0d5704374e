// Package validation provides shared validation utilities for sender implementations.
package validation

import (
	"regexp"
	"strings"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// IsValidURL checks if a string is a valid HTTP/HTTPS URL.
func IsValidURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsValidPhone checks if a string is an E.164 phone number.
func IsValidPhone(s string) bool {
	return e164.MatchString(s)
}

// IsValidEmail performs a basic shape check on an email address.
func IsValidEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}

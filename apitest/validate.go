package apitest

import (
	"net/mail"
	"regexp"
	"strings"
)

// Password must:
//   - be 8–64 characters long
//   - include at least one lowercase letter
//   - include at least one uppercase letter
//   - include at least one digit
var (
	lowerRegex = regexp.MustCompile(`[a-z]`)
	upperRegex = regexp.MustCompile(`[A-Z]`)
	digitRegex = regexp.MustCompile(`\d`)
)

func validatePassword(pw string) string {
	if len(pw) < 8 || len(pw) > 64 {
		return "must be 8–64 characters long"
	}
	if !lowerRegex.MatchString(pw) {
		return "must include at least one lowercase letter"
	}
	if !upperRegex.MatchString(pw) {
		return "must include at least one uppercase letter"
	}
	if !digitRegex.MatchString(pw) {
		return "must include at least one digit"
	}
	return ""
}

// validateRegistration returns per-field problems, or nil when the request is acceptable.
func validateRegistration(req registerRequest) map[string]string {
	fields := make(map[string]string)
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		fields["email"] = "must be a valid email address"
	}
	if strings.TrimSpace(req.FullName) == "" {
		fields["fullName"] = "is required"
	}
	if msg := validatePassword(req.Password); msg != "" {
		fields["password"] = msg
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// internal/app/system/normalize/normalize.go
//
// Package normalize centralizes input normalization so every store and
// handler agrees on the canonical form of emails, names, and codes.
package normalize

import "strings"

// Email lowercases and trims an email address. Matching against the
// student registry is always done on the normalized form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name, preserving its casing.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// OrgCode trims and uppercases an organization code. Codes are compared
// case-insensitively but always rendered uppercase.
func OrgCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Program trims a program name, preserving display casing.
func Program(s string) string {
	return strings.TrimSpace(s)
}

// Cohort trims a cohort name, preserving display casing.
func Cohort(s string) string {
	return strings.TrimSpace(s)
}

// Code trims a submitted one-time code.
func Code(s string) string {
	return strings.TrimSpace(s)
}

// MemberID trims a chat-platform member id.
func MemberID(s string) string {
	return strings.TrimSpace(s)
}

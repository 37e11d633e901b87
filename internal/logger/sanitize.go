package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxUserIDLength is the maximum length for user IDs in logs (UUIDs are 36 chars)
	MaxUserIDLength = 128
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
	// MaxThoughtPreviewLength bounds captured user text in logs.
	MaxThoughtPreviewLength = 80
	// MaxDebugContentLength bounds prompts and model responses in debug logs.
	MaxDebugContentLength = 10000
)

// SanitizeString removes control characters, repairs UTF-8 and truncates to
// maxLength runes. A non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	return truncateRunes(printable(s), maxLength)
}

// SanitizePath sanitizes a URL path for safe logging.
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError sanitizes an error message for safe logging.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUserID sanitizes a user ID for safe logging.
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeThoughtText reduces captured text to a short single-line preview.
// Full captures never go to the logs.
func SanitizeThoughtText(text string) string {
	return SanitizeString(strings.Join(strings.Fields(text), " "), MaxThoughtPreviewLength)
}

// SanitizeEmail keeps the first character of the local part and the domain.
func SanitizeEmail(email string) string {
	email = SanitizeString(email, MaxUserIDLength)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	first, _ := utf8.DecodeRuneInString(email)
	return string(first) + "***" + email[at:]
}

// SanitizeDebugContent sanitizes prompts and responses logged in debug mode.
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}

func printable(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' {
			return r
		}
		if r == '\n' || r == '\r' {
			return ' '
		}
		return -1
	}, s)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

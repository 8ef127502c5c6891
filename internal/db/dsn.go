package db

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	kvPairRegex  = regexp.MustCompile(`(?i)\b(host|user|password|dbname|port|sslmode)=`)
	kvPasswordRe = regexp.MustCompile(`(?i)(password=)([^\s]+)`)
)

// NormalizeDSN accepts either a URL style DSN (postgres://...) or a key=value list.
// It trims quotes and whitespace and, in key=value form, defaults sslmode to disable.
func NormalizeDSN(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "\"'")
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return s
	}
	// not key=value pairs either; the driver reports the error
	if !kvPairRegex.MatchString(s) {
		return s
	}
	cleaned := strings.Join(strings.Fields(s), " ")
	if !strings.Contains(strings.ToLower(cleaned), "sslmode=") {
		cleaned += " sslmode=disable"
	}
	return cleaned
}

// MaskDSN hides the password of a key=value or URL DSN for logging.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
			return strings.Replace(u.String(), "%2A%2A%2A", "***", 1)
		}
		return dsn
	}
	return kvPasswordRe.ReplaceAllString(dsn, `${1}***`)
}

package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// Keys the engine and RPC layer emit routinely. Anything else passed through
// MaskField is treated as sensitive.
var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"component":  {},
	"operation":  {},
	"category":   {},
	"code":       {},
	"method":     {},
	"request_id": {},
	"caller":     {},
	"duration":   {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// MaskValue returns the canonical redacted placeholder for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. JWT secrets and keystore passphrases go through here.
func MaskField(key, value string) slog.Attr {
	if IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, MaskValue(value))
}

// MaskBearer keeps the scheme of an Authorization header and hides the token.
func MaskBearer(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return header
	}
	scheme, _, found := strings.Cut(header, " ")
	if !found {
		return RedactedValue
	}
	return scheme + " " + RedactedValue
}

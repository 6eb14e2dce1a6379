package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks PII in log attribute values.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and its replacement.
type redactPattern struct {
	name    string
	regex   *regexp.Regexp
	replace func(string) string
}

// Pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternEmail       = "email"
	PatternPhone       = "phone"
)

// NewRedactor creates a redactor with the built-in patterns. Order matters:
// tokens are masked before the generic number patterns can split them.
func NewRedactor() *Redactor {
	return &Redactor{patterns: []*redactPattern{
		{
			name:    PatternBearerToken,
			regex:   regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
			replace: func(string) string { return "Bearer ***" },
		},
		{
			name:    PatternAPIKey,
			regex:   regexp.MustCompile(`sk-[a-zA-Z0-9_\-]+`),
			replace: func(string) string { return "sk-***" },
		},
		{
			name:    PatternEmail,
			regex:   regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
			replace: RedactEmail,
		},
		{
			name:    PatternPhone,
			regex:   regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]?\d{3}[-.\s]\d{4}\b`),
			replace: func(string) string { return "***-***-****" },
		},
	}}
}

// RedactString masks PII in value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllStringFunc(value, p.replace)
	}
	return value
}

// RedactAttr masks sensitive keys entirely and PII inside string values.
// Groups are walked recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if r == nil {
		return a
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, g := range group {
			out[i] = r.RedactAttr(g)
		}
		return slog.Group(a.Key, out...)
	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, maskSecret(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}

// isSensitiveKey checks if a key name indicates secret material.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range []string{"password", "secret", "token", "api_key", "apikey", "authorization"} {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// maskSecret keeps a four character hint of a secret.
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(email string) string {
	user, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	if user == "" {
		return "***@" + domain
	}
	return user[:1] + "***@" + domain
}

// Package util: helpers chicos de presentación para logs.
package util

import "strings"

// MaskEmail enmascara un email dejando la primera letra del usuario y del
// dominio. Para valores sin @ degrada a una máscara genérica.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		if s == "" {
			return ""
		}
		if len(s) <= 3 {
			return "***"
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	dparts := strings.Split(dom, ".")
	if len(dparts) > 0 && len(dparts[0]) > 1 {
		dparts[0] = dparts[0][:1] + "…"
	}
	return user + "@" + strings.Join(dparts, ".")
}

// MaskIdentifier trunca un identificador opaco (session id, provider id)
// para logs: conserva los primeros keep caracteres y tapa el resto.
func MaskIdentifier(s string, keep int) string {
	if keep <= 0 || len(s) <= keep {
		return "******"
	}
	return s[:keep] + "******"
}

package pg

import (
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+91 98765 43210": "+919876543210",
		"98765-43210":     "9876543210",
		"+34(600)112233":  "+34600112233",
		"abc":             "",
		"9+1":             "91", // el + solo vale al inicio
	}
	for in, want := range cases {
		if got := normalizePhone(in); got != want {
			t.Fatalf("normalizePhone(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestUserColumnsPrefixed(t *testing.T) {
	got := userColumnsPrefixed("u")
	if !strings.HasPrefix(got, "u.id") {
		t.Fatalf("prefix missing: %q", got)
	}
	if strings.Contains(got, " .") || strings.Contains(got, "u. ") {
		t.Fatalf("malformed columns: %q", got)
	}
	// misma cantidad de columnas que la constante
	if strings.Count(got, ",") != strings.Count(userColumns, ",") {
		t.Fatalf("column count mismatch: %q", got)
	}
}

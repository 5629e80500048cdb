package util

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"Captain.Rao@Gmail.com": "c…@g….com",
		"a@b.co":                "a@b.co",
		"":                      "",
		"xy":                    "***",
		"no-arroba-largo":       "n…o",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestMaskIdentifier(t *testing.T) {
	if got := MaskIdentifier("abcdefghij", 4); got != "abcd******" {
		t.Fatalf("got %q", got)
	}
	// valores cortos nunca filtran nada
	if got := MaskIdentifier("ab", 4); got != "******" {
		t.Fatalf("got %q", got)
	}
	if got := MaskIdentifier("whatever", 0); got != "******" {
		t.Fatalf("got %q", got)
	}
}

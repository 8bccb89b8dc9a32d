package util

import "testing"

func TestHideAPIKey(t *testing.T) {
	cases := map[string]string{
		"fgk_0123456789abcdef": "fgk_...cdef",
		"abcdefg":              "ab...fg",
		"abc":                  "a...c",
		"ab":                   "ab",
	}
	for in, want := range cases {
		if got := HideAPIKey(in); got != want {
			t.Fatalf("HideAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	got := MaskSensitiveQuery("page=2&api_key=fgk_0123456789abcdef&password=hunter22")
	want := "page=2&api_key=fgk_...cdef&password=hu...22"
	if got != want {
		t.Fatalf("MaskSensitiveQuery = %q, want %q", got, want)
	}
	if got := MaskSensitiveQuery("page=1"); got != "page=1" {
		t.Fatalf("unexpected change: %q", got)
	}
}

package recipes

import (
	"testing"
)

func TestFirstURL(t *testing.T) {
	cases := map[string]string{
		"check out https://example.com/paella for dinner": "https://example.com/paella",
		"http://a.test/x and https://b.test/y":            "http://a.test/x",
		"(see https://example.com/cake)":                  "https://example.com/cake",
		"no links here":                                   "",
		"ftp://example.com/old":                           "",
	}
	for text, want := range cases {
		if got := FirstURL(text); got != want {
			t.Errorf("FirstURL(%q) = %q, expected %q", text, got, want)
		}
	}
}

func TestHashContentStable(t *testing.T) {
	a := HashContent([]byte("same bytes"))
	b := HashContent([]byte("same bytes"))
	c := HashContent([]byte("different bytes"))

	if a != b {
		t.Error("Expected identical content to hash identically")
	}
	if a == c {
		t.Error("Expected different content to hash differently")
	}
	if len(a) != 64 {
		t.Errorf("Expected a 64-char hex digest, got %d chars", len(a))
	}
}

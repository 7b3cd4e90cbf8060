package tenancy

import (
	"testing"
)

func TestNormalizeHostname(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already normalized", in: "kidssite.org", want: "kidssite.org"},
		{name: "uppercase with www and port", in: "www.KidsSite.org:443", want: "kidssite.org"},
		{name: "port stripped", in: "example.com:8080", want: "example.com"},
		{name: "trailing dot stripped", in: "example.com.", want: "example.com"},
		{name: "only one trailing dot stripped", in: "example.com..", want: "example.com."},
		{name: "www stripped", in: "www.example.com", want: "example.com"},
		{name: "www stripped once", in: "www.www.example.com", want: "www.example.com"},
		// trailing dot strips before the www prefix, leaving a bare
		// "www" label rather than an empty hostname
		{name: "bare www", in: "www.", want: "www"},
		{name: "whitespace trimmed", in: "  Example.COM  ", want: "example.com"},
		{name: "empty", in: "", want: ""},
		{name: "port only", in: ":8080", want: ""},
		{name: "subdomain preserved", in: "videos.example.com", want: "videos.example.com"},
		{name: "localhost with dev port", in: "localhost:3000", want: "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeHostname(tt.in); got != tt.want {
				t.Errorf("NormalizeHostname(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeHostnameEquivalence(t *testing.T) {
	// All spellings of the same site must collapse to one lookup key
	variants := []string{
		"kidssite.org",
		"KidsSite.org",
		"www.kidssite.org",
		"kidssite.org:443",
		"www.KidsSite.org:443",
		"kidssite.org.",
	}

	for _, v := range variants {
		if got := NormalizeHostname(v); got != "kidssite.org" {
			t.Errorf("NormalizeHostname(%q) = %q, want kidssite.org", v, got)
		}
	}
}

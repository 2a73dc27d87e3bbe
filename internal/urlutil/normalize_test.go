package urlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.CA/jobs", "https://example.ca/jobs"},
		{"strips trailing slash", "https://example.ca/jobs/", "https://example.ca/jobs"},
		{"collapses duplicate slashes", "https://example.ca//careers//jobs", "https://example.ca/careers/jobs"},
		{"keeps root slash", "https://example.ca/", "https://example.ca/"},
		{"drops fragment", "https://example.ca/jobs#open", "https://example.ca/jobs"},
		{"strips tracking and sorts query", "https://example.ca/jobs?utm_source=x&b=2&a=1", "https://example.ca/jobs?a=1&b=2"},
		{"protocol-relative", "//example.ca/jobs", "https://example.ca/jobs"},
		{"blank", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeURL(tc.in))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	require.Equal(t, "clerk typist", NormalizeText("  Clerk -- Typist!  "))
	require.Equal(t, "", NormalizeText("  "))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b", CleanText("a   b"))
}

func TestDomainKey(t *testing.T) {
	require.Equal(t, "example.com", DomainKey("https://jobs.example.com/careers"))
	require.Equal(t, "example.com", DomainKey("https://www.example.com"))
	require.Equal(t, "example.ca", DomainKey("https://example.ca/x"))
}

func TestStableHashIsDeterministic(t *testing.T) {
	require.Equal(t, StableHash("abc"), StableHash("abc"))
	require.Len(t, StableHash("abc"), 64)
	require.NotEqual(t, StableHash("abc"), StableHash("abd"))
}

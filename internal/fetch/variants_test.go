package fetch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURLVariants(t *testing.T) {
	variants := URLVariants("https://example.ca/jobs")
	require.Equal(t, []string{
		"https://example.ca/jobs",
		"http://example.ca/jobs",
		"https://www.example.ca/jobs",
	}, variants)
}

func TestURLVariantsStripsWWW(t *testing.T) {
	variants := URLVariants("http://www.example.ca/careers")
	require.Equal(t, "http://www.example.ca/careers", variants[0])
	require.Contains(t, variants, "http://example.ca/careers")
	require.Contains(t, variants, "https://www.example.ca/careers")
}

func TestURLVariantsRejectsUnsupported(t *testing.T) {
	require.Nil(t, URLVariants("not a url"))
	require.Nil(t, URLVariants(""))
}

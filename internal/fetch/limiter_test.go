package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesSameDomain(t *testing.T) {
	l := NewLimiter(50) // 20ms between permits

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://example.ca/jobs"))
	}
	// Burst 1: four full intervals between five permits.
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterSharesBudgetAcrossSubdomains(t *testing.T) {
	l := NewLimiter(50)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "https://jobs.example.ca/a"))
	require.NoError(t, l.Wait(context.Background(), "https://www.example.ca/b"))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLimiterDistinctDomainsDoNotBlock(t *testing.T) {
	l := NewLimiter(2) // 500ms interval would show immediately

	urls := []string{
		"https://a.example/x",
		"https://b.example/x",
		"https://c.example/x",
		"https://d.example/x",
		"https://e.example/x",
	}
	start := time.Now()
	for _, u := range urls {
		require.NoError(t, l.Wait(context.Background(), u))
	}
	require.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestLimiterHonorsContextCancel(t *testing.T) {
	l := NewLimiter(0.001)
	require.NoError(t, l.Wait(context.Background(), "https://slow.example/x"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://slow.example/x"))
}

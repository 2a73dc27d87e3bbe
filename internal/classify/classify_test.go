package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyKnownBoards(t *testing.T) {
	hit := Classify("https://acme.wd3.myworkdayjobs.com/en-US/External")
	require.NotNil(t, hit)
	require.Equal(t, "ats_workday", hit.SourceType)
	require.Equal(t, "workday", hit.Adapter)

	hit = Classify("https://town.taleo.net/careersection/1/joblist.ftl")
	require.NotNil(t, hit)
	require.Equal(t, "ats_taleo", hit.SourceType)

	hit = Classify("https://www.governmentjobs.com/careers/kenora")
	require.NotNil(t, hit)
	require.Equal(t, "ats_neogov", hit.SourceType)
}

func TestClassifyPDFPath(t *testing.T) {
	hit := Classify("https://example.ca/docs/posting.PDF")
	require.NotNil(t, hit)
	require.Equal(t, "pdf", hit.SourceType)
	require.Equal(t, "pdf", hit.Adapter)
}

func TestClassifyUnknownIsNil(t *testing.T) {
	require.Nil(t, Classify("https://example.ca/about-us"))
	require.Nil(t, Classify(""))
}

func TestClassifyChainDiscountsRedirectHits(t *testing.T) {
	direct := ClassifyChain([]string{"https://acme.wd3.myworkdayjobs.com/ext"})
	require.NotNil(t, direct)
	require.InDelta(t, 0.98, direct.Confidence, 0.001)

	viaRedirect := ClassifyChain([]string{
		"https://example.ca/careers",
		"https://acme.wd3.myworkdayjobs.com/ext",
	})
	require.NotNil(t, viaRedirect)
	require.InDelta(t, 0.93, viaRedirect.Confidence, 0.001)
	require.Contains(t, viaRedirect.Reason, "redirect chain")

	require.Nil(t, ClassifyChain([]string{"https://example.ca/a", "https://example.ca/b"}))
}

func TestLooksLikeJobLink(t *testing.T) {
	require.True(t, LooksLikeJobLink("https://example.ca/careers", ""))
	require.True(t, LooksLikeJobLink("https://example.ca/x", "Current Vacancies"))
	require.False(t, LooksLikeJobLink("https://example.ca/about", "Contact Us"))
}

package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/artifact"
)

func TestClassifyFramework(t *testing.T) {
	require.Equal(t, "react", classifyFramework([]string{"/static/react.production.min.js"}, ""))
	require.Equal(t, "angular", classifyFramework([]string{"/assets/angular.bundle.js"}, ""))
	require.Equal(t, "unknown", classifyFramework([]string{"/assets/app.js"}, ""))
}

func TestIsSPAFramework(t *testing.T) {
	require.True(t, isSPAFramework("react"))
	require.True(t, isSPAFramework("next.js"))
	require.False(t, isSPAFramework("unknown"))
	require.False(t, isSPAFramework("shopify"))
}

func TestSynthesizeScoresHostileCookiesForcesGuided(t *testing.T) {
	s := &Scanner{}
	profile := &artifact.ScanProfile{TechStack: artifact.TechStack{BotDefense: true}}
	facts := scannerFacts{vendorCookies: 2, vendorScripts: 1}

	s.synthesizeScores(profile, facts)

	require.Equal(t, artifact.AccessGuided, profile.AccessRecommendation)
	require.GreaterOrEqual(t, profile.HostilityScore, 40)
}

func TestSynthesizeScoresCleanSiteIsAutomatic(t *testing.T) {
	s := &Scanner{}
	profile := &artifact.ScanProfile{}
	facts := scannerFacts{}

	s.synthesizeScores(profile, facts)

	require.Equal(t, artifact.AccessAutomatic, profile.AccessRecommendation)
	require.Equal(t, 0, profile.HostilityScore)
	require.Equal(t, 0, profile.ComplexityScore)
}

func TestSynthesizeScoresSPAFrameworkAddsComplexityNotHostility(t *testing.T) {
	s := &Scanner{}
	profile := &artifact.ScanProfile{TechStack: artifact.TechStack{Framework: "react"}}
	facts := scannerFacts{}

	s.synthesizeScores(profile, facts)

	require.Equal(t, artifact.AccessAutomatic, profile.AccessRecommendation)
	require.Equal(t, 20, profile.ComplexityScore)
	require.Equal(t, 0, profile.HostilityScore)
	require.Contains(t, profile.ComplexityReasons, "SPA framework detected")
}

func TestSynthesizeScoresCaptchaAndCloudflareAreIndependentSignals(t *testing.T) {
	s := &Scanner{}
	profile := &artifact.ScanProfile{}
	facts := scannerFacts{captchaDetected: true}

	s.synthesizeScores(profile, facts)

	require.Equal(t, 50, profile.ComplexityScore)
	require.Contains(t, profile.ComplexityReasons, "Captcha detected")
	require.NotContains(t, profile.ComplexityReasons, "Cloudflare detected")
}

func TestSynthesizeScoresCloudflareWithoutVendorCookiesStillDetected(t *testing.T) {
	s := &Scanner{}
	profile := &artifact.ScanProfile{}
	facts := scannerFacts{cloudflareDetected: true}

	s.synthesizeScores(profile, facts)

	require.Equal(t, 40, profile.ComplexityScore)
	require.Contains(t, profile.ComplexityReasons, "Cloudflare detected")
}

func TestSynthesizeScoresHighSigninSignalEscalatesHostility(t *testing.T) {
	s := &Scanner{}
	profile := &artifact.ScanProfile{}
	facts := scannerFacts{signinSignals: 1, authOverlays: 1, knownAuthHost: true}

	s.synthesizeScores(profile, facts)

	require.Equal(t, artifact.AccessGuided, profile.AccessRecommendation)
	require.Equal(t, 80, profile.HostilityScore)
}

func TestSyntheticProbeFailureRecommendsGuided(t *testing.T) {
	profile := SyntheticProbeFailure()
	require.Equal(t, artifact.AccessGuided, profile.AccessRecommendation)
	require.Equal(t, 100, profile.ComplexityScore)
	require.Contains(t, profile.ComplexityReasons, "Probe failed")
}

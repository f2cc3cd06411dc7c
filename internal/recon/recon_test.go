package recon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyFramework(t *testing.T) {
	cases := []struct {
		name    string
		scripts []string
		host    string
		want    string
	}{
		{"react bundle", []string{"/static/js/react-dom.production.js"}, "example.com", "react"},
		{"vue bundle", []string{"/assets/vue.runtime.esm.js"}, "example.com", "vue"},
		{"next.js bundle", []string{"/_next/static/chunks/main.js"}, "example.com", "next.js"},
		{"shopify host fallback", nil, "checkout.shopify.com", "shopify"},
		{"unknown", []string{"/assets/app.js"}, "example.com", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, classifyFramework(tc.scripts, tc.host))
		})
	}
}

func TestScoreCandidatesPenalizesLargeCounts(t *testing.T) {
	small := scoreCandidates([]candidateBlock{{Selector: "div.card", Count: 12, AvgTextLen: 150}})
	large := scoreCandidates([]candidateBlock{{Selector: "li.nav-item", Count: 80, AvgTextLen: 150}})

	require.Len(t, small, 1)
	require.Len(t, large, 1)
	require.Less(t, large[0].Score, float64(80*2)+20, "count>50 candidates should be discounted")
	require.Greater(t, small[0].Score, 0.0)
}

func TestScoreCandidatesRewardsDenseText(t *testing.T) {
	sparse := scoreCandidates([]candidateBlock{{Selector: "div.a", Count: 5, AvgTextLen: 5}})
	dense := scoreCandidates([]candidateBlock{{Selector: "div.b", Count: 5, AvgTextLen: 150}})

	require.Greater(t, dense[0].Score, sparse[0].Score)
}

func TestLabelForStripsTagPrefix(t *testing.T) {
	require.Equal(t, "card.product", labelFor("div.card.product"))
	require.Equal(t, "span", labelFor("span"))
}

func TestURLParamPatternDetectsAllowListedNames(t *testing.T) {
	require.Equal(t, "page={n}", urlParamPattern("https://example.com/products?page=2"))
	require.Equal(t, "offset={n}", urlParamPattern("https://example.com/products?offset=40&limit=20"))
	require.Equal(t, "", urlParamPattern("https://example.com/products?category=shoes"))
}

package auction_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
	"github.com/coregmedia/rtb-exchange-backend/internal/testutil/fixtures"
)

const testTrackingBase = "https://serve.example.com"

func newTestScorer(opts ...auction.ScorerOption) *auction.Scorer {
	return auction.NewScorer(testTrackingBase, opts...)
}

func TestScorer_NeutralScoreEqualsBaseBid(t *testing.T) {
	c := fixtures.NewCampaignBuilder().WithBaseBid(0.05).Build()
	req := fixtures.NewBidRequestBuilder().WithDevice(bidrequest.DeviceUnknown).Build()

	b := newTestScorer().Score(c, req)
	require.NotNil(t, b)
	assert.True(t, b.Score.Equal(decimal.NewFromFloat(0.05)), "score %s", b.Score)
}

func TestScorer_RelevanceMultiplier(t *testing.T) {
	tests := []struct {
		name      string
		questions map[string][]string
		responses map[string]string
		expected  string
	}{
		{
			name:      "no targeting is neutral",
			responses: map[string]string{"1": "a"},
			expected:  "0.1",
		},
		{
			name:      "no responses is neutral",
			questions: map[string][]string{"1": {"a"}},
			expected:  "0.1",
		},
		{
			name:      "half of targeted questions match",
			questions: map[string][]string{"1": {"a"}, "2": {"b"}},
			responses: map[string]string{"1": "a", "2": "x"},
			expected:  "0.05",
		},
		{
			name:      "targeted but unanswered question counts against relevance",
			questions: map[string][]string{"1": {"a"}, "2": {"b"}},
			responses: map[string]string{"1": "a"},
			expected:  "0.05",
		},
		{
			name:      "all match",
			questions: map[string][]string{"1": {"a", "b"}},
			responses: map[string]string{"1": "b"},
			expected:  "0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fixtures.NewCampaignBuilder().WithBaseBid(0.1).Build()
			c.Targeting.Questions = tt.questions
			req := fixtures.NewBidRequestBuilder().Build()
			req.Profile.Responses = tt.responses

			b := newTestScorer().Score(c, req)
			require.NotNil(t, b)
			expected, err := decimal.NewFromString(tt.expected)
			require.NoError(t, err)
			assert.True(t, b.Score.Equal(expected), "score %s, want %s", b.Score, expected)
		})
	}
}

func TestScorer_ZeroRelevanceProducesNoBid(t *testing.T) {
	c := fixtures.NewCampaignBuilder().WithBaseBid(0.1).WithQuestion("1", "a").Build()
	req := fixtures.NewBidRequestBuilder().WithResponse("1", "z").Build()
	assert.Nil(t, newTestScorer().Score(c, req))
}

func TestScorer_PriceAdjustments(t *testing.T) {
	tests := []struct {
		name     string
		device   bidrequest.DeviceType
		geo      *bidrequest.Geo
		answers  int
		expected string
	}{
		// 0.10 base, empty profile carries the 0.8 completeness factor
		{"mobile", bidrequest.DeviceMobile, nil, 0, "0.088"},
		{"desktop", bidrequest.DeviceDesktop, nil, 0, "0.084"},
		{"tablet is unadjusted", bidrequest.DeviceTablet, nil, 0, "0.08"},
		{"US uplift", bidrequest.DeviceUnknown, &bidrequest.Geo{Country: "US"}, 0, "0.096"},
		{"non-US country", bidrequest.DeviceUnknown, &bidrequest.Geo{Country: "CA"}, 0, "0.08"},
		{"half-complete profile", bidrequest.DeviceUnknown, nil, 5, "0.1"},
		{"full profile", bidrequest.DeviceUnknown, nil, 10, "0.12"},
		{"completeness capped beyond ten answers", bidrequest.DeviceUnknown, nil, 15, "0.12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fixtures.NewCampaignBuilder().WithBaseBid(0.10).Build()
			req := fixtures.NewBidRequestBuilder().WithDevice(tt.device).Build()
			req.Geo = tt.geo
			for i := 0; i < tt.answers; i++ {
				if req.Profile.Responses == nil {
					req.Profile.Responses = make(map[string]string)
				}
				req.Profile.Responses[strings.Repeat("q", i+1)] = "a"
			}

			b := newTestScorer().Score(c, req)
			require.NotNil(t, b)
			expected, err := decimal.NewFromString(tt.expected)
			require.NoError(t, err)
			assert.True(t, b.BidPrice.Equal(expected), "price %s, want %s", b.BidPrice, expected)
		})
	}
}

func TestScorer_MinimumBidPrice(t *testing.T) {
	// 0.001 base on an empty tablet profile adjusts to 0.0008, under the
	// absolute minimum
	c := fixtures.NewCampaignBuilder().WithBaseBid(0.001).Build()
	req := fixtures.NewBidRequestBuilder().WithDevice(bidrequest.DeviceTablet).Build()
	assert.Nil(t, newTestScorer().Score(c, req))
}

func TestScorer_ZeroBaseBidProducesNoBid(t *testing.T) {
	c := fixtures.NewCampaignBuilder().WithBaseBid(0).Build()
	req := fixtures.NewBidRequestBuilder().Build()
	assert.Nil(t, newTestScorer().Score(c, req))
}

func TestScorer_QualityOverrideAffectsScoreOnly(t *testing.T) {
	double := func(*campaign.Campaign, *bidrequest.BidRequest) decimal.Decimal {
		return decimal.NewFromInt(2)
	}
	c := fixtures.NewCampaignBuilder().WithBaseBid(0.05).Build()
	req := fixtures.NewBidRequestBuilder().WithDevice(bidrequest.DeviceUnknown).Build()

	plain := newTestScorer().Score(c, req)
	boosted := newTestScorer(auction.WithQualityMultiplier(double)).Score(c, req)
	require.NotNil(t, plain)
	require.NotNil(t, boosted)

	assert.True(t, boosted.Score.Equal(plain.Score.Mul(decimal.NewFromInt(2))))
	assert.True(t, boosted.BidPrice.Equal(plain.BidPrice), "price must be independent of the score multipliers")
}

func TestScorer_BidCarriesRenderingFields(t *testing.T) {
	c := fixtures.NewCampaignBuilder().WithBaseBid(0.05).Build()
	req := fixtures.NewBidRequestBuilder().Build()

	b := newTestScorer().Score(c, req)
	require.NotNil(t, b)

	assert.Contains(t, b.ClickURL, testTrackingBase+"/track/click?")
	assert.Contains(t, b.ClickURL, "request_id="+req.RequestID)
	assert.Contains(t, b.ClickURL, "campaign_id="+c.ID.String())
	assert.Contains(t, b.ClickURL, "dest=")

	assert.Contains(t, b.ImpressionURL, testTrackingBase+"/track/impression?")
	assert.Contains(t, b.ImpressionURL, "request_id="+req.RequestID)

	assert.Contains(t, b.AdMarkup, "coreg-ad")
	assert.Contains(t, b.AdMarkup, c.ID.String())
}

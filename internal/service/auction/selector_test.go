package auction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
	"github.com/coregmedia/rtb-exchange-backend/internal/testutil/fixtures"
	"github.com/coregmedia/rtb-exchange-backend/internal/testutil/mocks"
)

// fixedRand returns a constant value for deterministic weighted selection
type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

func TestWeightedSelector_ProportionalToBid(t *testing.T) {
	// weights 0.10 and 0.30: draws under 0.25 land on the first campaign
	a := fixtures.NewCampaignBuilder().WithName("A").WithBaseBid(0.10).Build()
	b := fixtures.NewCampaignBuilder().WithName("B").WithBaseBid(0.30).Build()
	store := &mocks.CampaignStore{Campaigns: []*campaign.Campaign{a, b}}

	req := fixtures.NewBidRequestBuilder().Build()

	tests := []struct {
		name string
		draw float64
		want string
	}{
		{"low draw picks first", 0.10, "A"},
		{"boundary draw picks second", 0.25, "B"},
		{"high draw picks second", 0.90, "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := auction.NewWeightedSelector(store, fixedRand{tt.draw})
			chosen, err := s.SelectCampaign(context.Background(), req)
			require.NoError(t, err)
			require.NotNil(t, chosen)
			assert.Equal(t, tt.want, chosen.Name)
		})
	}
}

func TestWeightedSelector_RespectsEligibility(t *testing.T) {
	ineligible := fixtures.NewCampaignBuilder().WithDevice("desktop").WithBaseBid(10).Build()
	eligible := fixtures.NewCampaignBuilder().WithBaseBid(0.01).Build()
	store := &mocks.CampaignStore{Campaigns: []*campaign.Campaign{ineligible, eligible}}

	req := fixtures.NewBidRequestBuilder().Build() // mobile

	s := auction.NewWeightedSelector(store, fixedRand{0.99})
	chosen, err := s.SelectCampaign(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, chosen)
	assert.Equal(t, eligible.ID, chosen.ID)
}

func TestWeightedSelector_NothingEligible(t *testing.T) {
	c := fixtures.NewCampaignBuilder().WithDevice("desktop").Build()
	store := &mocks.CampaignStore{Campaigns: []*campaign.Campaign{c}}

	req := fixtures.NewBidRequestBuilder().Build()

	s := auction.NewWeightedSelector(store, fixedRand{0.5})
	chosen, err := s.SelectCampaign(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, chosen)
}

func TestWeightedSelector_AllWeightless(t *testing.T) {
	a := fixtures.NewCampaignBuilder().WithName("A").WithBaseBid(0).Build()
	b := fixtures.NewCampaignBuilder().WithName("B").WithBaseBid(0).Build()
	store := &mocks.CampaignStore{Campaigns: []*campaign.Campaign{a, b}}

	req := fixtures.NewBidRequestBuilder().Build()

	s := auction.NewWeightedSelector(store, fixedRand{0.5})
	chosen, err := s.SelectCampaign(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, chosen)
	assert.Equal(t, "A", chosen.Name)
}

package auction

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/errors"
)

// RandSource provides random selection for the weighted path. The interface
// enables deterministic tests.
type RandSource interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0)
	Float64() float64
}

// WeightedSelector picks an eligible campaign with probability proportional
// to its base bid. This is the simple, non-scored serving path; it shares
// the eligibility filter with the auction engine but never persists bids.
type WeightedSelector struct {
	campaigns CampaignStore
	rand      RandSource
	now       func() time.Time
}

// NewWeightedSelector creates a weighted-random selector. A nil source
// falls back to math/rand.
func NewWeightedSelector(campaigns CampaignStore, src RandSource) *WeightedSelector {
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &WeightedSelector{
		campaigns: campaigns,
		rand:      src,
		now:       time.Now,
	}
}

// SelectCampaign returns an eligible campaign chosen by bid-weighted
// probability, or nil when nothing is eligible. Campaigns with a
// non-positive base bid carry no weight and are only chosen when all
// eligible campaigns are weightless, in which case the first one wins.
func (s *WeightedSelector) SelectCampaign(ctx context.Context, req *bidrequest.BidRequest) (*campaign.Campaign, error) {
	candidates, err := s.campaigns.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, errors.NewExternalError("campaign store", "listing active campaigns failed").WithCause(err)
	}

	now := s.now()
	eligible := make([]*campaign.Campaign, 0, len(candidates))
	total := decimal.Zero
	for _, c := range candidates {
		if !IsEligible(c, req, now) {
			continue
		}
		eligible = append(eligible, c)
		if c.BaseBid.IsPositive() {
			total = total.Add(c.BaseBid)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	if !total.IsPositive() {
		return eligible[0], nil
	}

	target := total.Mul(decimal.NewFromFloat(s.rand.Float64()))
	cumulative := decimal.Zero
	for _, c := range eligible {
		if !c.BaseBid.IsPositive() {
			continue
		}
		cumulative = cumulative.Add(c.BaseBid)
		if target.LessThan(cumulative) {
			return c, nil
		}
	}
	// Rounding can leave target at the upper edge; the last weighted
	// campaign takes it.
	for i := len(eligible) - 1; i >= 0; i-- {
		if eligible[i].BaseBid.IsPositive() {
			return eligible[i], nil
		}
	}
	return eligible[0], nil
}

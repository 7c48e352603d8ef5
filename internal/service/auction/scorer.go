package auction

import (
	"fmt"
	"html"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
)

// MinBidPrice is the absolute minimum adjusted bid price. Bids falling below
// are discarded before persistence.
var MinBidPrice = decimal.NewFromFloat(0.001)

// Price adjustment multipliers
var (
	mobileMultiplier  = decimal.NewFromFloat(1.10)
	desktopMultiplier = decimal.NewFromFloat(1.05)
	usMultiplier      = decimal.NewFromFloat(1.20)
)

// NeutralMultiplier is the default for the quality and time-of-day
// extension points.
func NeutralMultiplier(*campaign.Campaign, *bidrequest.BidRequest) decimal.Decimal {
	return decimal.NewFromInt(1)
}

// Scorer computes a bid price and ranking score for an eligible campaign.
// Quality and time-of-day factors are injected strategies so historical
// performance weighting can be added later without changing the contract.
type Scorer struct {
	quality   MultiplierFunc
	timeOfDay MultiplierFunc

	// trackingBaseURL is the externally reachable root for the click and
	// impression tracking endpoints.
	trackingBaseURL string
}

// ScorerOption configures a Scorer
type ScorerOption func(*Scorer)

// WithQualityMultiplier overrides the quality score strategy
func WithQualityMultiplier(fn MultiplierFunc) ScorerOption {
	return func(s *Scorer) { s.quality = fn }
}

// WithTimeOfDayMultiplier overrides the time-of-day strategy
func WithTimeOfDayMultiplier(fn MultiplierFunc) ScorerOption {
	return func(s *Scorer) { s.timeOfDay = fn }
}

// NewScorer creates a scorer with neutral quality and time-of-day factors
func NewScorer(trackingBaseURL string, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		quality:         NeutralMultiplier,
		timeOfDay:       NeutralMultiplier,
		trackingBaseURL: trackingBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score produces a bid for the campaign against the request, or nil when
// the campaign yields no usable bid (non-positive score or a price under
// the absolute minimum). It never errors: malformed targeting or profile
// data degrades to neutral multipliers.
func (s *Scorer) Score(c *campaign.Campaign, req *bidrequest.BidRequest) *bid.Bid {
	score := c.BaseBid.
		Mul(s.quality(c, req)).
		Mul(relevanceMultiplier(c, req)).
		Mul(s.timeOfDay(c, req))
	if !score.IsPositive() {
		return nil
	}

	price := c.BaseBid.
		Mul(deviceMultiplier(req.DeviceType)).
		Mul(countryMultiplier(req.Geo)).
		Mul(completenessMultiplier(req.Profile))
	if price.Round(bid.PricePrecision).LessThan(MinBidPrice) {
		return nil
	}

	b := bid.New(req.RequestID, c.ID, price, score)
	b.AdMarkup = s.renderMarkup(c, req)
	b.ClickURL = s.clickURL(c, req)
	b.ImpressionURL = s.impressionURL(c, req)
	return b
}

// relevanceMultiplier is the fraction of targeted questions where the
// user's recorded answer matches the accepted list. Campaigns without
// question targeting, and requests without responses, score neutral.
func relevanceMultiplier(c *campaign.Campaign, req *bidrequest.BidRequest) decimal.Decimal {
	questions := c.Targeting.Questions
	responses := req.Profile.Responses
	if len(questions) == 0 || len(responses) == 0 {
		return decimal.NewFromInt(1)
	}

	total := 0
	matched := 0
	for questionID, accepted := range questions {
		total++
		if answer, ok := responses[questionID]; ok && containsAnswer(accepted, answer) {
			matched++
		}
	}
	if total == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(matched)).Div(decimal.NewFromInt(int64(total)))
}

func deviceMultiplier(device bidrequest.DeviceType) decimal.Decimal {
	switch device {
	case bidrequest.DeviceMobile:
		return mobileMultiplier
	case bidrequest.DeviceDesktop:
		return desktopMultiplier
	default:
		return decimal.NewFromInt(1)
	}
}

func countryMultiplier(geo *bidrequest.Geo) decimal.Decimal {
	if geo != nil && geo.Country == "US" {
		return usMultiplier
	}
	return decimal.NewFromInt(1)
}

// completenessMultiplier maps profile completeness (responses out of ten)
// onto the 0.8-1.2 range.
func completenessMultiplier(profile bidrequest.UserProfile) decimal.Decimal {
	completeness := decimal.NewFromInt(int64(profile.ResponseCount())).
		Div(decimal.NewFromInt(10))
	one := decimal.NewFromInt(1)
	if completeness.GreaterThan(one) {
		completeness = one
	}
	return decimal.NewFromFloat(0.8).Add(decimal.NewFromFloat(0.4).Mul(completeness))
}

func (s *Scorer) clickURL(c *campaign.Campaign, req *bidrequest.BidRequest) string {
	q := url.Values{}
	q.Set("request_id", req.RequestID)
	q.Set("campaign_id", c.ID.String())
	q.Set("dest", c.DestinationURL)
	return s.trackingBaseURL + "/track/click?" + q.Encode()
}

func (s *Scorer) impressionURL(c *campaign.Campaign, req *bidrequest.BidRequest) string {
	q := url.Values{}
	q.Set("request_id", req.RequestID)
	q.Set("campaign_id", c.ID.String())
	return s.trackingBaseURL + "/track/impression?" + q.Encode()
}

// renderMarkup builds the ad snippet served to the widget: a tracked link
// around the creative plus the impression pixel.
func (s *Scorer) renderMarkup(c *campaign.Campaign, req *bidrequest.BidRequest) string {
	title := c.AdTitle
	if title == "" {
		title = c.Name
	}
	return fmt.Sprintf(
		`<div class="coreg-ad" data-campaign=%q><a href=%q>%s</a><img src=%q width="1" height="1" alt="" /></div>`,
		c.ID.String(),
		s.clickURL(c, req),
		html.EscapeString(title),
		s.impressionURL(c, req),
	)
}

package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
)

// CampaignBuilder builds test campaigns
type CampaignBuilder struct {
	c *campaign.Campaign
}

// NewCampaignBuilder creates a builder with sane defaults: active, broad
// targeting, a 0.05 base bid.
func NewCampaignBuilder() *CampaignBuilder {
	now := time.Now().UTC()
	return &CampaignBuilder{c: &campaign.Campaign{
		ID:             uuid.New(),
		Name:           "Test Campaign",
		BaseBid:        decimal.NewFromFloat(0.05),
		DestinationURL: "https://advertiser.example.com/landing",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}}
}

func (b *CampaignBuilder) WithID(id uuid.UUID) *CampaignBuilder {
	b.c.ID = id
	return b
}

func (b *CampaignBuilder) WithName(name string) *CampaignBuilder {
	b.c.Name = name
	return b
}

func (b *CampaignBuilder) WithBaseBid(amount float64) *CampaignBuilder {
	b.c.BaseBid = decimal.NewFromFloat(amount)
	return b
}

func (b *CampaignBuilder) WithDevice(device string) *CampaignBuilder {
	b.c.Targeting.Device = device
	return b
}

func (b *CampaignBuilder) WithStates(states string) *CampaignBuilder {
	b.c.Targeting.States = states
	return b
}

func (b *CampaignBuilder) WithQuestion(questionID string, accepted ...string) *CampaignBuilder {
	if b.c.Targeting.Questions == nil {
		b.c.Targeting.Questions = make(map[string][]string)
	}
	b.c.Targeting.Questions[questionID] = accepted
	return b
}

func (b *CampaignBuilder) WithDayParting(day string, hours ...int) *CampaignBuilder {
	if b.c.Targeting.DayParting == nil {
		b.c.Targeting.DayParting = make(map[string][]int)
	}
	b.c.Targeting.DayParting[day] = hours
	return b
}

func (b *CampaignBuilder) Inactive() *CampaignBuilder {
	b.c.Active = false
	return b
}

func (b *CampaignBuilder) Build() *campaign.Campaign {
	return b.c
}

// BidRequestBuilder builds test bid requests
type BidRequestBuilder struct {
	r *bidrequest.BidRequest
}

// NewBidRequestBuilder creates a builder with a mobile second-price request
// and a zero floor.
func NewBidRequestBuilder() *BidRequestBuilder {
	r := bidrequest.New("req_"+uuid.NewString(), "sess_"+uuid.NewString())
	r.DeviceType = bidrequest.DeviceMobile
	return &BidRequestBuilder{r: r}
}

func (b *BidRequestBuilder) WithRequestID(id string) *BidRequestBuilder {
	b.r.RequestID = id
	return b
}

func (b *BidRequestBuilder) WithDevice(device bidrequest.DeviceType) *BidRequestBuilder {
	b.r.DeviceType = device
	return b
}

func (b *BidRequestBuilder) WithGeo(country, region string) *BidRequestBuilder {
	b.r.Geo = &bidrequest.Geo{Country: country, Region: region}
	return b
}

func (b *BidRequestBuilder) WithResponse(questionID, answer string) *BidRequestBuilder {
	if b.r.Profile.Responses == nil {
		b.r.Profile.Responses = make(map[string]string)
	}
	b.r.Profile.Responses[questionID] = answer
	return b
}

func (b *BidRequestBuilder) WithFloorPrice(floor float64) *BidRequestBuilder {
	b.r.FloorPrice = decimal.NewFromFloat(floor)
	return b
}

func (b *BidRequestBuilder) WithTimeout(d time.Duration) *BidRequestBuilder {
	b.r.Timeout = d
	return b
}

func (b *BidRequestBuilder) Build() *bidrequest.BidRequest {
	return b.r
}

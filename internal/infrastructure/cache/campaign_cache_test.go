package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
	"github.com/coregmedia/rtb-exchange-backend/internal/testutil/fixtures"
)

// countingStore tracks how often the underlying store is consulted
type countingStore struct {
	campaigns []*campaign.Campaign
	calls     int
}

func (s *countingStore) ListActiveCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	s.calls++
	return s.campaigns, nil
}

func newCacheHarness(t *testing.T, campaigns []*campaign.Campaign) (*CampaignCache, *countingStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := &countingStore{campaigns: campaigns}
	return NewCampaignCache(store, client, 30*time.Second, zap.NewNop()), store, mr
}

func TestCampaignCache_ReadThrough(t *testing.T) {
	campaigns := []*campaign.Campaign{
		fixtures.NewCampaignBuilder().WithName("Insurance Leads").WithBaseBid(0.10).Build(),
		fixtures.NewCampaignBuilder().WithName("Solar Quotes").WithBaseBid(0.05).Build(),
	}
	cc, store, _ := newCacheHarness(t, campaigns)
	ctx := context.Background()

	first, err := cc.ListActiveCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, store.calls)

	second, err := cc.ListActiveCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 1, store.calls, "second read should be served from cache")

	// Order and content survive the cache round trip
	assert.Equal(t, campaigns[0].ID, second[0].ID)
	assert.Equal(t, campaigns[1].ID, second[1].ID)
	assert.True(t, second[0].BaseBid.Equal(decimal.RequireFromString("0.10")))
	assert.Equal(t, campaigns[0].Targeting.Device, second[0].Targeting.Device)
}

func TestCampaignCache_ExpiryFallsThrough(t *testing.T) {
	campaigns := []*campaign.Campaign{fixtures.NewCampaignBuilder().Build()}
	cc, store, mr := newCacheHarness(t, campaigns)
	ctx := context.Background()

	_, err := cc.ListActiveCampaigns(ctx)
	require.NoError(t, err)

	mr.FastForward(time.Minute)

	_, err = cc.ListActiveCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls, "expired entry should hit the store again")
}

func TestCampaignCache_Invalidate(t *testing.T) {
	campaigns := []*campaign.Campaign{fixtures.NewCampaignBuilder().Build()}
	cc, store, _ := newCacheHarness(t, campaigns)
	ctx := context.Background()

	_, err := cc.ListActiveCampaigns(ctx)
	require.NoError(t, err)
	require.NoError(t, cc.Invalidate(ctx))

	_, err = cc.ListActiveCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestCampaignCache_RedisDownDegradesToStore(t *testing.T) {
	campaigns := []*campaign.Campaign{fixtures.NewCampaignBuilder().Build()}
	cc, store, mr := newCacheHarness(t, campaigns)
	ctx := context.Background()

	mr.Close()

	got, err := cc.ListActiveCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, store.calls)
}

func TestCampaignCache_CorruptEntryDiscarded(t *testing.T) {
	campaigns := []*campaign.Campaign{fixtures.NewCampaignBuilder().Build()}
	cc, store, mr := newCacheHarness(t, campaigns)
	ctx := context.Background()

	require.NoError(t, mr.Set(campaignListKey, "{not json"))

	got, err := cc.ListActiveCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, store.calls)
}

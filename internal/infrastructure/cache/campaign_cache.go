package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

const campaignListKey = "campaigns:active"

// CampaignCache decorates a CampaignStore with a Redis read-through cache.
// The full active list is cached as one entry so a cache hit serves an
// auction without touching Postgres. Order is preserved, which keeps the
// auction tie-break stable across cache hits and misses.
type CampaignCache struct {
	store  auction.CampaignStore
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCampaignCache wraps store with a Redis cache holding entries for ttl
func NewCampaignCache(store auction.CampaignStore, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CampaignCache {
	return &CampaignCache{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// ListActiveCampaigns returns the cached active list, falling through to the
// underlying store on miss or on any Redis failure. A Redis outage degrades
// to direct reads rather than failing auctions.
func (c *CampaignCache) ListActiveCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	data, err := c.client.Get(ctx, campaignListKey).Bytes()
	if err == nil {
		var campaigns []*campaign.Campaign
		if err := json.Unmarshal(data, &campaigns); err == nil {
			return campaigns, nil
		}
		c.logger.Warn("discarding undecodable campaign cache entry", zap.Error(err))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("campaign cache read failed, falling through", zap.Error(err))
	}

	campaigns, err := c.store.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(campaigns); err == nil {
		if err := c.client.Set(ctx, campaignListKey, data, c.ttl).Err(); err != nil {
			c.logger.Warn("campaign cache write failed", zap.Error(err))
		}
	}

	return campaigns, nil
}

// Invalidate drops the cached list so the next auction reads fresh campaign
// state. Call after any campaign create, update, or deactivation.
func (c *CampaignCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, campaignListKey).Err(); err != nil {
		return fmt.Errorf("campaign cache invalidation failed: %w", err)
	}
	return nil
}

package auction_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/errors"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
	"github.com/coregmedia/rtb-exchange-backend/internal/testutil/mocks"
)

type recorderHarness struct {
	recorder *auction.Recorder
	auctions *mocks.AuctionRepo
	events   *mocks.TrackingRepo
	metrics  *mocks.Metrics
}

func newRecorderHarness(t *testing.T, requestID string) *recorderHarness {
	t.Helper()
	h := &recorderHarness{
		auctions: mocks.NewAuctionRepo(),
		events:   &mocks.TrackingRepo{},
		metrics:  mocks.NewMetrics(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.recorder = auction.NewRecorder(h.auctions, h.events, h.metrics, logger)

	outcome := bid.NewAuction(requestID, 1, 5*time.Millisecond)
	require.NoError(t, h.auctions.Create(context.Background(), outcome))
	return h
}

func TestRecorder_RecordImpression(t *testing.T) {
	ctx := context.Background()
	campaignID := uuid.New()
	h := newRecorderHarness(t, "req_1")

	require.NoError(t, h.recorder.RecordImpression(ctx, "req_1", campaignID))

	outcome, err := h.auctions.GetByRequestID(ctx, "req_1")
	require.NoError(t, err)
	assert.True(t, outcome.Served)
	require.Len(t, h.events.Impressions, 1)
	assert.Equal(t, "req_1", h.events.Impressions[0].RequestID)
	assert.Equal(t, campaignID, h.events.Impressions[0].CampaignID)
}

func TestRecorder_RecordClick_Idempotent(t *testing.T) {
	ctx := context.Background()
	campaignID := uuid.New()
	h := newRecorderHarness(t, "req_1")

	require.NoError(t, h.recorder.RecordClick(ctx, "req_1", campaignID))
	require.NoError(t, h.recorder.RecordClick(ctx, "req_1", campaignID))

	outcome, err := h.auctions.GetByRequestID(ctx, "req_1")
	require.NoError(t, err)
	assert.True(t, outcome.Clicked)

	// duplicate arrivals append events under distinct click IDs without
	// corrupting the auction flags
	require.Len(t, h.events.Clicks, 2)
	assert.NotEqual(t, h.events.Clicks[0].ClickID, h.events.Clicks[1].ClickID)
}

func TestRecorder_RecordConversion_AfterClick(t *testing.T) {
	ctx := context.Background()
	campaignID := uuid.New()
	h := newRecorderHarness(t, "req_1")

	require.NoError(t, h.recorder.RecordClick(ctx, "req_1", campaignID))
	require.NoError(t, h.recorder.RecordConversion(ctx, "req_1", campaignID, decimal.NewFromFloat(25.00)))

	outcome, err := h.auctions.GetByRequestID(ctx, "req_1")
	require.NoError(t, err)
	assert.True(t, outcome.Converted)
	assert.True(t, outcome.Clicked, "conversion must not clear the clicked flag")
	assert.True(t, outcome.Revenue.Equal(decimal.NewFromFloat(25.00)))
}

func TestRecorder_RecordConversion_RevenueOverwrites(t *testing.T) {
	ctx := context.Background()
	campaignID := uuid.New()
	h := newRecorderHarness(t, "req_1")

	require.NoError(t, h.recorder.RecordConversion(ctx, "req_1", campaignID, decimal.NewFromFloat(10.00)))
	require.NoError(t, h.recorder.RecordConversion(ctx, "req_1", campaignID, decimal.NewFromFloat(25.00)))

	outcome, err := h.auctions.GetByRequestID(ctx, "req_1")
	require.NoError(t, err)
	assert.True(t, outcome.Revenue.Equal(decimal.NewFromFloat(25.00)),
		"revenue overwrites, it does not accumulate")
}

func TestRecorder_UnknownAuction(t *testing.T) {
	h := newRecorderHarness(t, "req_1")

	err := h.recorder.RecordImpression(context.Background(), "req_unknown", uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

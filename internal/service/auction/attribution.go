package auction

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recorder applies impression, click, and conversion events to auction
// outcomes. Events arrive from tracking pixels and postbacks, so each
// operation tolerates duplicate and out-of-order delivery: flags are
// last-write-wins and revenue is an overwrite, not an accumulation.
type Recorder struct {
	auctions AuctionRepository
	events   TrackingRepository
	metrics  MetricsCollector
	logger   *slog.Logger
}

// NewRecorder creates an attribution recorder
func NewRecorder(auctions AuctionRepository, events TrackingRepository, metrics MetricsCollector, logger *slog.Logger) *Recorder {
	return &Recorder{
		auctions: auctions,
		events:   events,
		metrics:  metrics,
		logger:   logger,
	}
}

// RecordImpression marks the auction as served and records an impression
// event keyed by the request ID.
func (r *Recorder) RecordImpression(ctx context.Context, requestID string, campaignID uuid.UUID) error {
	served := true
	if _, err := r.auctions.UpdateResult(ctx, requestID, ResultUpdate{Served: &served}); err != nil {
		return err
	}
	if err := r.events.CreateImpression(ctx, requestID, campaignID); err != nil {
		return err
	}

	r.metrics.RecordTrackingEvent(ctx, "impression")
	r.logger.DebugContext(ctx, "impression recorded",
		slog.String("request_id", requestID),
		slog.String("campaign_id", campaignID.String()),
	)
	return nil
}

// RecordClick marks the auction as clicked and records a click event under
// a freshly generated click ID.
func (r *Recorder) RecordClick(ctx context.Context, requestID string, campaignID uuid.UUID) error {
	clicked := true
	if _, err := r.auctions.UpdateResult(ctx, requestID, ResultUpdate{Clicked: &clicked}); err != nil {
		return err
	}

	clickID := uuid.New()
	if err := r.events.CreateClick(ctx, clickID, requestID, campaignID); err != nil {
		return err
	}

	r.metrics.RecordTrackingEvent(ctx, "click")
	r.logger.DebugContext(ctx, "click recorded",
		slog.String("request_id", requestID),
		slog.String("campaign_id", campaignID.String()),
		slog.String("click_id", clickID.String()),
	)
	return nil
}

// RecordConversion marks the auction as converted and overwrites its
// revenue with the reported amount.
func (r *Recorder) RecordConversion(ctx context.Context, requestID string, campaignID uuid.UUID, revenue decimal.Decimal) error {
	converted := true
	if _, err := r.auctions.UpdateResult(ctx, requestID, ResultUpdate{
		Converted: &converted,
		Revenue:   &revenue,
	}); err != nil {
		return err
	}

	r.metrics.RecordTrackingEvent(ctx, "conversion")
	r.logger.InfoContext(ctx, "conversion recorded",
		slog.String("request_id", requestID),
		slog.String("campaign_id", campaignID.String()),
		slog.String("revenue", revenue.String()),
	)
	return nil
}

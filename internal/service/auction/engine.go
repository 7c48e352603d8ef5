package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/errors"
)

// Engine runs scored auctions. Each request is processed by a single run
// with no shared mutable state between concurrent auctions, so engines are
// safe for concurrent use.
type Engine struct {
	campaigns CampaignStore
	requests  BidRequestRepository
	bids      BidRepository
	auctions  AuctionRepository
	scorer    *Scorer
	metrics   MetricsCollector
	logger    *slog.Logger

	now func() time.Time
}

// NewEngine creates an auction engine with its collaborators injected
func NewEngine(
	campaigns CampaignStore,
	requests BidRequestRepository,
	bids BidRepository,
	auctions AuctionRepository,
	scorer *Scorer,
	metrics MetricsCollector,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		campaigns: campaigns,
		requests:  requests,
		bids:      bids,
		auctions:  auctions,
		scorer:    scorer,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// RunAuction executes one auction for a previously created bid request.
//
// The flow is linear: look up the request, gather eligible campaigns, score
// them under the request's timeout budget, persist all bids, select the
// winner among bids clearing the floor, compute the second price, persist
// the auction outcome, then mark bid outcomes. Bids are persisted before
// the auction record so a crash mid-run leaves only orphaned bid rows, never
// an auction pointing at a winner that was not durably recorded.
//
// A missing bid request is fatal; zero eligible campaigns or zero bids
// clearing the floor are normal empty-result auctions.
func (e *Engine) RunAuction(ctx context.Context, requestID string) (*Result, error) {
	start := e.now()

	req, err := e.requests.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NewNotFoundError("bid request")
	}

	candidates, err := e.campaigns.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, errors.NewExternalError("campaign store", "listing active campaigns failed").WithCause(err)
	}

	bids := e.generateBids(ctx, req, candidates, start)

	if len(bids) > 0 {
		if err := e.bids.CreateBatch(ctx, bids); err != nil {
			return nil, errors.NewInternalError("persisting bids failed").WithCause(err)
		}
	}

	winner := selectWinner(bids, req.FloorPrice)
	secondPrice := computeSecondPrice(bids, winner)

	duration := e.now().Sub(start)
	outcome := bid.NewAuction(requestID, len(bids), duration)
	if winner != nil {
		outcome.WinningBidID = &winner.ID
		outcome.WinningPrice = winner.BidPrice
	}
	outcome.SecondPrice = secondPrice

	if err := e.auctions.Create(ctx, outcome); err != nil {
		return nil, errors.NewInternalError("persisting auction failed").WithCause(err)
	}

	e.markOutcomes(ctx, bids, winner)

	e.metrics.RecordAuction(ctx, winner != nil)
	e.metrics.RecordAuctionDuration(ctx, duration)
	e.metrics.RecordBidsGenerated(ctx, len(bids))
	if winner != nil {
		e.metrics.RecordWinningPrice(ctx, winner.BidPrice)
	}

	e.logger.InfoContext(ctx, "auction completed",
		slog.String("request_id", requestID),
		slog.Int("total_bids", len(bids)),
		slog.Bool("won", winner != nil),
		slog.Duration("duration", duration),
	)

	return &Result{
		RequestID:  requestID,
		WinningBid: winner,
		TotalBids:  len(bids),
		Duration:   duration,
	}, nil
}

// generateBids filters and scores candidates under the request's soft
// timeout budget. Scoring is pure and fast, so the deadline is a safeguard:
// campaigns reached after it are skipped, not preempted.
func (e *Engine) generateBids(ctx context.Context, req *bidrequest.BidRequest, candidates []*campaign.Campaign, start time.Time) []*bid.Bid {
	deadline := start.Add(req.Timeout)
	bids := make([]*bid.Bid, 0, len(candidates))

	for i, c := range candidates {
		if e.now().After(deadline) {
			e.logger.WarnContext(ctx, "auction timeout budget exhausted, skipping remaining campaigns",
				slog.String("request_id", req.RequestID),
				slog.Int("skipped", len(candidates)-i),
			)
			break
		}
		if !IsEligible(c, req, start) {
			continue
		}
		if b := e.scorer.Score(c, req); b != nil {
			bids = append(bids, b)
		}
	}
	return bids
}

// selectWinner returns the highest-scoring bid whose price clears the
// floor. Ties go to the first bid encountered, which follows campaign-store
// iteration order.
func selectWinner(bids []*bid.Bid, floor decimal.Decimal) *bid.Bid {
	var winner *bid.Bid
	for _, b := range bids {
		if b.BidPrice.LessThan(floor) {
			continue
		}
		if winner == nil || b.Score.GreaterThan(winner.Score) {
			winner = b
		}
	}
	return winner
}

// computeSecondPrice returns the price of the highest-scoring bid excluding
// the winner. It is absent when fewer than two bids exist.
func computeSecondPrice(bids []*bid.Bid, winner *bid.Bid) *decimal.Decimal {
	if len(bids) < 2 {
		return nil
	}
	var runnerUp *bid.Bid
	for _, b := range bids {
		if b == winner {
			continue
		}
		if runnerUp == nil || b.Score.GreaterThan(runnerUp.Score) {
			runnerUp = b
		}
	}
	if runnerUp == nil {
		return nil
	}
	price := runnerUp.BidPrice
	return &price
}

// markOutcomes flags the winner and losers. The auction record is already
// durable at this point, so individual update failures are logged and
// skipped rather than failing the run.
func (e *Engine) markOutcomes(ctx context.Context, bids []*bid.Bid, winner *bid.Bid) {
	for _, b := range bids {
		if b == winner {
			b.MarkWon()
		} else {
			b.MarkLost()
		}
		if err := e.bids.UpdateOutcome(ctx, b); err != nil {
			e.logger.WarnContext(ctx, "failed to update bid outcome",
				slog.String("bid_id", b.ID.String()),
				slog.String("request_id", b.RequestID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// SelectCampaign implements Selector by running the eligibility and scoring
// pipeline in memory and returning the top campaign, without persisting
// auction state. The full persisted auction path is RunAuction.
func (e *Engine) SelectCampaign(ctx context.Context, req *bidrequest.BidRequest) (*campaign.Campaign, error) {
	candidates, err := e.campaigns.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, errors.NewExternalError("campaign store", "listing active campaigns failed").WithCause(err)
	}

	now := e.now()
	var best *campaign.Campaign
	var bestScore decimal.Decimal
	for _, c := range candidates {
		if !IsEligible(c, req, now) {
			continue
		}
		b := e.scorer.Score(c, req)
		if b == nil || b.BidPrice.LessThan(req.FloorPrice) {
			continue
		}
		if best == nil || b.Score.GreaterThan(bestScore) {
			best = c
			bestScore = b.Score
		}
	}
	return best, nil
}

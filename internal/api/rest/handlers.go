package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	domainErrors "github.com/coregmedia/rtb-exchange-backend/internal/domain/errors"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

// transparentGIF is a 1x1 transparent pixel served from the impression
// endpoint
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the ad-serving and tracking endpoints
type Handler struct {
	svc    *auction.Service
	logger *slog.Logger
}

// NewHandler creates a REST handler around the auction service
func NewHandler(svc *auction.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// adResponse is the serving payload returned to the widget. A nil ad means
// no campaign cleared the auction and the widget shows its fallback.
type adResponse struct {
	RequestID string      `json:"request_id"`
	TotalBids int         `json:"total_bids"`
	Ad        *adCreative `json:"ad,omitempty"`
}

type adCreative struct {
	CampaignID    string `json:"campaign_id"`
	AdMarkup      string `json:"ad_markup"`
	ClickURL      string `json:"click_url"`
	ImpressionURL string `json:"impression_url"`
}

// handleAdRequest runs an auction for one ad opportunity.
// POST /api/v1/ad-requests
func (h *Handler) handleAdRequest(w http.ResponseWriter, r *http.Request) {
	var rc auction.AdRequestContext
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		writeError(w, domainErrors.NewValidationError("INVALID_JSON", "request body must be valid JSON").WithCause(err))
		return
	}
	if rc.IPAddress == "" {
		rc.IPAddress = clientIP(r)
	}
	if rc.UserAgent == "" {
		rc.UserAgent = r.UserAgent()
	}

	result, err := h.svc.ServeAd(r.Context(), &rc)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ad request failed", slog.Any("error", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAdResponse(result))
}

// handleGetAuction returns the auction outcome for a request.
// GET /api/v1/auctions/{requestID}
func (h *Handler) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestID")
	a, err := h.svc.GetAuction(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionResponse(a))
}

// handleImpression records an impression and answers with a tracking pixel.
// The pixel is returned even when recording fails: a broken ad slot is worse
// than a lost event.
// GET /track/impression?request_id=...&campaign_id=...
func (h *Handler) handleImpression(w http.ResponseWriter, r *http.Request) {
	requestID, campaignID, err := trackingParams(r)
	if err == nil {
		err = h.svc.Recorder().RecordImpression(r.Context(), requestID, campaignID)
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "impression not recorded",
			slog.String("request_id", requestID),
			slog.Any("error", err),
		)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(transparentGIF)
}

// handleClick records a click and redirects to the campaign destination. The
// redirect happens even when recording fails so the visitor always lands.
// GET /track/click?request_id=...&campaign_id=...&dest=...
func (h *Handler) handleClick(w http.ResponseWriter, r *http.Request) {
	dest := r.URL.Query().Get("dest")
	if !isRedirectable(dest) {
		writeError(w, domainErrors.NewValidationError("INVALID_DESTINATION", "dest must be an absolute http or https URL"))
		return
	}

	requestID, campaignID, err := trackingParams(r)
	if err == nil {
		err = h.svc.Recorder().RecordClick(r.Context(), requestID, campaignID)
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "click not recorded",
			slog.String("request_id", requestID),
			slog.Any("error", err),
		)
	}

	http.Redirect(w, r, dest, http.StatusFound)
}

// handleConversion records a conversion postback with its revenue.
// GET /track/conversion?request_id=...&campaign_id=...&revenue=...
func (h *Handler) handleConversion(w http.ResponseWriter, r *http.Request) {
	requestID, campaignID, err := trackingParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	revenue, err := decimal.NewFromString(r.URL.Query().Get("revenue"))
	if err != nil || revenue.IsNegative() {
		writeError(w, domainErrors.NewValidationError("INVALID_REVENUE", "revenue must be a non-negative decimal"))
		return
	}

	if err := h.svc.Recorder().RecordConversion(r.Context(), requestID, campaignID, revenue); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "recorded",
		"request_id": requestID,
		"revenue":    revenue.StringFixed(2),
	})
}

// auctionResponse is the reporting view of an auction outcome
type auctionResponse struct {
	RequestID    string  `json:"request_id"`
	WinningBidID *string `json:"winning_bid_id,omitempty"`
	WinningPrice string  `json:"winning_price"`
	SecondPrice  *string `json:"second_price,omitempty"`
	TotalBids    int     `json:"total_bids"`
	DurationMS   int64   `json:"duration_ms"`
	Served       bool    `json:"served"`
	Clicked      bool    `json:"clicked"`
	Converted    bool    `json:"converted"`
	Revenue      string  `json:"revenue"`
}

func toAuctionResponse(a *bid.Auction) auctionResponse {
	resp := auctionResponse{
		RequestID:    a.RequestID,
		WinningPrice: a.WinningPrice.String(),
		TotalBids:    a.TotalBids,
		DurationMS:   a.DurationMS,
		Served:       a.Served,
		Clicked:      a.Clicked,
		Converted:    a.Converted,
		Revenue:      a.Revenue.String(),
	}
	if a.WinningBidID != nil {
		id := a.WinningBidID.String()
		resp.WinningBidID = &id
	}
	if a.SecondPrice != nil {
		price := a.SecondPrice.String()
		resp.SecondPrice = &price
	}
	return resp
}

func toAdResponse(result *auction.ServeResult) adResponse {
	resp := adResponse{
		RequestID: result.RequestID,
		TotalBids: result.TotalBids,
	}
	if result.WinningBid != nil {
		resp.Ad = &adCreative{
			CampaignID:    result.WinningBid.CampaignID.String(),
			AdMarkup:      result.WinningBid.AdMarkup,
			ClickURL:      result.WinningBid.ClickURL,
			ImpressionURL: result.WinningBid.ImpressionURL,
		}
	}
	return resp
}

// trackingParams extracts and validates the common tracking query params
func trackingParams(r *http.Request) (string, uuid.UUID, error) {
	q := r.URL.Query()
	requestID := q.Get("request_id")
	if requestID == "" {
		return "", uuid.Nil, domainErrors.NewValidationError("MISSING_REQUEST_ID", "request_id is required")
	}
	campaignID, err := uuid.Parse(q.Get("campaign_id"))
	if err != nil {
		return requestID, uuid.Nil, domainErrors.NewValidationError("INVALID_CAMPAIGN_ID", "campaign_id must be a UUID")
	}
	return requestID, campaignID, nil
}

// isRedirectable rejects open-redirect attempts via schemas like javascript:
func isRedirectable(dest string) bool {
	u, err := url.Parse(dest)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorResponse is the wire format for failures
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := domainErrors.GetStatusCode(err)
	code := "INTERNAL_ERROR"
	message := "An internal error occurred"

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}

	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// clientIP resolves the originating address behind proxies
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

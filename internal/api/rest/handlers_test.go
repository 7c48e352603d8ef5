package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	"github.com/coregmedia/rtb-exchange-backend/internal/infrastructure/config"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
	"github.com/coregmedia/rtb-exchange-backend/internal/testutil/fixtures"
	"github.com/coregmedia/rtb-exchange-backend/internal/testutil/mocks"
)

type serverHarness struct {
	server   *httptest.Server
	store    *mocks.CampaignStore
	requests *mocks.BidRequestRepo
	bids     *mocks.BidRepo
	auctions *mocks.AuctionRepo
	tracking *mocks.TrackingRepo
}

func newServerHarness(t *testing.T) *serverHarness {
	t.Helper()

	h := &serverHarness{
		store:    &mocks.CampaignStore{},
		requests: mocks.NewBidRequestRepo(),
		bids:     mocks.NewBidRepo(),
		auctions: mocks.NewAuctionRepo(),
		tracking: &mocks.TrackingRepo{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := mocks.NewMetrics()

	scorer := auction.NewScorer("https://serve.example.com")
	engine := auction.NewEngine(h.store, h.requests, h.bids, h.auctions, scorer, metrics, logger)
	recorder := auction.NewRecorder(h.auctions, h.tracking, metrics, logger)
	svc := auction.NewService(engine, h.requests, recorder, logger, decimal.NewFromFloat(0.01), 100*time.Millisecond)

	cfg := &config.Config{
		Version:     "test",
		Environment: "test",
		Server: config.ServerConfig{
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Tracking: config.TrackingConfig{RequestsPerSecond: 1000, BurstSize: 1000},
	}

	srv := NewServer(cfg, svc, logger, nil, nil)
	h.server = httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(h.server.Close)
	return h
}

func (h *serverHarness) seedAuction(t *testing.T, requestID string) uuid.UUID {
	t.Helper()
	campaignID := uuid.New()
	b := bid.New(requestID, campaignID, decimal.NewFromFloat(0.10), decimal.NewFromFloat(0.10))
	a := bid.NewAuction(requestID, 1, 5*time.Millisecond)
	a.WinningBidID = &b.ID
	a.WinningPrice = b.BidPrice
	require.NoError(t, h.auctions.Create(context.Background(), a))
	return campaignID
}

func TestHandleAdRequest_ServesWinningAd(t *testing.T) {
	h := newServerHarness(t)
	h.store.Campaigns = append(h.store.Campaigns,
		fixtures.NewCampaignBuilder().WithName("Insurance Leads").WithBaseBid(0.10).Build(),
	)

	body := `{"session_id":"sess_1","device_type":"mobile"}`
	resp, err := http.Post(h.server.URL+"/api/v1/ad-requests", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		RequestID string `json:"request_id"`
		TotalBids int    `json:"total_bids"`
		Ad        *struct {
			CampaignID    string `json:"campaign_id"`
			AdMarkup      string `json:"ad_markup"`
			ClickURL      string `json:"click_url"`
			ImpressionURL string `json:"impression_url"`
		} `json:"ad"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))

	assert.True(t, strings.HasPrefix(payload.RequestID, "req_"))
	assert.Equal(t, 1, payload.TotalBids)
	require.NotNil(t, payload.Ad)
	assert.Contains(t, payload.Ad.AdMarkup, "coreg-ad")
	assert.Contains(t, payload.Ad.ClickURL, "/track/click")
	assert.Contains(t, payload.Ad.ImpressionURL, "/track/impression")
}

func TestHandleAdRequest_NoCampaignsReturnsEmptyAd(t *testing.T) {
	h := newServerHarness(t)

	body := `{"session_id":"sess_1"}`
	resp, err := http.Post(h.server.URL+"/api/v1/ad-requests", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotContains(t, payload, "ad")
}

func TestHandleAdRequest_ValidationFailure(t *testing.T) {
	h := newServerHarness(t)

	// Missing session_id
	resp, err := http.Post(h.server.URL+"/api/v1/ad-requests", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "INVALID_AD_REQUEST", payload.Error.Code)
}

func TestHandleAdRequest_MalformedJSON(t *testing.T) {
	h := newServerHarness(t)

	resp, err := http.Post(h.server.URL+"/api/v1/ad-requests", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleGetAuction(t *testing.T) {
	h := newServerHarness(t)
	h.seedAuction(t, "req_abc")

	resp, err := http.Get(h.server.URL + "/api/v1/auctions/req_abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		RequestID    string `json:"request_id"`
		WinningPrice string `json:"winning_price"`
		TotalBids    int    `json:"total_bids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "req_abc", payload.RequestID)
	assert.Equal(t, "0.1", payload.WinningPrice)
	assert.Equal(t, 1, payload.TotalBids)
}

func TestHandleGetAuction_NotFound(t *testing.T) {
	h := newServerHarness(t)

	resp, err := http.Get(h.server.URL + "/api/v1/auctions/req_missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleImpression(t *testing.T) {
	h := newServerHarness(t)
	campaignID := h.seedAuction(t, "req_abc")

	resp, err := http.Get(h.server.URL + "/track/impression?request_id=req_abc&campaign_id=" + campaignID.String())
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))

	pixel, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, transparentGIF, pixel)

	a, err := h.auctions.GetByRequestID(context.Background(), "req_abc")
	require.NoError(t, err)
	assert.True(t, a.Served)
	assert.Len(t, h.tracking.Impressions, 1)
}

func TestHandleImpression_UnknownAuctionStillServesPixel(t *testing.T) {
	h := newServerHarness(t)

	resp, err := http.Get(h.server.URL + "/track/impression?request_id=req_missing&campaign_id=" + uuid.NewString())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))
	assert.Empty(t, h.tracking.Impressions)
}

func TestHandleClick_RedirectsToDestination(t *testing.T) {
	h := newServerHarness(t)
	campaignID := h.seedAuction(t, "req_abc")

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(h.server.URL +
		"/track/click?request_id=req_abc&campaign_id=" + campaignID.String() +
		"&dest=" + "https%3A%2F%2Fadvertiser.example.com%2Flanding")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://advertiser.example.com/landing", resp.Header.Get("Location"))

	a, err := h.auctions.GetByRequestID(context.Background(), "req_abc")
	require.NoError(t, err)
	assert.True(t, a.Clicked)
	assert.Len(t, h.tracking.Clicks, 1)
}

func TestHandleClick_RejectsNonHTTPDestination(t *testing.T) {
	h := newServerHarness(t)
	campaignID := h.seedAuction(t, "req_abc")

	resp, err := http.Get(h.server.URL +
		"/track/click?request_id=req_abc&campaign_id=" + campaignID.String() +
		"&dest=javascript%3Aalert(1)")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, h.tracking.Clicks)
}

func TestHandleConversion(t *testing.T) {
	h := newServerHarness(t)
	campaignID := h.seedAuction(t, "req_abc")

	resp, err := http.Get(h.server.URL +
		"/track/conversion?request_id=req_abc&campaign_id=" + campaignID.String() +
		"&revenue=25.00")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "recorded", payload["status"])
	assert.Equal(t, "25.00", payload["revenue"])

	a, err := h.auctions.GetByRequestID(context.Background(), "req_abc")
	require.NoError(t, err)
	assert.True(t, a.Converted)
	assert.True(t, a.Revenue.Equal(decimal.NewFromFloat(25.00)))
}

func TestHandleConversion_InvalidRevenue(t *testing.T) {
	h := newServerHarness(t)
	campaignID := h.seedAuction(t, "req_abc")

	for _, revenue := range []string{"", "abc", "-5"} {
		resp, err := http.Get(h.server.URL +
			"/track/conversion?request_id=req_abc&campaign_id=" + campaignID.String() +
			"&revenue=" + revenue)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "revenue %q", revenue)
	}
}

func TestHandleConversion_UnknownAuction(t *testing.T) {
	h := newServerHarness(t)

	resp, err := http.Get(h.server.URL +
		"/track/conversion?request_id=req_missing&campaign_id=" + uuid.NewString() +
		"&revenue=10")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	h := newServerHarness(t)

	resp, err := http.Get(h.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	live, err := http.Get(h.server.URL + "/healthz")
	require.NoError(t, err)
	defer live.Body.Close()
	assert.Equal(t, http.StatusOK, live.StatusCode)
}

func TestRequestIDHeaderPropagated(t *testing.T) {
	h := newServerHarness(t)

	req, err := http.NewRequest(http.MethodGet, h.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "caller-supplied-id")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "caller-supplied-id", resp.Header.Get("X-Request-ID"))
}

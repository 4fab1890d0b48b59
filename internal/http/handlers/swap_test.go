package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atlasgw/internal/config"
	"atlasgw/internal/upstream"
)

func swapConfig(baseURL string) *config.Config {
	return &config.Config{
		ZeroxAPIKey:  "zx-test-key",
		ZeroxBaseURL: baseURL,
		Fees: config.FeeSpec{
			Recipient:        "0xPLATFORM",
			Bps:              25,
			SurplusRecipient: "0xSURPLUS",
		},
		UpstreamTimeout: 5 * time.Second,
	}
}

func TestSwapPriceInjectsFees(t *testing.T) {
	var gotURL *url.URL
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL
		gotHeader = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"buyAmount":"123"}`))
	}))
	defer srv.Close()

	cfg := swapConfig(srv.URL)
	handler := SwapPrice(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodGet,
		"/v1/swap/price?chainId=1&sellToken=0xA&buyToken=0xB&sellAmount=1000", nil)
	handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), "body: %s", ctx.Response.Body())
	assert.Equal(t, `{"buyAmount":"123"}`, string(ctx.Response.Body()))

	require.NotNil(t, gotURL)
	assert.Equal(t, "/swap/allowance-holder/price", gotURL.Path)
	q := gotURL.Query()
	assert.Equal(t, "1", q.Get("chainId"))
	assert.Equal(t, "0xPLATFORM", q.Get("swapFeeRecipient"))
	assert.Equal(t, "25", q.Get("swapFeeBps"))
	assert.Equal(t, "0xSURPLUS", q.Get("tradeSurplusRecipient"))
	assert.Equal(t, "zx-test-key", gotHeader.Get("0x-api-key"))
	assert.Equal(t, "v2", gotHeader.Get("0x-version"))
}

func TestSwapQuoteAppendsToCallerFees(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := swapConfig(srv.URL)
	handler := SwapQuote(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodGet,
		"/v1/swap/quote?chainId=1&sellToken=0xA&buyToken=0xB&sellAmount=1000&taker=0xT"+
			"&swapFeeRecipient=0xCALLER&swapFeeBps=10", nil)
	handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), "body: %s", ctx.Response.Body())
	assert.Contains(t, gotQuery, "swapFeeRecipient=0xCALLER,0xPLATFORM")
	assert.Contains(t, gotQuery, "swapFeeBps=10,25")
}

func TestSwapQuoteRequiresTaker(t *testing.T) {
	cfg := swapConfig("http://unused")
	handler := SwapQuote(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodGet,
		"/v1/swap/quote?chainId=1&sellToken=0xA&buyToken=0xB&sellAmount=1000", nil)
	handler(ctx)

	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	code, msg := decodeError(t, ctx)
	assert.Equal(t, "invalid_request", code)
	assert.Contains(t, msg, "taker")
}

func TestSwapPriceMalformedCallerBps(t *testing.T) {
	cfg := swapConfig("http://unused")
	handler := SwapPrice(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodGet,
		"/v1/swap/price?chainId=1&sellToken=0xA&buyToken=0xB&sellAmount=1000"+
			"&swapFeeRecipient=0xC&swapFeeBps=lots", nil)
	handler(ctx)

	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	code, _ := decodeError(t, ctx)
	assert.Equal(t, "invalid_request", code)
}

func TestSwapRelaysUpstreamErrorVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"INSUFFICIENT_LIQUIDITY"}`))
	}))
	defer srv.Close()

	cfg := swapConfig(srv.URL)
	handler := SwapPrice(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodGet,
		"/v1/swap/price?chainId=1&sellToken=0xA&buyToken=0xB&sellAmount=1000", nil)
	handler(ctx)

	assert.Equal(t, http.StatusUnprocessableEntity, ctx.Response.StatusCode())
	assert.Equal(t, `{"name":"INSUFFICIENT_LIQUIDITY"}`, string(ctx.Response.Body()))
}

func TestSwapUpstreamUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := srv.URL
	srv.Close()

	cfg := swapConfig(deadURL)
	cfg.UpstreamTimeout = time.Second
	handler := SwapPrice(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodGet,
		"/v1/swap/price?chainId=1&sellToken=0xA&buyToken=0xB&sellAmount=1000", nil)
	handler(ctx)

	assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
	code, _ := decodeError(t, ctx)
	assert.Equal(t, "upstream_unreachable", code)
}

func TestSwapTradeAnalyticsPassesQueryThrough(t *testing.T) {
	var gotURL *url.URL
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL
		gotHeader = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"trades":[]}`))
	}))
	defer srv.Close()

	cfg := swapConfig(srv.URL)
	handler := SwapTradeAnalytics(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodGet,
		"/v1/swap/trade-analytics?chainId=1&transactionHash=0xabc", nil)
	handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), "body: %s", ctx.Response.Body())
	assert.Equal(t, `{"trades":[]}`, string(ctx.Response.Body()))

	require.NotNil(t, gotURL)
	assert.Equal(t, "/trade-analytics/swap", gotURL.Path)
	q := gotURL.Query()
	assert.Equal(t, "1", q.Get("chainId"))
	assert.Equal(t, "0xabc", q.Get("transactionHash"))
	assert.Empty(t, q.Get("swapFeeRecipient"), "analytics lookups must not carry fee fields")
	assert.Equal(t, "zx-test-key", gotHeader.Get("0x-api-key"))
	assert.Equal(t, "v2", gotHeader.Get("0x-version"))
}

func TestSwapTradeAnalyticsNoQuery(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := swapConfig(srv.URL)
	handler := SwapTradeAnalytics(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodGet, "/v1/swap/trade-analytics", nil)
	handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "/trade-analytics/swap", gotURI)
}

func TestSwapChainsCachesListing(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/swap/chains", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chains":[{"chainId":1}]}`))
	}))
	defer srv.Close()

	cfg := swapConfig(srv.URL)
	handler := SwapChains(upstream.New(cfg.UpstreamTimeout), cfg, testCache(t), zap.NewNop())

	for i := 0; i < 3; i++ {
		ctx := authedCtx(fasthttp.MethodGet, "/v1/swap/chains", nil)
		handler(ctx)
		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, `{"chains":[{"chainId":1}]}`, string(ctx.Response.Body()))
	}
	assert.Equal(t, 1, hits, "repeat listings must be served from cache")
}

func TestSwapSourcesDoesNotCacheErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/sources", r.URL.Path)
		http.Error(w, "upstream busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := swapConfig(srv.URL)
	handler := SwapSources(upstream.New(cfg.UpstreamTimeout), cfg, testCache(t), zap.NewNop())

	for i := 0; i < 2; i++ {
		ctx := authedCtx(fasthttp.MethodGet, "/v1/swap/sources", nil)
		handler(ctx)
		assert.Equal(t, http.StatusServiceUnavailable, ctx.Response.StatusCode())
	}
	assert.Equal(t, 2, hits, "error responses must not be cached")
}

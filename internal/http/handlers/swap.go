package handlers

import (
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atlasgw/internal/cache"
	"atlasgw/internal/config"
	"atlasgw/internal/http/respond"
	"atlasgw/internal/swap"
	"atlasgw/internal/upstream"
)

// SwapPrice proxies indicative price requests with the platform fee
// injected.
func SwapPrice(client *upstream.Client, cfg *config.Config, logger *zap.Logger) fasthttp.RequestHandler {
	return swapProxy(client, cfg, logger, "/swap/allowance-holder/price", swap.RequiredPriceParams)
}

// SwapQuote proxies firm quote requests with the platform fee injected.
func SwapQuote(client *upstream.Client, cfg *config.Config, logger *zap.Logger) fasthttp.RequestHandler {
	return swapProxy(client, cfg, logger, "/swap/allowance-holder/quote", swap.RequiredQuoteParams)
}

func swapProxy(client *upstream.Client, cfg *config.Config, logger *zap.Logger, path string, required []string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAuth(ctx); !ok {
			return
		}

		params := collectQueryParams(ctx)
		if err := swap.ValidateRequired(params, required); err != nil {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, err.Error())
			return
		}
		composed, err := swap.Compose(params, cfg.Fees)
		if err != nil {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, err.Error())
			return
		}

		url := cfg.ZeroxBaseURL + path + "?" + swap.EncodeQuery(composed)
		resp, err := client.Get(url, zeroxHeaders(cfg))
		if err != nil {
			relaySwapError(ctx, logger, path, err)
			return
		}
		relay(ctx, resp)
	}
}

// SwapTradeAnalytics relays per-trade analytics lookups. Caller query
// parameters pass through untouched: analytics queries describe a past
// trade, so no fee fields are injected, and results are per-query, so
// nothing is cached.
func SwapTradeAnalytics(client *upstream.Client, cfg *config.Config, logger *zap.Logger) fasthttp.RequestHandler {
	const path = "/trade-analytics/swap"
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAuth(ctx); !ok {
			return
		}

		url := cfg.ZeroxBaseURL + path
		if params := collectQueryParams(ctx); len(params) > 0 {
			url += "?" + swap.EncodeQuery(params)
		}
		resp, err := client.Get(url, zeroxHeaders(cfg))
		if err != nil {
			relaySwapError(ctx, logger, path, err)
			return
		}
		relay(ctx, resp)
	}
}

// SwapChains relays the upstream's supported-chain listing. The listing is
// read-only and fee-free, so it is cached briefly for all callers.
func SwapChains(client *upstream.Client, cfg *config.Config, c *cache.Cache, logger *zap.Logger) fasthttp.RequestHandler {
	return swapListing(client, cfg, c, logger, "/swap/chains", "swap-chains")
}

// SwapSources relays the upstream's liquidity-source listing.
func SwapSources(client *upstream.Client, cfg *config.Config, c *cache.Cache, logger *zap.Logger) fasthttp.RequestHandler {
	return swapListing(client, cfg, c, logger, "/sources", "swap-sources")
}

func swapListing(client *upstream.Client, cfg *config.Config, c *cache.Cache, logger *zap.Logger, path, ns string) fasthttp.RequestHandler {
	key := cache.Key(ns, "v2")
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAuth(ctx); !ok {
			return
		}

		var cached upstream.Response
		if c.GetJSON(ctx, key, &cached) {
			relay(ctx, &cached)
			return
		}

		resp, err := client.Get(cfg.ZeroxBaseURL+path, zeroxHeaders(cfg))
		if err != nil {
			relaySwapError(ctx, logger, path, err)
			return
		}
		if resp.Status == fasthttp.StatusOK {
			c.SetJSON(ctx, key, resp, cache.ListingTTL)
		}
		relay(ctx, resp)
	}
}

func relaySwapError(ctx *fasthttp.RequestCtx, logger *zap.Logger, path string, err error) {
	var unreachable *upstream.ErrUnreachable
	if errors.As(err, &unreachable) {
		logger.Warn("swap upstream unreachable", zap.String("path", path), zap.Error(err))
		respond.Error(ctx, fasthttp.StatusBadGateway, respond.CodeUpstreamUnreachable,
			"upstream provider unreachable, retry later")
		return
	}
	logger.Error("swap relay failed", zap.String("path", path), zap.Error(err))
	respond.Internal(ctx)
}

func zeroxHeaders(cfg *config.Config) map[string]string {
	return map[string]string{
		"0x-api-key": cfg.ZeroxAPIKey,
		"0x-version": "v2",
	}
}

// collectQueryParams reads the query string in caller order, which
// url.Values would scramble. Order preservation is what makes fee
// composition deterministic.
func collectQueryParams(ctx *fasthttp.RequestCtx) []swap.Param {
	var params []swap.Param
	ctx.QueryArgs().VisitAll(func(key, value []byte) {
		params = append(params, swap.Param{Key: string(key), Value: string(value)})
	})
	return params
}

package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atlasgw/internal/config"
	"atlasgw/internal/upstream"
)

func TestChainList(t *testing.T) {
	handler := ChainList()

	ctx := authedCtx(fasthttp.MethodGet, "/rpc/chains", nil)
	handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var data struct {
		Chains []struct {
			Alias   string `json:"alias"`
			Network string `json:"network"`
		} `json:"chains"`
	}
	decodeData(t, ctx, &data)
	require.NotEmpty(t, data.Chains)

	byAlias := map[string]string{}
	for _, c := range data.Chains {
		byAlias[c.Alias] = c.Network
	}
	assert.Equal(t, "eth-mainnet", byAlias["eth"])
	assert.Equal(t, "eth-mainnet", byAlias["ethereum"])
	assert.Equal(t, "base-mainnet", byAlias["base"])
}

func TestRPCProxyUnknownAlias(t *testing.T) {
	cfg := &config.Config{AlchemyAPIKey: "key", UpstreamTimeout: time.Second}
	handler := RPCProxy(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodPost, "/rpc/dogecoin", []byte(`{}`))
	ctx.SetUserValue("alias", "dogecoin")
	handler(ctx)

	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	code, msg := decodeError(t, ctx)
	assert.Equal(t, "unknown_chain", code)
	assert.Contains(t, msg, `"dogecoin"`)
	assert.Contains(t, msg, "/rpc/chains")
}

func TestRPCProxyMissingAlias(t *testing.T) {
	cfg := &config.Config{AlchemyAPIKey: "key", UpstreamTimeout: time.Second}
	handler := RPCProxy(upstream.New(cfg.UpstreamTimeout), cfg, zap.NewNop())

	ctx := authedCtx(fasthttp.MethodPost, "/rpc/", []byte(`{}`))
	handler(ctx)

	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

package handlers

import (
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atlasgw/internal/chains"
	"atlasgw/internal/config"
	"atlasgw/internal/http/respond"
	"atlasgw/internal/upstream"
)

// ChainList returns every alias the RPC pass-through understands.
func ChainList() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		respond.Data(ctx, fasthttp.StatusOK, map[string]any{"chains": chains.List()})
	}
}

// RPCProxy forwards the request body verbatim to the resolved upstream
// network and relays the upstream's status code and body back unchanged.
// The body is an opaque byte buffer: the JSON-RPC wire protocol belongs to
// the provider and is not parsed or validated here.
func RPCProxy(client *upstream.Client, cfg *config.Config, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAuth(ctx); !ok {
			return
		}

		alias, _ := ctx.UserValue("alias").(string)
		def, ok := chains.Resolve(alias)
		if !ok {
			respond.Error(ctx, fasthttp.StatusNotFound, respond.CodeUnknownChain,
				fmt.Sprintf("unknown chain alias %q; GET /rpc/chains lists supported aliases", alias))
			return
		}

		url := chains.RPCURL(def, cfg.AlchemyAPIKey)
		resp, err := client.Post(url, "application/json", ctx.PostBody(), nil)
		if err != nil {
			var unreachable *upstream.ErrUnreachable
			if errors.As(err, &unreachable) {
				logger.Warn("rpc upstream unreachable", zap.String("network", def.Slug), zap.Error(err))
				respond.Error(ctx, fasthttp.StatusBadGateway, respond.CodeUpstreamUnreachable,
					"upstream provider unreachable, retry later")
				return
			}
			logger.Error("rpc relay failed", zap.String("network", def.Slug), zap.Error(err))
			respond.Internal(ctx)
			return
		}

		// Non-2xx upstream responses are relayed with their original
		// status so callers can apply provider-specific handling.
		relay(ctx, resp)
	}
}

// relay writes an upstream response through unchanged.
func relay(ctx *fasthttp.RequestCtx, resp *upstream.Response) {
	ctx.SetStatusCode(resp.Status)
	if resp.ContentType != "" {
		ctx.SetContentType(resp.ContentType)
	} else {
		ctx.SetContentType("application/json")
	}
	ctx.SetBody(resp.Body)
}

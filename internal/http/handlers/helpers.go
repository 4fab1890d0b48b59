package handlers

import (
	"github.com/valyala/fasthttp"

	httpctx "atlasgw/internal/http/ctx"
	"atlasgw/internal/http/respond"
)

// MustAuth returns the verified identity from context, or sends 401 and
// returns (nil, false). Handlers behind CredentialAuth should never hit
// the failure path; this is the backstop for wiring mistakes.
func MustAuth(ctx *fasthttp.RequestCtx) (*httpctx.Auth, bool) {
	identity, ok := httpctx.AuthFromCtx(ctx)
	if !ok {
		respond.Unauthorized(ctx)
		return nil, false
	}
	return identity, true
}

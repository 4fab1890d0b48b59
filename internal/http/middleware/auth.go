package middleware

import (
	"bytes"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atlasgw/internal/auth"
	"atlasgw/internal/cache"
	"atlasgw/internal/db"
	httpctx "atlasgw/internal/http/ctx"
	"atlasgw/internal/http/respond"
)

// HeaderKey is the dedicated credential header. The standard Authorization
// header with a Bearer prefix is accepted as an alternative.
const HeaderKey = "X-Atlas-Key"

// CredentialFinder is the slice of the credential store the verifier needs.
type CredentialFinder interface {
	FindByFingerprint(fingerprint string) (*db.Credential, error)
	TouchLastUsed(id string) error
}

// CredentialAuth verifies the caller's token and attaches the resulting
// identity to the request context. Verified entries are cached briefly so
// hot callers do not hit the store on every request; revocation deletes the
// cache entry. Auth failures are deliberately uniform (no oracle about
// which check failed); store unavailability is reported as a retryable
// dependency failure instead, so callers can tell "try a different key"
// from "retry later".
func CredentialAuth(store CredentialFinder, c *cache.Cache, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			token := extractToken(ctx)
			if !auth.WellFormed(token) {
				respond.Unauthorized(ctx)
				return
			}

			fp := auth.Fingerprint(token)
			cacheKey := cache.Key("auth", fp)

			var cached httpctx.Auth
			if c.GetJSON(ctx, cacheKey, &cached) {
				httpctx.SetAuth(ctx, &cached)
				next(ctx)
				return
			}

			cred, err := store.FindByFingerprint(fp)
			if errors.Is(err, db.ErrNotFound) {
				respond.Unauthorized(ctx)
				return
			}
			if err != nil {
				logger.Error("credential lookup failed", zap.Error(err))
				respond.Internal(ctx)
				return
			}
			if !auth.VerifySecret(cred.SecretHash, token) {
				respond.Unauthorized(ctx)
				return
			}

			identity := &httpctx.Auth{PrincipalID: cred.PrincipalID, CredentialID: cred.ID}
			c.SetJSON(ctx, cacheKey, identity, cache.AuthTTL)

			credID := cred.ID
			go func() {
				if err := store.TouchLastUsed(credID); err != nil {
					logger.Warn("last-used touch failed", zap.String("credential_id", credID), zap.Error(err))
				}
			}()

			httpctx.SetAuth(ctx, identity)
			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	if v := ctx.Request.Header.Peek(HeaderKey); len(v) > 0 {
		return strings.TrimSpace(string(v))
	}

	authHeader := ctx.Request.Header.Peek("Authorization")
	const prefix = "Bearer "
	if bytes.HasPrefix(authHeader, []byte(prefix)) {
		return strings.TrimSpace(string(authHeader[len(prefix):]))
	}
	return ""
}

package ctx

import (
	"github.com/valyala/fasthttp"
)

const authKey = "auth"

// Auth is the verified identity attached to a request after credential
// verification. It authorizes access to the named principal's resources
// only — handlers must never use it to reach another principal's data.
type Auth struct {
	PrincipalID  string `json:"principal_id"`
	CredentialID string `json:"credential_id"`
}

func SetAuth(ctx *fasthttp.RequestCtx, a *Auth) {
	ctx.SetUserValue(authKey, a)
}

func AuthFromCtx(ctx *fasthttp.RequestCtx) (*Auth, bool) {
	v := ctx.UserValue(authKey)
	if v == nil {
		return nil, false
	}
	a, ok := v.(*Auth)
	return a, ok && a != nil
}

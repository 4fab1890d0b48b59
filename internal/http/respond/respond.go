// Package respond writes the gateway's discriminated response envelope.
// Every endpoint returns either {"success":true,"data":...} or
// {"success":false,"error":{"code":...,"message":...}} with a
// machine-readable code distinct from the human message.
package respond

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// Machine-readable error codes.
const (
	CodeUnauthorized        = "unauthorized"
	CodeInvalidRequest      = "invalid_request"
	CodeUnknownChain        = "unknown_chain"
	CodeNotFound            = "not_found"
	CodeUpstreamError       = "upstream_error"
	CodeUpstreamUnreachable = "upstream_unreachable"
	CodeInternal            = "internal_error"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *errorObj `json:"error,omitempty"`
}

type errorObj struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Data writes a success envelope with the given HTTP status.
func Data(ctx *fasthttp.RequestCtx, status int, data any) {
	writeJSON(ctx, status, envelope{Success: true, Data: data})
}

// Error writes an error envelope.
func Error(ctx *fasthttp.RequestCtx, status int, code, message string) {
	writeJSON(ctx, status, envelope{Success: false, Error: &errorObj{Code: code, Message: message}})
}

// Unauthorized writes the generic auth failure. The message is deliberately
// uniform so callers cannot tell which part of the check failed.
func Unauthorized(ctx *fasthttp.RequestCtx) {
	Error(ctx, fasthttp.StatusUnauthorized, CodeUnauthorized, "invalid or missing credential")
}

// Internal writes the generic internal failure; detail stays in server logs.
func Internal(ctx *fasthttp.RequestCtx) {
	Error(ctx, fasthttp.StatusServiceUnavailable, CodeInternal, "service temporarily unavailable, retry later")
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body envelope) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	enc, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"success":false,"error":{"code":"internal_error","message":"encoding failure"}}`)
		return
	}
	ctx.SetBody(enc)
}

package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atlasgw/internal/auth"
	"atlasgw/internal/cache"
	"atlasgw/internal/db"
	"atlasgw/internal/http/respond"
)

// CredentialStore is the slice of the store the credential handlers need.
type CredentialStore interface {
	Insert(c *db.Credential) error
	ListByPrincipal(principalID string) ([]db.Credential, error)
	DeleteOwned(id, principalID string) (*db.Credential, error)
}

// credentialInfo is the non-secret view of a credential. Nothing in it can
// be used to reconstruct the raw token.
type credentialInfo struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	VisiblePrefix string     `json:"visible_prefix"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}

func toCredentialInfo(c *db.Credential) credentialInfo {
	return credentialInfo{
		ID:            c.ID,
		Label:         c.Label,
		VisiblePrefix: c.VisiblePrefix,
		CreatedAt:     c.CreatedAt,
		LastUsedAt:    c.LastUsedAt,
	}
}

func credentialListKey(principalID string) string {
	return cache.Key("credentials", principalID)
}

// CreateCredential issues a new credential and returns the raw token in the
// response body exactly once. The token is never stored and never logged;
// only its fingerprint and bcrypt hash are persisted.
func CreateCredential(store CredentialStore, c *cache.Cache, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustAuth(ctx)
		if !ok {
			return
		}

		var req struct {
			Label string `json:"label"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, "invalid JSON body")
			return
		}
		if req.Label == "" {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, "missing required parameter \"label\"")
			return
		}
		if len(req.Label) > 128 {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, "\"label\" must be at most 128 characters")
			return
		}

		token, err := auth.Generate()
		if err != nil {
			logger.Error("token generation failed", zap.Error(err))
			respond.Internal(ctx)
			return
		}
		secretHash, err := auth.HashSecret(token)
		if err != nil {
			logger.Error("token hashing failed", zap.Error(err))
			respond.Internal(ctx)
			return
		}

		cred := &db.Credential{
			ID:            uuid.NewString(),
			CreatedAt:     time.Now(),
			PrincipalID:   identity.PrincipalID,
			Label:         req.Label,
			VisiblePrefix: auth.VisiblePrefix(token),
			Fingerprint:   auth.Fingerprint(token),
			SecretHash:    secretHash,
		}
		if err := store.Insert(cred); err != nil {
			// A fingerprint collision lands here too; with 256 bits of
			// entropy that is an insert error, not a retry case.
			logger.Error("credential insert failed", zap.Error(err))
			respond.Internal(ctx)
			return
		}

		c.Delete(ctx, credentialListKey(identity.PrincipalID))

		info := toCredentialInfo(cred)
		respond.Data(ctx, fasthttp.StatusCreated, struct {
			credentialInfo
			Token string `json:"token"`
		}{credentialInfo: info, Token: token})
	}
}

// ListCredentials returns the caller's credentials, newest first, using
// only non-secret fields. Served from cache when possible.
func ListCredentials(store CredentialStore, c *cache.Cache, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustAuth(ctx)
		if !ok {
			return
		}

		key := credentialListKey(identity.PrincipalID)
		var cached []credentialInfo
		if c.GetJSON(ctx, key, &cached) {
			respond.Data(ctx, fasthttp.StatusOK, map[string]any{"credentials": cached})
			return
		}

		creds, err := store.ListByPrincipal(identity.PrincipalID)
		if err != nil {
			logger.Error("credential list failed", zap.Error(err))
			respond.Internal(ctx)
			return
		}

		infos := make([]credentialInfo, 0, len(creds))
		for i := range creds {
			infos = append(infos, toCredentialInfo(&creds[i]))
		}
		c.SetJSON(ctx, key, infos, cache.CredentialListTTL)

		respond.Data(ctx, fasthttp.StatusOK, map[string]any{"credentials": infos})
	}
}

// RevokeCredential deletes a credential owned by the caller. A credential
// that does not exist and one owned by another principal are
// indistinguishable: both report not_found.
func RevokeCredential(store CredentialStore, c *cache.Cache, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustAuth(ctx)
		if !ok {
			return
		}

		id, _ := ctx.UserValue("id").(string)
		if id == "" {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, "missing required parameter \"id\"")
			return
		}

		deleted, err := store.DeleteOwned(id, identity.PrincipalID)
		if errors.Is(err, db.ErrNotFound) {
			respond.Error(ctx, fasthttp.StatusNotFound, respond.CodeNotFound, "credential not found")
			return
		}
		if err != nil {
			logger.Error("credential revoke failed", zap.String("credential_id", id), zap.Error(err))
			respond.Internal(ctx)
			return
		}

		// Drop both the ownership listing and the verifier entry so the
		// revoked token stops authenticating immediately.
		c.Delete(ctx,
			credentialListKey(identity.PrincipalID),
			cache.Key("auth", deleted.Fingerprint),
		)

		respond.Data(ctx, fasthttp.StatusOK, map[string]any{"id": id, "revoked": true})
	}
}

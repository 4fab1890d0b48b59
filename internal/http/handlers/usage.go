package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atlasgw/internal/cache"
	"atlasgw/internal/db"
	"atlasgw/internal/http/respond"
	"atlasgw/internal/usage"
)

// UsageQuerier is the slice of the usage store the history handlers need.
type UsageQuerier interface {
	Query(principalID string, f db.UsageFilter) ([]db.UsageEvent, int64, error)
	BucketsForPrincipal(principalID string, since time.Time) ([]db.UsageBucket, error)
}

type usageEventInfo struct {
	ID           string         `json:"id"`
	CredentialID *string        `json:"credential_id,omitempty"`
	Action       string         `json:"action"`
	Workflow     string         `json:"workflow,omitempty"`
	DurationMs   *int64         `json:"duration_ms,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func toUsageEventInfo(ev *db.UsageEvent) usageEventInfo {
	info := usageEventInfo{
		ID:           ev.ID,
		CredentialID: ev.CredentialID,
		Action:       ev.Action,
		Workflow:     ev.Workflow,
		DurationMs:   ev.DurationMs,
		Status:       ev.Status,
		ErrorMessage: ev.ErrorMessage,
		CreatedAt:    ev.CreatedAt,
	}
	if len(ev.Metadata) > 0 {
		info.Metadata = map[string]any(ev.Metadata)
	}
	return info
}

// RecordUsage appends one caller-reported event. Principal and credential
// ids come from the verified auth context, never from the request body.
func RecordUsage(rec *usage.Recorder, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustAuth(ctx)
		if !ok {
			return
		}

		var req struct {
			Action       string         `json:"action"`
			Workflow     string         `json:"workflow"`
			DurationMs   *int64         `json:"duration_ms"`
			Status       string         `json:"status"`
			ErrorMessage string         `json:"error_message"`
			Metadata     map[string]any `json:"metadata"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, "invalid JSON body")
			return
		}
		if req.Status == "" {
			req.Status = db.StatusSuccess
		}

		entry := usage.Entry{
			PrincipalID:  identity.PrincipalID,
			CredentialID: identity.CredentialID,
			Action:       req.Action,
			Workflow:     req.Workflow,
			DurationMs:   req.DurationMs,
			Status:       req.Status,
			ErrorMessage: req.ErrorMessage,
			Metadata:     req.Metadata,
		}
		if err := usage.Validate(entry); err != nil {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, err.Error())
			return
		}

		ev, err := rec.Record(entry)
		if err != nil {
			logger.Error("usage insert failed", zap.Error(err))
			respond.Internal(ctx)
			return
		}
		respond.Data(ctx, fasthttp.StatusCreated, map[string]any{"id": ev.ID})
	}
}

// QueryUsage returns the caller's history, newest first, with filters and
// offset pagination. An over-large limit is clamped, never rejected.
func QueryUsage(store UsageQuerier, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustAuth(ctx)
		if !ok {
			return
		}

		args := ctx.QueryArgs()
		filter := db.UsageFilter{
			Action:   string(args.Peek("action")),
			Workflow: string(args.Peek("workflow")),
			Status:   string(args.Peek("status")),
		}
		if filter.Status != "" && !db.ValidStatus(filter.Status) {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest,
				fmt.Sprintf("invalid status %q (expected success, error or pending)", filter.Status))
			return
		}

		var err error
		if filter.Limit, err = intArg(args.Peek("limit"), "limit"); err != nil {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, err.Error())
			return
		}
		if filter.Offset, err = intArg(args.Peek("offset"), "offset"); err != nil {
			respond.Error(ctx, fasthttp.StatusBadRequest, respond.CodeInvalidRequest, err.Error())
			return
		}

		events, total, err := store.Query(identity.PrincipalID, filter)
		if err != nil {
			logger.Error("usage query failed", zap.Error(err))
			respond.Internal(ctx)
			return
		}

		infos := make([]usageEventInfo, 0, len(events))
		for i := range events {
			infos = append(infos, toUsageEventInfo(&events[i]))
		}
		respond.Data(ctx, fasthttp.StatusOK, map[string]any{
			"events": infos,
			"total":  total,
		})
	}
}

type usageBucketInfo struct {
	BucketStart   time.Time `json:"bucket_start"`
	TotalCount    int64     `json:"total_count"`
	ErrorCount    int64     `json:"error_count"`
	DurationP50Ms int64     `json:"duration_p50_ms"`
	DurationP95Ms int64     `json:"duration_p95_ms"`
	DurationP99Ms int64     `json:"duration_p99_ms"`
}

// UsageSummary serves the last 24h of hourly rollups, cached briefly since
// the underlying buckets only change once an hour.
func UsageSummary(store UsageQuerier, c *cache.Cache, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustAuth(ctx)
		if !ok {
			return
		}

		key := cache.Key("usage-summary", identity.PrincipalID)
		var cached []usageBucketInfo
		if c.GetJSON(ctx, key, &cached) {
			respond.Data(ctx, fasthttp.StatusOK, map[string]any{"buckets": cached})
			return
		}

		since := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Hour)
		buckets, err := store.BucketsForPrincipal(identity.PrincipalID, since)
		if err != nil {
			logger.Error("usage summary failed", zap.Error(err))
			respond.Internal(ctx)
			return
		}

		infos := make([]usageBucketInfo, 0, len(buckets))
		for _, b := range buckets {
			infos = append(infos, usageBucketInfo{
				BucketStart:   b.BucketStart,
				TotalCount:    b.TotalCount,
				ErrorCount:    b.ErrorCount,
				DurationP50Ms: b.DurationP50Ms,
				DurationP95Ms: b.DurationP95Ms,
				DurationP99Ms: b.DurationP99Ms,
			})
		}
		c.SetJSON(ctx, key, infos, cache.SummaryTTL)

		respond.Data(ctx, fasthttp.StatusOK, map[string]any{"buckets": infos})
	}
}

func intArg(raw []byte, name string) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %q: must be a non-negative integer", name)
	}
	return v, nil
}

package main

import (
	"context"
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atlasgw/internal/cache"
	"atlasgw/internal/config"
	"atlasgw/internal/db"
	"atlasgw/internal/http/handlers"
	appmw "atlasgw/internal/http/middleware"
	"atlasgw/internal/upstream"
	"atlasgw/internal/usage"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}

	redisCache, err := cache.New(context.Background(), cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer func() { _ = redisCache.Close() }()

	principal, err := db.EnsureBootstrapPrincipal(gormDB, cfg)
	if err != nil {
		logger.Fatal("failed to ensure bootstrap principal", zap.Error(err))
	}
	if err := db.EnsureBootstrapCredential(gormDB, cfg, principal, logger); err != nil {
		logger.Fatal("failed to ensure bootstrap credential", zap.Error(err))
	}

	credStore := db.NewCredentialStore(gormDB)
	usageStore := db.NewUsageStore(gormDB)
	recorder := usage.NewRecorder(usageStore, logger)
	client := upstream.New(cfg.UpstreamTimeout)

	db.StartRollupWorker(usageStore, logger)
	appmw.InitMetrics()

	r := router.New()

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.GET("/metrics", handlers.Metrics())

	authed := appmw.CredentialAuth(credStore, redisCache, logger)

	r.POST("/v1/credentials", authed(handlers.CreateCredential(credStore, redisCache, logger)))
	r.GET("/v1/credentials", authed(handlers.ListCredentials(credStore, redisCache, logger)))
	r.DELETE("/v1/credentials/{id}", authed(handlers.RevokeCredential(credStore, redisCache, logger)))

	r.GET("/rpc/chains", authed(handlers.ChainList()))
	r.POST("/rpc/{alias}", authed(handlers.RPCProxy(client, cfg, logger)))

	r.GET("/v1/swap/price", authed(handlers.SwapPrice(client, cfg, logger)))
	r.GET("/v1/swap/quote", authed(handlers.SwapQuote(client, cfg, logger)))
	r.GET("/v1/swap/trade-analytics", authed(handlers.SwapTradeAnalytics(client, cfg, logger)))
	r.GET("/v1/swap/chains", authed(handlers.SwapChains(client, cfg, redisCache, logger)))
	r.GET("/v1/swap/sources", authed(handlers.SwapSources(client, cfg, redisCache, logger)))

	r.POST("/v1/usage", authed(handlers.RecordUsage(recorder, logger)))
	r.GET("/v1/usage", authed(handlers.QueryUsage(usageStore, logger)))
	r.GET("/v1/usage/summary", authed(handlers.UsageSummary(usageStore, redisCache, logger)))

	// Global middleware chain: request logger, then audit recording, then router.
	handler := appmw.RequestLogger(logger)(appmw.Audit(recorder)(r.Handler))

	logger.Info("atlasgw listening", zap.String("addr", cfg.ListenAddr))
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

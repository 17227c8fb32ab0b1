package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/phraser/location-server/config"
	"github.com/phraser/location-server/internal/api/handlers"
	"github.com/phraser/location-server/internal/api/middleware"
	"github.com/phraser/location-server/internal/api/routes"
	"github.com/phraser/location-server/internal/logger"
	"github.com/phraser/location-server/internal/phrases"
	"github.com/phraser/location-server/internal/places"
	"github.com/phraser/location-server/internal/providers/llm"
	"github.com/phraser/location-server/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	l := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store: in-memory unless a redis address is configured.
	var store session.Store = session.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb, err := config.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb, 2*cfg.PhraseResendWindow)
		l.WithField("addr", cfg.RedisAddr).Info("using redis session store")
	}

	var provider llm.Provider
	switch cfg.LLMProvider {
	case "vertex":
		provider, err = llm.NewVertexGemini(ctx, cfg.VertexProjectID, cfg.VertexLocation, cfg.VertexModel)
		if err != nil {
			log.Fatalf("vertex init error: %v", err)
		}
	default:
		provider = llm.NewAzureOpenAI(cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIKey, cfg.UpstreamTimeout)
	}
	defer provider.Close()

	searcher := places.NewKakaoSearcher(cfg.KakaoBaseURL, cfg.KakaoAPIKey, cfg.PlaceCategories, cfg.UpstreamTimeout)
	resolver := places.NewResolver(cfg.CustomLocations, cfg.DetectionRadiusMeters, searcher, l)

	gen := phrases.NewGenerator(provider, l)
	orch := phrases.NewOrchestrator(store, gen, phrases.Policy{
		Cooldown:               cfg.GenerationCooldown,
		Debounce:               cfg.GenerationDebounce,
		ResendWindow:           cfg.PhraseResendWindow,
		AppendBypassesCooldown: cfg.AppendBypassesCooldown,
	}, l)

	reaper := &session.Reaper{
		Store:          store,
		SessionTimeout: 2 * cfg.PhraseResendWindow,
		PendingTimeout: 2 * cfg.GenerationDebounce,
		Interval:       cfg.ReaperInterval,
		Log:            l,
	}
	go reaper.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Location: handlers.NewLocationHandler(resolver, orch, l),
		WS:       handlers.NewWSHandler(resolver, orch, l),
	})

	l.WithField("port", cfg.Port).Info("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

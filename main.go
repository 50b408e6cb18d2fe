package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"classroom-rollcall-go/app"
	"classroom-rollcall-go/config"
	"classroom-rollcall-go/db"
	"classroom-rollcall-go/generator"
	"classroom-rollcall-go/handlers"
	"classroom-rollcall-go/logger"
	"classroom-rollcall-go/session"
	"classroom-rollcall-go/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", true)
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	// Initialize Redis Client. Without Redis the service still runs from the
	// default state; saves are retried by the client on every write.
	redisClient, err := db.InitializeRedisClient(context.Background(), db.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, continuing without stored state")
	} else {
		log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("Connected to Redis")
	}
	defer redisClient.Close()

	gateway := db.NewGateway(db.NewRedisStore(redisClient), cfg.StorageKey, log)
	saver := db.NewAsyncSaver(gateway, cfg.SaveDebounce)

	hub := ws.NewHub(log)
	publisher := db.NewEventPublisher(redisClient, cfg.EventsChannel, log)
	engine := session.NewEngine(session.Options{
		Steps:    cfg.RollSteps,
		Interval: cfg.RollInterval,
		Notifier: session.MultiNotifier{
			session.LogNotifier{Log: log},
			hub,
			publisher,
		},
	})

	// A nil interface disables generation; a nil *Gemini would not.
	var gen generator.Generator
	gemini, err := generator.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	switch {
	case err == nil:
		gen = gemini
		defer gemini.Close()
		log.Info().Str("model", cfg.GeminiModel).Msg("Question generation enabled")
	case errors.Is(err, generator.ErrNotConfigured):
		log.Info().Msg("GEMINI_API_KEY not set, question generation disabled")
	default:
		log.Error().Err(err).Msg("Question generation disabled")
	}

	classroom := app.New(gateway.Load(context.Background()), app.Options{
		Engine:    engine,
		Saver:     saver,
		Generator: gen,
		Log:       log,
	})

	// Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	handlers.RegisterRoutes(router,
		handlers.NewAPIHandler(classroom, log),
		handlers.NewWSHandler(hub, classroom, log),
	)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}
	hub.Close()
	publisher.Close()
	if err := saver.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush the last state")
	}

	log.Info().Msg("Server stopped")
}

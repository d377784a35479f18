package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/config"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/handlers"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services/provider"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services/provider/riot"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/store"
	_ "github.com/DannyMichaels/LoL-scrims-finder-sub001/migrations"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/monitoring"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/security"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}
	notifier := services.NewPubNubNotifier(pn)

	// Tournament provider: real Riot client when a key is configured,
	// otherwise the deterministic stub for local development
	var prov provider.Provider
	if cfg.Riot.APIKey != "" {
		riotClient, err := riot.New(&riot.Config{
			BaseURL: cfg.Riot.BaseURL,
			APIKey:  cfg.Riot.APIKey,
		})
		if err != nil {
			return err
		}
		prov = riotClient
	} else {
		slog.Warn("no riot api key configured, using stub tournament provider")
		prov = provider.NewStub()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	st := store.NewPBStore(app)
	scheduler := services.NewScheduler(st, prov, notifier, cfg)
	rosterService := services.NewRosterService(st, redisClient, notifier, scheduler, cfg)
	sessionService := services.NewSessionService(st, notifier, scheduler)

	// Initialize handlers
	scrimHandler := handlers.NewScrimHandler(sessionService)
	rosterHandler := handlers.NewRosterHandler(rosterService)
	adminHandler := handlers.NewAdminHandler(rosterService, sessionService, scheduler)
	callbackHandler := handlers.NewCallbackHandler(sessionService)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.MutationRateLimit, cfg.MutationRateWindow)
	mutationLimit := rateLimiter.MutationRateLimit()

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel, scheduler)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Rearm countdowns for every scrim that survived a restart
		go func() {
			if err := scheduler.Recover(ctx, time.Now()); err != nil {
				slog.Error("scheduler recovery failed", "error", err)
			}
		}()

		// Scrim endpoints
		e.Router.POST("/api/v1/scrims", scrimHandler.Create)
		e.Router.GET("/api/v1/scrims", scrimHandler.List)
		e.Router.GET("/api/v1/scrims/{id}", scrimHandler.Get)
		e.Router.PATCH("/api/v1/scrims/{id}", scrimHandler.Update)
		e.Router.POST("/api/v1/scrims/{id}/winner", scrimHandler.SetWinner)
		e.Router.POST("/api/v1/scrims/{id}/cancel", scrimHandler.Cancel)

		// Roster endpoints
		e.Router.POST("/api/v1/scrims/{id}/players", rosterHandler.Join).BindFunc(mutationLimit)
		e.Router.DELETE("/api/v1/scrims/{id}/players", rosterHandler.Leave).BindFunc(mutationLimit)
		e.Router.PATCH("/api/v1/scrims/{id}/players", rosterHandler.Move).BindFunc(mutationLimit)
		e.Router.POST("/api/v1/scrims/{id}/swap", rosterHandler.Swap).BindFunc(mutationLimit)
		e.Router.POST("/api/v1/scrims/{id}/casters", rosterHandler.JoinCasters).BindFunc(mutationLimit)
		e.Router.DELETE("/api/v1/scrims/{id}/casters", rosterHandler.LeaveCasters).BindFunc(mutationLimit)

		// Admin endpoints
		admin := e.Router.Group("/api/v1/admin")
		admin.BindFunc(handlers.RequireAdmin)
		admin.POST("/scrims/{id}/assign", adminHandler.Assign)
		admin.POST("/scrims/{id}/fill", adminHandler.FillRandom)
		admin.POST("/scrims/{id}/initialize", adminHandler.Initialize)
		admin.DELETE("/scrims/{id}", adminHandler.Delete)
		admin.GET("/scheduler", adminHandler.Timers)

		// Provider game-result callback, correlated by metadata tag
		e.Router.POST("/api/v1/callbacks/tournament", callbackHandler.Receive)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		log.Println("Server routes registered")

		setupScrimHooks(app, scheduler)

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		scheduler.Shutdown()
		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// setupScrimHooks keeps the in-process timer registry in sync with record
// changes that bypass the service layer (PocketBase admin UI edits).
func setupScrimHooks(app *pocketbase.PocketBase, scheduler *services.Scheduler) {
	app.OnRecordUpdateRequest("scrims").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		sess, err := store.NewPBStore(e.App).GetSession(e.Request.Context(), e.Record.Id)
		if err != nil {
			slog.Error("reschedule after admin edit failed", "scrim_id", e.Record.Id, "error", err)
			return nil
		}
		if err := scheduler.Reschedule(e.Request.Context(), sess); err != nil {
			slog.Error("reschedule after admin edit failed", "scrim_id", sess.ID, "error", err)
		}
		return nil
	})

	app.OnRecordDeleteRequest("scrims").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		scheduler.Cancel(e.Record.Id)
		return nil
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, scheduler *services.Scheduler) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	scheduler.Shutdown()
	cancel()
}

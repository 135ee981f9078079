package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"pinksync/internal/authutils"
	"pinksync/internal/bootstrap"
	"pinksync/internal/config"
	"pinksync/internal/handler"
	"pinksync/internal/logger"
	"pinksync/internal/middleware"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		// Production containers get their environment directly.
		fmt.Printf("Warning: could not load %s: %v\n", *envFile, err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: cfg.LogOutput,
		Service:    cfg.ServiceName,
		Env:        cfg.Env,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Configuration loaded", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build components", zap.Error(err))
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.Error("Failed to close components", zap.Error(err))
		}
	}()

	var verifier *authutils.InterServiceVerifier
	if cfg.InterServiceSecret != "" {
		verifier, err = authutils.NewInterServiceVerifier(cfg.InterServiceSecret, cfg.ServiceName, log)
		if err != nil {
			log.Fatal("Failed to create inter-service verifier", zap.Error(err))
		}
	} else {
		log.Warn("inter_service_secret not set, internal endpoints are unauthenticated")
	}

	h := handler.NewHandler(
		components.Dispatcher,
		components.NewPool(cfg.WorkerConcurrency),
		handler.BatchLimits{MaxJobs: cfg.BatchMaxJobs, MaxDuration: cfg.BatchMaxDuration},
		verifierOrNil(verifier),
		log,
	)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.GinZapLogger(log))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	h.RegisterRoutes(router)

	var background sync.WaitGroup
	if cfg.EmbeddedWorkers > 0 {
		pool := components.NewPool(cfg.EmbeddedWorkers)
		background.Add(1)
		go func() {
			defer background.Done()
			log.Info("Starting embedded workers", zap.Int("count", cfg.EmbeddedWorkers))
			if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Embedded workers stopped with error", zap.Error(err))
			}
		}()

		reaper := components.NewReaper()
		background.Add(1)
		go func() {
			defer background.Done()
			reaper.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, stopping HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("Embedded workers did not stop before the shutdown timeout")
	}

	log.Info("Server exited")
}

// verifierOrNil keeps a nil *InterServiceVerifier from becoming a non-nil
// interface value.
func verifierOrNil(v *authutils.InterServiceVerifier) middleware.InterServiceTokenVerifier {
	if v == nil {
		return nil
	}
	return v
}

func corsConfig(origins []string) cors.Config {
	corsCfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.InterServiceTokenHeader, middleware.RequestIDHeader}
	corsCfg.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	corsCfg.MaxAge = 12 * time.Hour
	return corsCfg
}

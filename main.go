package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamemaker-server/config"
	"gamemaker-server/core"
	"gamemaker-server/handlers/api/files"
	"gamemaker-server/handlers/api/scenes"
	"gamemaker-server/handlers/api/sprites"
	"gamemaker-server/handlers/auth"
	appMiddleware "gamemaker-server/middleware"
	"gamemaker-server/metrics"
	sceneService "gamemaker-server/scenes"
	spriteService "gamemaker-server/sprites"
	"gamemaker-server/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type routerDeps struct {
	scenes    scenes.Service
	sprites   sprites.Library
	objects   core.ObjectStore
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	jwtSecret []byte
	origins   []string
	health    func(ctx context.Context) error
}

func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appMiddleware.Metrics(deps.metrics))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// Write routes require a bearer token once a secret is configured.
	guard := func(r chi.Router) chi.Router {
		if len(deps.jwtSecret) == 0 {
			return r
		}
		return r.With(appMiddleware.AuthJWT(deps.jwtSecret))
	}

	r.Route("/api/v1/scenes", func(r chi.Router) {
		r.Get("/", scenes.HandleListScenes(deps.scenes))
		r.Get("/audit", scenes.HandleAudit(deps.scenes))
		r.Get("/{id}", scenes.HandleGetScene(deps.scenes))
		guard(r).Post("/", scenes.HandleAddScene(deps.scenes))
		guard(r).Put("/", scenes.HandleUpdateScene(deps.scenes))
		guard(r).Delete("/{id}", scenes.HandleDeleteScene(deps.scenes))
	})

	r.Route("/api/cloud-storage/sprites", func(r chi.Router) {
		r.Get("/", sprites.HandleListSprites(deps.sprites))
		guard(r).Post("/", sprites.HandleAddSprite(deps.sprites))
		guard(r).Put("/{id}", sprites.HandleUpdateSprite(deps.sprites))
		guard(r).Delete("/{id}", sprites.HandleDeleteSprite(deps.sprites))
	})

	if len(deps.jwtSecret) > 0 {
		r.With(appMiddleware.AuthJWT(deps.jwtSecret)).Get("/auth/me", auth.HandleMe)
	}

	if signed, ok := deps.objects.(files.SignedStore); ok {
		r.Get("/files/{bucket}/*", files.HandleDownload(signed))
	}

	r.Handle("/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.health != nil {
			if err := deps.health(r.Context()); err != nil {
				logrus.WithError(err).Warn("Health check failed")
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	return r
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func run(ctx context.Context, cfg *config.Config) error {
	objects, err := stores.GetObjectStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	descriptors, err := stores.GetDescriptorStore(ctx, cfg.Database)
	if err != nil {
		closeStores(objects)
		return err
	}
	defer closeStores(descriptors, objects)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("gamemaker", registry)

	validity := cfg.Storage.URLValidity()
	r := setupRouter(routerDeps{
		scenes: sceneService.NewService(
			sceneService.Config{Bucket: cfg.Storage.Bucket, URLTimeAlive: validity},
			descriptors,
			objects,
			sceneService.WithMetrics(m),
		),
		sprites:   spriteService.NewService(spriteService.Config{Bucket: cfg.Storage.Bucket, URLTimeAlive: validity}, objects),
		objects:   objects,
		registry:  registry,
		metrics:   m,
		jwtSecret: []byte(cfg.Auth.JWTSecret),
		origins:   cfg.Server.AllowedOrigins,
		health: func(ctx context.Context) error {
			return stores.Health(ctx, descriptors, objects)
		},
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logrus.Info("Shutting down...")
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		logrus.WithField("addr", cfg.Server.Address).Info("starting server")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

func closeStores(backends ...any) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stores.Close(ctx, backends...); err != nil {
		logrus.WithError(err).Error("Failed to close storage backends")
		return
	}
	logrus.Info("Storage backends closed")
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file.")
	listenAddress := flag.String("listen", "", "The address to listen on, overriding server.address.")
	logLevel := flag.String("loglevel", "", "The log level (debug, info, warn, error), overriding log.level.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if *listenAddress != "" {
		cfg.Server.Address = *listenAddress
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithField("event", "start server").Fatal(err)
	}
}

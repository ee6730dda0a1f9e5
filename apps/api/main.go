package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/database"
	tenantshandler "github.com/atriumhq/atrium-saas/domains/tenants/be/handler"
	tenantsprov "github.com/atriumhq/atrium-saas/domains/tenants/be/provisioning"
	tenantsrepo "github.com/atriumhq/atrium-saas/domains/tenants/be/repo"
	tenantsservice "github.com/atriumhq/atrium-saas/domains/tenants/be/service"
	usershandler "github.com/atriumhq/atrium-saas/domains/users/be/handler"
	usersrepo "github.com/atriumhq/atrium-saas/domains/users/be/repo"
	usersservice "github.com/atriumhq/atrium-saas/domains/users/be/service"
	platformauth "github.com/atriumhq/atrium-saas/platform/go/auth"
	platformlogging "github.com/atriumhq/atrium-saas/platform/go/logging"
	"github.com/atriumhq/atrium-saas/platform/go/metrics"
	platformmiddleware "github.com/atriumhq/atrium-saas/platform/go/middleware"
	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	// Control-plane store; tenant directory and credentials live here.
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Connection template for per-tenant databases. Host defaults to the
	// control-plane server in docker-compose setups.
	TenantDBHost     string `env:"TENANT_DB_HOST,required"`
	TenantDBPort     int    `env:"TENANT_DB_PORT" envDefault:"5432"`
	TenantDBUser     string `env:"TENANT_DB_USER,required"`
	TenantDBPassword string `env:"TENANT_DB_PASSWORD,required"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"1h"`

	MaxTenantPools int `env:"ROUTER_MAX_TENANT_POOLS" envDefault:"10"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := database.ApplyMaster(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("apply control-plane migrations", zap.Error(err))
	}

	masterPool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init control-plane pool", zap.Error(err))
	}
	defer masterPool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	template := persistence.TargetTemplate{
		Host:     cfg.TenantDBHost,
		Port:     cfg.TenantDBPort,
		User:     cfg.TenantDBUser,
		Password: cfg.TenantDBPassword,
	}

	router := persistence.NewRouter(persistence.RouterConfig{
		Directory:      persistence.NewDirectory(masterPool),
		Template:       template,
		Master:         masterPool,
		MaxTenantPools: cfg.MaxTenantPools,
		Logger:         logger.Named("router"),
		Metrics:        metrics.NewRouting(registry),
	})
	defer router.Close()

	codec := platformauth.NewCodec(platformauth.CodecConfig{Secret: []byte(cfg.JWTSecret)})

	tenantRepo := tenantsrepo.NewPostgresRepository(masterPool)
	provisioner := tenantsprov.NewDatabaseProvisioner(masterPool, template, logger.Named("provisioner"))
	tenantService := tenantsservice.New(tenantRepo, provisioner, logger.Named("tenants"))
	tenantHandler := tenantshandler.New(tenantService, logger)

	credService := usersservice.NewCredentialService(usersservice.CredentialConfig{
		Repo:     usersrepo.NewCredentialsPostgres(masterPool),
		Codec:    codec,
		TokenTTL: cfg.JWTTTL,
	})
	authHandler := usershandler.NewAuthHandler(credService, logger)

	userService := usersservice.New(usersrepo.NewPostgres())
	userHandler := usershandler.New(userService, logger)

	gate := platformauth.Gate(platformauth.GateConfig{
		Codec:   codec,
		Router:  router,
		Metrics: metrics.NewAuth(registry),
	})

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Multi-Tenant API is running!"))
	})
	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := masterPool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	rootRouter.Route("/auth", func(r chi.Router) {
		authHandler.Mount(r)
	})

	rootRouter.Route("/api/users", func(r chi.Router) {
		r.Use(gate)
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequirePermission("users:read"))
			r.Get("/", userHandler.List)
			r.Get("/count", userHandler.Count)
			r.Get("/{userID}", userHandler.Get)
		})
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequirePermission("users:write"))
			r.Post("/", userHandler.Create)
			r.Patch("/{userID}", userHandler.Update)
			r.Delete("/{userID}", userHandler.Delete)
		})
	})

	rootRouter.Route("/tenants", func(r chi.Router) {
		r.Use(gate)
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequirePermission("tenants:read"))
			r.Get("/", tenantHandler.List)
			r.Get("/{tenantID}", tenantHandler.Get)
		})
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequirePermission("tenants:write"))
			r.Post("/", tenantHandler.Create)
			r.Post("/{tenantID}/provision", tenantHandler.Provision)
			r.Post("/{tenantID}/suspend", tenantHandler.Suspend)
			r.Post("/{tenantID}/activate", tenantHandler.Activate)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

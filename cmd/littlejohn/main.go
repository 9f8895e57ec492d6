package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/littlejohn/internal/bootstrap"
	"github.com/dropDatabas3/littlejohn/internal/cache"
	memcache "github.com/dropDatabas3/littlejohn/internal/cache/memory"
	rediscache "github.com/dropDatabas3/littlejohn/internal/cache/redis"
	"github.com/dropDatabas3/littlejohn/internal/config"
	healthctrl "github.com/dropDatabas3/littlejohn/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/littlejohn/internal/http/controllers/oauth"
	"github.com/dropDatabas3/littlejohn/internal/http/router"
	oauthsvc "github.com/dropDatabas3/littlejohn/internal/http/services/oauth"
	"github.com/dropDatabas3/littlejohn/internal/jwt"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/rate"
	"github.com/dropDatabas3/littlejohn/internal/store"
	memstore "github.com/dropDatabas3/littlejohn/internal/store/memory"
	pgstore "github.com/dropDatabas3/littlejohn/internal/store/pg"

	httpserver "github.com/dropDatabas3/littlejohn/internal/http"
)

func main() {
	// .env es opcional; en prod la config llega por entorno real.
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:   "littlejohn",
		Short: "Servidor de emisión de tokens OAuth2",
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta al YAML de configuración")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(seedCmd(&configPath))
	root.AddCommand(migrateCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "littlejohn"})
			defer func() { _ = logger.Sync() }()
			log := logger.L()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := buildStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			defer st.Close()

			ks, err := jwt.NewKeystore()
			if err != nil {
				return fmt.Errorf("keystore: %w", err)
			}
			issuer := jwt.NewIssuer(cfg.JWT.Issuer, ks)
			issuer.AccessTTL = cfg.AccessTTL()

			clientCache, redisClient := buildCache(cfg)

			var limiter rate.Limiter
			if cfg.Rate.Enabled {
				if redisClient != nil {
					limiter = rate.NewRedisLimiter(redisClient.Client(), "rl:", cfg.Rate.Token.Limit, cfg.RateTokenWindow())
				} else {
					limiter = rate.NewMemoryLimiter(cfg.Rate.Token.Limit, cfg.RateTokenWindow())
				}
			}

			if err := metrics.RegisterOAuth(nil); err != nil {
				return fmt.Errorf("metrics: %w", err)
			}

			tokenSvc := oauthsvc.NewTokenService(oauthsvc.Deps{
				Clients:            st.Clients(),
				Users:              st.Users(),
				Auths:              st.Authorizations(),
				Issuer:             issuer,
				Cache:              clientCache,
				RefreshTTL:         cfg.RefreshTTL(),
				RequireScope:       cfg.Auth.RequireScope,
				ReuseRefreshTokens: cfg.Auth.ReuseRefreshTokens,
				ScopeStrategy:      cfg.Auth.ScopeStrategy,
			})
			introspectSvc := oauthsvc.NewIntrospectService(st.Authorizations(), issuer)
			revokeSvc := oauthsvc.NewRevokeService(st.Authorizations())

			handler := router.New(router.Deps{
				Token:       oauthctrl.NewTokenController(tokenSvc),
				JWKS:        oauthctrl.NewJWKSController(issuer),
				Introspect:  oauthctrl.NewIntrospectController(introspectSvc, tokenSvc, cfg.Auth.IntrospectBasicUser, cfg.Auth.IntrospectBasicPass),
				Revoke:      oauthctrl.NewRevokeController(revokeSvc, tokenSvc),
				Health:      healthctrl.NewHealthController(st),
				RateLimiter: limiter,
			})

			srv := httpserver.NewServer(cfg.Server.Addr, handler)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("server starting",
					logger.String("addr", cfg.Server.Addr),
					logger.String("storage", cfg.Storage.Driver),
					logger.String("issuer", cfg.JWT.Issuer),
				)
				return srv.Start()
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				log.Error("server exited with error", logger.Err(err))
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
}

func seedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Inserta los clients y usuarios de desarrollo",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "littlejohn"})
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			st, err := buildStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			defer st.Close()

			return bootstrap.Seed(ctx, st.Clients(), st.Users())
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "littlejohn"})
			defer func() { _ = logger.Sync() }()

			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requiere storage.driver=postgres (actual: %s)", cfg.Storage.Driver)
			}
			ctx := cmd.Context()
			st, err := pgstore.New(ctx, cfg.Storage.DSN,
				cfg.Storage.Postgres.MaxOpenConns,
				cfg.Storage.Postgres.MaxIdleConns,
				cfg.PostgresConnMaxLifetime(),
			)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.L().Info("migrations applied")
			return nil
		},
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return pgstore.New(ctx, cfg.Storage.DSN,
			cfg.Storage.Postgres.MaxOpenConns,
			cfg.Storage.Postgres.MaxIdleConns,
			cfg.PostgresConnMaxLifetime(),
		)
	case "memory", "":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("storage driver desconocido: %s", cfg.Storage.Driver)
	}
}

// buildCache arma el cache de clients. Retorna también el handle redis para
// que el rate limiter comparta la conexión.
func buildCache(cfg *config.Config) (cache.Cache, *rediscache.Cache) {
	if cfg.Cache.Kind == "redis" && cfg.Cache.Redis.Addr != "" {
		rc := rediscache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		return rc, rc
	}
	return memcache.New(cfg.MemoryCacheTTL()), nil
}

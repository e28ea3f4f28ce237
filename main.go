package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/targup/targup/backend/auth-service/handlers"
	"github.com/targup/targup/backend/auth-service/internal/accounts"
	"github.com/targup/targup/backend/auth-service/internal/config"
	"github.com/targup/targup/backend/auth-service/internal/database"
	"github.com/targup/targup/backend/auth-service/internal/oidc"
	"github.com/targup/targup/backend/auth-service/internal/providers"
	"github.com/targup/targup/backend/auth-service/internal/sessions"
	"github.com/targup/targup/backend/auth-service/internal/signin"
	"github.com/targup/targup/backend/auth-service/internal/tokens"
	"github.com/targup/targup/backend/auth-service/internal/users"
	"github.com/targup/targup/backend/auth-service/pkg/logger"
	"github.com/targup/targup/backend/auth-service/pkg/metrics"
	"github.com/targup/targup/backend/auth-service/pkg/middleware"
)

// devSecret signs tokens in development when JWT_SECRET is unset.
const devSecret = "targup-development-only-secret-change-me"

// stores holds the selected persistence backends.
type stores struct {
	users    users.Repository
	accounts accounts.Repository
	sessions sessions.Repository
	revoked  sessions.RevocationSet
	pingers  map[string]handlers.Pinger
	closers  []func(context.Context) error
}

func (s *stores) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.InitWithFormat(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	defer st.close(context.Background())

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	r, err := newRouter(ctx, cfg, st)
	if err != nil {
		logger.Fatalf("router: %v", err)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Infow("starting auth service",
		"addr", srv.Addr,
		"env", cfg.Server.Environment,
		"storage", cfg.Storage.Driver,
		"sessions", cfg.Storage.Sessions,
		"revocations", cfg.Storage.Revocations,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("graceful shutdown: %v", err)
		}
	}
}

// newRouter wires services and routes on top of the opened stores.
func newRouter(ctx context.Context, cfg *config.Config, st *stores) (*gin.Engine, error) {
	secret := cfg.JWT.Secret
	if secret == "" {
		logger.Warnf("JWT_SECRET is not set; using the development secret")
		secret = devSecret
	}

	sessSvc := sessions.NewService(st.sessions, st.revoked)
	issuer, err := tokens.NewIssuer(tokens.Options{
		Secret:      []byte(secret),
		Issuer:      cfg.JWT.Issuer,
		TTL:         cfg.JWT.AccessTokenTTL,
		Revocations: sessSvc.Revocations(),
	})
	if err != nil {
		return nil, err
	}

	registry, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("providers enabled: %v", registry.Names())

	userSvc := users.NewService(st.users, users.PasswordPolicy{MinLength: cfg.Password.MinLength, HashCost: cfg.Password.BcryptCost})
	signinSvc := signin.NewService(registry, st.users, st.accounts, issuer, sessSvc)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.CORS(cfg.Server.AllowedOrigins...))

	handlers.NewHealthHandler(st.pingers).Register(r)
	handlers.RegisterSwagger(r)
	handlers.NewAuthHandler(signinSvc, userSvc, issuer, sessSvc, cfg.Server.IsProduction()).Register(r)
	handlers.NewUsersHandler(userSvc, st.accounts, sessSvc, issuer).Register(r)
	return r, nil
}

func buildProviders(ctx context.Context, cfg *config.Config) (*providers.Registry, error) {
	registry, err := providers.NewRegistry()
	if err != nil {
		return nil, err
	}
	if cfg.Google.Enabled() {
		var verifier providers.IDTokenVerifier
		switch cfg.OIDC.Mode {
		case "verify":
			v, err := oidc.NewVerifier(ctx, cfg.OIDC.Issuer, cfg.Google.ClientID)
			if err != nil {
				logger.Warnf("google id_token verification disabled: %v", err)
			} else {
				verifier = v
			}
		case "trust":
			logger.Warnf("google id_token signatures are not checked (GOOGLE_OIDC_MODE=trust)")
			verifier = oidc.NewInsecureVerifier(cfg.OIDC.Issuer, cfg.Google.ClientID)
		}
		g := providers.NewGoogle(providerConfig(cfg.Google), verifier)
		if err := registry.Register(g); err != nil {
			return nil, err
		}
	}
	if cfg.Instagram.Enabled() {
		if err := registry.Register(providers.NewInstagram(providerConfig(cfg.Instagram))); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func providerConfig(p config.ProviderConfig) providers.Config {
	return providers.Config{
		ClientID:            p.ClientID,
		ClientSecret:        p.ClientSecret,
		RedirectURL:         p.RedirectURI,
		PasswordPlaceholder: p.PasswordPlaceholder,
	}
}

// openStores connects the configured backends.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{pingers: map[string]handlers.Pinger{}}

	var mongoDB *mongo.Database
	switch cfg.Storage.Driver {
	case "mongo":
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, func(attempt int, err error) {
			logger.Warnf("attempt %d: failed to connect to MongoDB: %v", attempt, err)
		})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, client.Disconnect)
		st.pingers["mongo"] = handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) })

		mongoDB = client.Database(cfg.MongoDB.Database)
		if err := database.EnsureIndexes(ctx, mongoDB); err != nil {
			return nil, err
		}
		st.users = users.NewMongoRepository(mongoDB.Collection(database.UsersCollection))
		st.accounts = accounts.NewMongoRepository(mongoDB.Collection(database.OAuthAccountsCollection))
		logger.Infof("using MongoDB storage (database=%s)", cfg.MongoDB.Database)
	case "postgres":
		if cfg.Postgres.MigrateOnBoot {
			if err := database.RunMigrations(cfg.Postgres.URL); err != nil {
				return nil, err
			}
		}
		db, err := database.OpenPostgres(cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return db.Close() })
		st.pingers["postgres"] = handlers.PingFunc(db.PingContext)
		st.users = users.NewPostgresRepository(db)
		st.accounts = accounts.NewPostgresRepository(db)
		logger.Infof("using PostgreSQL storage")
	default:
		st.users = users.NewMemoryRepository()
		st.accounts = accounts.NewMemoryRepository()
		logger.Warnf("using in-memory storage; users are lost on restart")
	}

	var rdb redis.UniversalClient
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// keep going; readiness reports it until Redis comes up
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
		} else {
			logger.Infof("connected to Redis: %s", cfg.Redis.Addr())
		}
		st.closers = append(st.closers, func(context.Context) error { return rdb.Close() })
		st.pingers["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	switch cfg.Storage.Revocations {
	case "redis":
		st.revoked = sessions.NewRedisRevocationSet(rdb, "")
	default:
		st.revoked = sessions.NewMemoryRevocationSet()
	}

	switch cfg.Storage.Sessions {
	case "redis":
		st.sessions = sessions.NewRedisRepository(rdb, "")
	case "mongo":
		st.sessions = sessions.NewMongoRepository(mongoDB.Collection(database.SessionsCollection))
	case "memory":
		st.sessions = sessions.NewMemoryRepository()
	}
	return st, nil
}

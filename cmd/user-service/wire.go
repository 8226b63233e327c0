package main

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/userhub/user-service/internal/api/handler"
	"github.com/userhub/user-service/internal/core/ports"
	"github.com/userhub/user-service/internal/core/service"
	"github.com/userhub/user-service/internal/infrastructure/config"
	"github.com/userhub/user-service/internal/infrastructure/db/memory"
	mongostore "github.com/userhub/user-service/internal/infrastructure/db/mongo"
	pgstore "github.com/userhub/user-service/internal/infrastructure/db/postgres"
	redisstore "github.com/userhub/user-service/internal/infrastructure/db/redis"
	"github.com/userhub/user-service/internal/infrastructure/identity/keycloak"
)

// infra holds the adapters selected by configuration.
type infra struct {
	users   ports.UserRepository
	creds   ports.CredentialRepository
	locker  ports.Locker
	health  map[string]handler.Pinger
	closers []func(context.Context)
}

func (i *infra) close(ctx context.Context) {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n](ctx)
	}
}

// connect opens the store and Redis concurrently.
func connect(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*infra, error) {
	in := &infra{health: map[string]handler.Pinger{}}
	var store, cache func(*infra)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		store, err = connectStore(gctx, cfg)
		return err
	})
	if cfg.Redis.Enabled {
		g.Go(func() error {
			rdb, err := redisstore.Connect(gctx, redisstore.Config{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				return err
			}
			cache = func(in *infra) {
				in.locker = redisstore.NewLocker(rdb, 0, redisstore.WithWait(cfg.Redis.LockWait))
				in.health["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
				in.closers = append(in.closers, func(context.Context) { _ = rdb.Close() })
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	store(in)
	if cache != nil {
		cache(in)
	}
	log.Info().Str("store", cfg.StoreDriver).Bool("redis", cfg.Redis.Enabled).Msg("infrastructure connected")
	return in, nil
}

func connectStore(ctx context.Context, cfg *config.Config) (func(*infra), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, AppName: "user-service"})
		if err != nil {
			return nil, err
		}
		users := mongostore.NewUserRepository(db)
		creds := mongostore.NewCredentialRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		if err := creds.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return func(in *infra) {
			in.users, in.creds = users, creds
			in.health["mongodb"] = users
			in.closers = append(in.closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
		}, nil

	case config.StorePostgres:
		pool, err := pgstore.Connect(ctx, pgstore.Config{URL: cfg.Postgres.URL, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		users := pgstore.NewUserRepository(pool)
		return func(in *infra) {
			in.users, in.creds = users, pgstore.NewCredentialRepository(pool)
			in.health["postgres"] = users
			in.closers = append(in.closers, func(context.Context) { pool.Close() })
		}, nil

	default:
		users := memory.NewUserRepository()
		return func(in *infra) {
			in.users, in.creds = users, memory.NewCredentialRepository()
			in.health["store"] = users
		}, nil
	}
}

// identityProvider returns the admin port used by the bootstrapper and, for
// the local driver, the AuthService that also serves /auth routes.
func identityProvider(ctx context.Context, cfg *config.Config, creds ports.CredentialRepository, log zerolog.Logger) (ports.IdentityProviderAdmin, *service.AuthService, error) {
	if cfg.IdPDriver == config.IdPKeycloak {
		kc, err := keycloak.NewAdminClient(ctx, keycloak.Config{
			BaseURL:      cfg.Keycloak.BaseURL,
			Realm:        cfg.Keycloak.Realm,
			ClientID:     cfg.Keycloak.ClientID,
			ClientSecret: cfg.Keycloak.ClientSecret,
			AdminRole:    cfg.Keycloak.AdminRole,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return kc, nil, nil
	}

	auth := service.NewAuthService(creds, cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, log.With().Str("component", "auth").Logger())
	return auth, auth, nil
}

func parsePublicKey(pem string) (*rsa.PublicKey, error) {
	if pem == "" {
		return nil, nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("JWT_PUBLIC_KEY: %w", err)
	}
	return key, nil
}

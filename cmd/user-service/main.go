package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/userhub/user-service/internal/api"
	"github.com/userhub/user-service/internal/api/metrics"
	"github.com/userhub/user-service/internal/core/service"
	"github.com/userhub/user-service/internal/infrastructure/config"
	"github.com/userhub/user-service/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "user-service",
		Env:     cfg.Env,
	})

	in, err := connect(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		in.close(closeCtx)
	}()

	idp, auth, err := identityProvider(context.Background(), cfg, in.creds, log)
	if err != nil {
		return err
	}
	publicKey, err := parsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return err
	}

	var bootOpts []service.BootstrapOption
	if in.locker != nil {
		bootOpts = append(bootOpts, service.WithLocker(in.locker))
	}
	boot := service.NewAdminBootstrapper(in.users, idp, cfg.AdminSeed(), log.With().Str("component", "bootstrap").Logger(), bootOpts...)

	state, err := boot.Run(ctx)
	if err != nil {
		metrics.BootstrapRunsTotal.WithLabelValues("error").Inc()
		if !cfg.IsTest() {
			return fmt.Errorf("admin bootstrap: %w", err)
		}
		log.Error().Err(err).Msg("admin bootstrap failed, continuing in test environment")
	} else {
		metrics.BootstrapRunsTotal.WithLabelValues(string(state)).Inc()
		log.Info().Str("state", string(state)).Msg("admin bootstrap finished")
	}

	resolver := service.NewIdentityResolver(in.users)
	policyOpts := []service.PolicyOption{
		service.WithDecisionHook(func(d service.Decision, reason string) {
			metrics.ObserveDecision(d.String(), reason)
		}),
	}
	if cfg.AdminOnlyLookups {
		policyOpts = append(policyOpts, service.WithAdminOnlyLookups())
	}
	policy := service.NewOwnershipPolicy(resolver, policyOpts...)

	deps := api.Deps{
		Users:        service.NewUserService(in.users, resolver, policy, log.With().Str("component", "users").Logger()),
		JWTSecret:    cfg.JWTSecret,
		JWTIssuer:    cfg.JWTIssuer,
		JWTPublicKey: publicKey,
		Health:       in.health,
		Log:          log,
	}
	if auth != nil {
		deps.Auth = auth
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info().Msg("shutdown complete")
		return nil
	})

	return g.Wait()
}

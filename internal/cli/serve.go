package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"

	"github.com/familycabin/cabin/internal/config"
	"github.com/familycabin/cabin/internal/feed"
	httptransport "github.com/familycabin/cabin/internal/http"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the swap expiry sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, skipMigrate)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending schema migrations on start")
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, skipMigrate bool) error {
	rt, err := loadRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	a, err := openApp(ctx, rt.cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if !skipMigrate {
		if err := a.storage.Migrate(ctx); err != nil {
			return err
		}
	}

	store, closeStore, err := limiterStore(ctx, rt.cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	limit, err := httptransport.RateLimit(store, rt.cfg.SwapResponseRate, rt.cfg.TrustForwardHeader, logger)
	if err != nil {
		return err
	}

	routes := httptransport.RouterConfig{
		Auth:              httptransport.NewAuthHandler(a.auth, logger),
		Users:             httptransport.NewUserHandler(a.users, a.colors, logger),
		Reservations:      httptransport.NewReservationHandler(a.reservations, logger),
		Swaps:             httptransport.NewSwapHandler(a.swaps, logger),
		SwapResponse:      httptransport.NewSwapResponseHandler(a.swaps, logger),
		Calendar:          httptransport.NewCalendarHandler(a.reservations, feed.Options{Name: "Family cabin", UIDDomain: hostOf(rt.cfg.PublicURL)}, time.Now, logger),
		Health:            httptransport.NewHealthHandler(a.storage, logger),
		Session:           httptransport.RequireSession(a.auth, logger),
		SwapResponseLimit: limit,
		Middleware:        []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	}
	if a.weather != nil {
		routes.Weather = httptransport.NewWeatherHandler(a.weather, logger)
	}

	sweeper, err := startSweeper(ctx, rt.cfg, a.swaps, a.auth, logger)
	if err != nil {
		return err
	}
	defer func() {
		<-sweeper.Stop().Done()
	}()

	server := &http.Server{
		Addr:              rt.cfg.HTTPAddr,
		Handler:           httptransport.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cabin API listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// limiterStore shares counters through Redis when configured, otherwise keeps
// them in memory.
func limiterStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (limiter.Store, func(), error) {
	if cfg.RedisURL == "" {
		return httptransport.NewMemoryLimiterStore("cabin-swap-response"), func() {}, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse CABIN_REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	store, err := httptransport.NewRedisLimiterStore(client, "cabin-swap-response", time.Minute)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("rate limiter using redis", "addr", opt.Addr)
	return store, func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}, nil
}

func hostOf(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Hostname() == "" {
		return "cabin.local"
	}
	return u.Hostname()
}

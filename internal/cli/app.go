package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/familycabin/cabin/internal/application"
	"github.com/familycabin/cabin/internal/booking"
	"github.com/familycabin/cabin/internal/config"
	"github.com/familycabin/cabin/internal/logging"
	"github.com/familycabin/cabin/internal/notify"
	"github.com/familycabin/cabin/internal/persistence/sqlite"
	"github.com/familycabin/cabin/internal/weather"
)

// runtime is the loaded configuration and process logger shared by commands.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
}

func loadRuntime(opts *RootOptions) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	logger, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, closer: closer}, nil
}

func (r *runtime) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// app wires storage, services and notification delivery.
type app struct {
	storage      *sqlite.Storage
	dispatcher   *notify.Dispatcher
	users        *application.UserService
	auth         *application.AuthService
	reservations *application.ReservationService
	swaps        *application.SwapService
	weather      *weather.Service
	colors       *booking.Colorizer
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	storage, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.DatabasePath), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	mailer, err := newMailer(cfg.SMTP, logger)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	dispatcher := notify.NewDispatcher(mailer, cfg.PublicURL, notify.DefaultSendTimeout, logger)

	now := time.Now
	userRepo := newUserRepositoryAdapter(storage.Users)
	reservationRepo := newReservationRepositoryAdapter(storage.Reservations)
	sessionRepo := newSessionRepositoryAdapter(storage.Sessions)
	swapRepo := newSwapRepositoryAdapter(storage.Swaps)

	colors := booking.NewColorizer(booking.Palette(cfg.Colors.Palette), cfg.Colors.Overrides)

	a := &app{
		storage:      storage,
		dispatcher:   dispatcher,
		users:        application.NewUserServiceWithLogger(userRepo, application.HashPassword, newID, now, logger),
		auth:         application.NewAuthServiceWithLogger(userRepo, sessionRepo, application.VerifyPassword, newToken, now, cfg.SessionTTL, logger),
		reservations: application.NewReservationServiceWithLogger(reservationRepo, userRepo, colors, newID, now, logger),
		swaps:        application.NewSwapServiceWithLogger(swapRepo, reservationRepo, userRepo, dispatcher, newID, newToken, now, cfg.SwapTTL, logger),
		colors:       colors,
	}

	if cfg.Weather.Enabled {
		opts := []weather.ClientOption{}
		if cfg.Weather.BaseURL != "" {
			opts = append(opts, weather.WithBaseURL(cfg.Weather.BaseURL))
		}
		client := weather.NewClient(weather.Location{
			Latitude:  cfg.Weather.Latitude,
			Longitude: cfg.Weather.Longitude,
			Timezone:  cfg.Timezone.String(),
		}, opts...)
		a.weather = weather.NewService(client, cfg.Weather.TTL, now, logger)
	}

	return a, nil
}

// Close waits for queued email and releases the database.
func (a *app) Close() error {
	if a == nil {
		return nil
	}
	a.dispatcher.Wait()
	return a.storage.Close()
}

func newMailer(cfg config.SMTPConfig, logger *slog.Logger) (notify.Mailer, error) {
	if !cfg.Enabled() {
		logger.Info("no SMTP host configured, emails will be logged")
		return notify.NewLogMailer(logger), nil
	}
	mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
	if err != nil {
		return nil, fmt.Errorf("configure smtp: %w", err)
	}
	return mailer, nil
}

func newID() string {
	return uuid.NewString()
}

// newToken returns 32 random bytes, hex encoded, for sessions and swap links.
func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

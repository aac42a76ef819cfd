package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/familycabin/cabin/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger

	Users        *UserRepository
	Sessions     *SessionRepository
	Reservations *ReservationRepository
	Swaps        *SwapRepository
}

// Open connects to the database described by cfg. Call Migrate before use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:         pool,
		logger:       logger,
		Users:        NewUserRepository(pool),
		Sessions:     NewSessionRepository(pool),
		Reservations: NewReservationRepository(pool),
		Swaps:        NewSwapRepository(pool),
	}, nil
}

// OpenPath opens the database file at path with default settings.
func OpenPath(path string) (*Storage, error) {
	return Open(context.Background(), DefaultConfig(path), nil)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(s.pool.DB(), migrationFiles, "migrations", s.logger)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema versions.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(s.pool.DB(), migrationFiles, "migrations", s.logger)
	return manager.Status(ctx)
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("sqlite storage is not open")
	}
	return s.pool.Ping(ctx)
}

// Close releases the database.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	return s.pool.Close()
}

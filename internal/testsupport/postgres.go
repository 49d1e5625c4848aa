// Package testsupport starts throwaway PostgreSQL and Redis containers for
// integration tests and seeds them with automation fixtures.
package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/database"
)

const (
	postgresImage    = "postgres:15-alpine"
	postgresDB       = "valkyrie_test"
	postgresUser     = "testuser"
	postgresPassword = "testpassword"
)

// PostgresContainer is a migrated database plus a pool built the same way
// the services build theirs.
type PostgresContainer struct {
	Container        testcontainers.Container
	DB               *pgxpool.Pool
	ConnectionString string
}

// Terminate closes the pool and removes the container.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	c.DB.Close()
	return c.Container.Terminate(ctx)
}

// StartPostgresContainer runs every .sql file in migrationsDir, in name
// order, as init scripts of a fresh container.
func StartPostgresContainer(ctx context.Context, migrationsDir string) (*PostgresContainer, error) {
	scripts, err := migrationScripts(migrationsDir)
	if err != nil {
		return nil, err
	}

	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase(postgresDB),
		postgres.WithUsername(postgresUser),
		postgres.WithPassword(postgresPassword),
		postgres.WithInitScripts(scripts...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(10*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:             connStr,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		PingMaxRetries:  3,
		PingBackoff:     500 * time.Millisecond,
	})
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	return &PostgresContainer{Container: ctr, DB: pool, ConnectionString: connStr}, nil
}

func migrationScripts(dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var scripts []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			scripts = append(scripts, filepath.Join(abs, e.Name()))
		}
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no migration files found in %s", abs)
	}
	slices.Sort(scripts)
	return scripts, nil
}

// Exec runs sql and fails the test on error.
func (c *PostgresContainer) Exec(t *testing.T, sql string, args ...any) {
	t.Helper()
	_, err := c.DB.Exec(context.Background(), sql, args...)
	require.NoError(t, err, "exec failed: %s", sql)
}

// SeedTenant inserts an active tenant.
func (c *PostgresContainer) SeedTenant(t *testing.T, id, name string) {
	t.Helper()
	c.Exec(t, `INSERT INTO tenants (id, name) VALUES ($1, $2)`, id, name)
}

// SeedEvent appends one player event with JSON-encoded properties.
func (c *PostgresContainer) SeedEvent(t *testing.T, tenantID, playerID, name string, props map[string]any, at time.Time) {
	t.Helper()
	raw, err := json.Marshal(props)
	require.NoError(t, err)
	c.Exec(t, `INSERT INTO events (tenant_id, player_id, name, properties, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		tenantID, playerID, name, raw, at)
}

// Reset empties every table, leaving the schema in place.
func (c *PostgresContainer) Reset(t *testing.T) {
	t.Helper()
	c.Exec(t, `TRUNCATE segment_members, segments, rule_executions, rule_variants, rules, events, tenants CASCADE`)
}

// Package dbtest starts a throwaway PostgreSQL container for integration
// tests and migrates tenant schemas into it.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/samasante/amina/internal/platform/db"
)

const (
	image    = "postgres:16-alpine"
	user     = "amina"
	password = "amina"
	database = "amina_test"
)

// Postgres is a running container plus a pool connected to it.
type Postgres struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
	container     testcontainers.Container
}

// Start launches the container and waits until it accepts connections.
func Start(ctx context.Context) (*Postgres, error) {
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       database,
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": password,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("postgres port: %w", err)
	}
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port.Port(), database)

	// The port can be open before the server accepts queries.
	var pool *pgxpool.Pool
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err = db.NewPool(ctx, connStr, 10, 1)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			_ = container.Terminate(ctx)
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &Postgres{
		Pool:          pool,
		ConnStr:       connStr,
		MigrationsDir: MigrationsDir(),
		container:     container,
	}, nil
}

// Close releases the pool and removes the container.
func (p *Postgres) Close(ctx context.Context) {
	p.Pool.Close()
	_ = p.container.Terminate(ctx)
}

// NewTenant creates and migrates a fresh tenant schema, dropped when the test
// ends.
func (p *Postgres) NewTenant(t *testing.T, tenantID string) {
	t.Helper()
	ctx := context.Background()
	if err := db.CreateTenantSchema(ctx, p.Pool, tenantID, p.MigrationsDir); err != nil {
		t.Fatalf("create tenant %s: %v", tenantID, err)
	}
	t.Cleanup(func() {
		schema := pgx.Identifier{db.SchemaName(tenantID)}.Sanitize()
		if _, err := p.Pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
	})
}

// MigrationsDir locates the repository's migrations directory.
func MigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "..", "..", "migrations")
}

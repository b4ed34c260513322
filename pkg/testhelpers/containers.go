package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/l10nledger/ledger/migrations"
	"github.com/l10nledger/ledger/pkg/database"
)

// PostgresImage is the server image integration tests run against.
const PostgresImage = "postgres:16-alpine"

// TestDB holds the shared test database container and a migrated connection pool.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container with migrations applied.
// The container is created once and reused across all tests in the run, so
// tests must use their own string files, languages and model ids.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "ledger_test",
			"POSTGRES_USER":     "ledger",
			"POSTGRES_PASSWORD": "test_password",
		},
		// the entrypoint restarts the server once after init
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://ledger:test_password@%s:%s/ledger_test?sslmode=disable",
		host, port.Port())

	if err := migrate(connStr); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

func migrate(connStr string) error {
	sqlDB, err := database.OpenSQL(connStr)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrations.FS, zap.NewNop()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

var nameSeq atomic.Int64

// UniqueName returns prefix with a run-unique suffix, for isolating rows of
// one test in the shared database.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), nameSeq.Add(1))
}

//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// testConfig points at the shared container started by TestMain.
var testConfig PostgresMetadataStoreConfig

// TestMain starts one PostgreSQL container for all tests in the package.
func TestMain(m *testing.M) {
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("mtpd_test"),
		tcpostgres.WithUsername("mtpd_test"),
		tcpostgres.WithPassword("mtpd_test"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}
	portNum, _ := strconv.Atoi(port.Port())

	testConfig = PostgresMetadataStoreConfig{
		Host:        host,
		Port:        portNum,
		Database:    "mtpd_test",
		User:        "mtpd_test",
		Password:    "mtpd_test",
		SSLMode:     "disable",
		AutoMigrate: true,
	}

	exitCode := m.Run()

	if err := testcontainers.TerminateContainer(ctr); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
	}
	os.Exit(exitCode)
}

// newTestStore opens a store on the shared container with empty tables.
func newTestStore(t *testing.T) *PostgresMetadataStore {
	t.Helper()

	cfg := testConfig
	store, err := NewPostgresMetadataStore(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("NewPostgresMetadataStore() failed: %v", err)
	}
	if _, err := store.pool.Exec(context.Background(), `TRUNCATE objects, object_references`); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

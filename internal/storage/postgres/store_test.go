package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"ammPool/internal/storage"
	"ammPool/internal/storage/storagetest"
)

// Runs against a real database when AMM_TEST_PG_DSN is set. Each subtest gets its own schema.
func TestStore(t *testing.T) {
	dsn := os.Getenv("AMM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AMM_TEST_PG_DSN not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		schema := fmt.Sprintf("amm_test_%d", time.Now().UnixNano())

		admin, err := NewStore(ctx, dsn, "admin")
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		if _, err := admin.pool.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
			t.Fatalf("create schema: %v", err)
		}

		store, err := NewStore(ctx, withSearchPath(dsn, schema), "test")
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		t.Cleanup(func() {
			store.Close()
			admin.pool.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
			admin.Close()
		})
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return store
	})
}

func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

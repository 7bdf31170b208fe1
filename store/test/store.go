// Package test provides store testing helpers backed by a throwaway SQLite
// database. Set CONVMETA_TEST_DRIVER=postgres and CONVMETA_TEST_DSN to run
// the same suite against PostgreSQL.
package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/simplechat/convmeta/internal/profile"
	"github.com/simplechat/convmeta/store"
	"github.com/simplechat/convmeta/store/db"
)

func getDriverFromEnv() string {
	if driver := os.Getenv("CONVMETA_TEST_DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

// NewTestingStore creates a migrated store over a fresh database. SQLite
// databases live in the test's temp dir and vanish with it.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: getDriverFromEnv(),
	}
	if p.Driver == "postgres" {
		p.DSN = os.Getenv("CONVMETA_TEST_DSN")
		if p.DSN == "" {
			t.Skip("CONVMETA_TEST_DSN not set")
		}
	} else {
		dir := t.TempDir()
		p.Data = dir
		p.DSN = filepath.Join(dir, "convmeta_test.db")
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	if err := driver.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	ts := store.New(driver, p)
	t.Cleanup(func() {
		if err := ts.Close(); err != nil {
			t.Logf("failed to close store: %v", err)
		}
	})
	return ts
}

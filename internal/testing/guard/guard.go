// Package guard prepares the process for tests and gates integration tests
// that need a live PostgreSQL.
package guard

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/mini-erp/mini-erp/internal/platform/db"
)

// DSNEnv names the variable holding the integration database DSN.
const DSNEnv = "LEDGER_TEST_PG_DSN"

var (
	once       sync.Once
	schemaChar = regexp.MustCompile(`[^a-z0-9_]+`)
)

func init() {
	once.Do(func() {
		if os.Getenv("MINIERP_TEST_MODE") == "" {
			_ = os.Setenv("MINIERP_TEST_MODE", "1")
		}
	})
}

// Postgres returns a pool bound to a freshly migrated schema private to t.
// The test is skipped when no DSN is configured.
func Postgres(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping PostgreSQL integration test", DSNEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := schemaName(t.Name())
	ident := pgx.Identifier{schema}.Sanitize()
	admin, err := db.New(ctx, dsn, db.PoolConfig{MaxConns: 2})
	require.NoError(t, err)
	_, err = admin.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE; CREATE SCHEMA %s", ident, ident))
	require.NoError(t, err)

	pool, err := db.New(ctx, dsn, db.PoolConfig{MaxConns: 16, SearchPath: schema})
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+ident+" CASCADE")
		admin.Close()
	})

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func schemaName(testName string) string {
	name := schemaChar.ReplaceAllString(strings.ToLower(testName), "_")
	if len(name) > 48 {
		name = name[:48]
	}
	return "it_" + name
}

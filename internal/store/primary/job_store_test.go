package primary

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"wardrobe/internal/store"
	"wardrobe/internal/store/storetest"
)

// Runs only against a disposable database: WARDROBE_TEST_DSN=postgres://... go test ./...
func TestJobStore(t *testing.T) {
	dsn := os.Getenv("WARDROBE_TEST_DSN")
	if dsn == "" {
		t.Skip("WARDROBE_TEST_DSN not set")
	}
	ctx := context.Background()
	storetest.Run(t, func(t *testing.T) store.JobStore {
		s, err := NewPrimaryStore(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(s.Close)
		require.NoError(t, s.EnsureSchema(ctx))
		_, err = s.db.Exec(ctx, `TRUNCATE processing_jobs RESTART IDENTITY`)
		require.NoError(t, err)
		return s
	})
}

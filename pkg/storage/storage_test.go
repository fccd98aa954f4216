package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
	"github.com/0xmhha/token-screener/pkg/token"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default pebble", func(c *Config) {}, false},
		{"empty path", func(c *Config) { c.Path = "" }, true},
		{"negative cache", func(c *Config) { c.Cache = -1 }, true},
		{"zero compaction", func(c *Config) { c.CompactionConcurrency = 0 }, true},
		{"postgres without dsn", func(c *Config) { c.Backend = constants.StorageBackendPostgres }, true},
		{"postgres with dsn", func(c *Config) {
			c.Backend = constants.StorageBackendPostgres
			c.DSN = "postgres://localhost/screener"
		}, false},
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/tmp/screener")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpen_Pebble(t *testing.T) {
	s, err := Open(context.Background(), DefaultConfig(t.TempDir()), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*PebbleStore)
	assert.True(t, ok)

	_, err = Open(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestNormalizeQuery(t *testing.T) {
	q := normalizeQuery(token.Query{Limit: -1, Offset: -5})
	assert.Equal(t, constants.DefaultQueryLimit, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, token.SortDateCreatedDesc, q.SortBy)

	q = normalizeQuery(token.Query{Limit: 1_000_000})
	assert.Equal(t, constants.MaxQueryLimit, q.Limit)
}

// TestPostgresStore runs against a live database when SCREENER_TEST_POSTGRES_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SCREENER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCREENER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, "TRUNCATE tokens")
	require.NoError(t, err)

	rec := testRecord(1, "Alpha", baseTime)
	rec.Data = []byte(`{"k":1}`)
	rec.Owner = token.StringPtr("0xowner")
	require.NoError(t, s.Upsert(ctx, rec))
	require.NoError(t, s.Upsert(ctx, testRecord(2, "Bravo", baseTime.Add(1e9))))

	got, err := s.Get(ctx, testAddress(1))
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)
	assert.Equal(t, "0xowner", *got.Owner)
	assert.JSONEq(t, `{"k":1}`, string(got.Data))

	latest, err := s.Query(ctx, token.LatestQuery(1))
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "Bravo", latest[0].Name)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.Delete(ctx, testAddress(1)))
	_, err = s.Get(ctx, testAddress(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

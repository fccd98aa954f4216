package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/pkg/token"
)

// migrationsFS embeds the PostgreSQL schema files.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// RunMigrations applies all embedded SQL files in lexical order.
// Migrations are idempotent.
func RunMigrations(ctx context.Context, pool *Pool) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	pool   *Pool
	logger *zap.Logger
	closed atomic.Bool
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects, applies migrations and returns the store
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewPostgresStoreWithPool(pool, logger), nil
}

// NewPostgresStoreWithPool wraps an existing pool
func NewPostgresStoreWithPool(pool *Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Get retrieves a token by address. Returns ErrNotFound if not exists.
func (s *PostgresStore) Get(ctx context.Context, address common.Address) (*token.Record, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	query := "SELECT " + strings.Join(tokenColumns, ", ") + " FROM tokens WHERE contract_address = $1"
	row := s.pool.QueryRow(ctx, query, token.NormalizeAddress(address))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return rec, nil
}

// Upsert inserts the record or replaces every column of the existing row
func (s *PostgresStore) Upsert(ctx context.Context, rec *token.Record) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}

	address, err := rec.Address()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	stored := *rec
	stored.ContractAddress = token.NormalizeAddress(address)

	if _, err := s.pool.Exec(ctx, buildUpsert(), recordArgs(&stored)...); err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// Query returns the tokens matching q
func (s *PostgresStore) Query(ctx context.Context, q token.Query) ([]token.Record, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	sql, args, err := BuildTokenQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	records := make([]token.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return records, nil
}

// Delete removes a token; missing rows are not an error
func (s *PostgresStore) Delete(ctx context.Context, address common.Address) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM tokens WHERE contract_address = $1", token.NormalizeAddress(address)); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Count returns the number of stored tokens
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	if err := s.ensureNotClosed(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tokens").Scan(&n); err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return n, nil
}

// recordArgs returns the column values in tokenColumns order
func recordArgs(r *token.Record) []any {
	var data []byte
	if len(r.Data) > 0 {
		data = r.Data
	}
	return []any{
		r.ContractAddress, r.Name, r.Symbol, r.Decimals, r.TotalSupply,
		r.Owner, r.Creator,
		r.IsVerified, r.IsRenounced, r.IsActive, r.IsV3, r.IsScam, r.IsRugPull, r.IsDumpRisk,
		r.RetryCount, r.PreviousContracts,
		r.LiquidityPoolAddress, r.LiquidityPeriod, r.InitialLiquidity, r.CurrentLiquidity,
		r.IsLiquidityLocked, r.LockedLiquidity,
		r.IsTaxModifiable, r.SellTax, r.BuyTax, r.TransferTax,
		r.Score, r.HoldersCount,
		data, r.Code, r.ABI, r.Error,
		r.DateCreated, r.DateUpdated,
	}
}

// scanRecord scans a single row in tokenColumns order.
func scanRecord(row pgx.Row) (*token.Record, error) {
	var r token.Record
	var data []byte
	err := row.Scan(
		&r.ContractAddress, &r.Name, &r.Symbol, &r.Decimals, &r.TotalSupply,
		&r.Owner, &r.Creator,
		&r.IsVerified, &r.IsRenounced, &r.IsActive, &r.IsV3, &r.IsScam, &r.IsRugPull, &r.IsDumpRisk,
		&r.RetryCount, &r.PreviousContracts,
		&r.LiquidityPoolAddress, &r.LiquidityPeriod, &r.InitialLiquidity, &r.CurrentLiquidity,
		&r.IsLiquidityLocked, &r.LockedLiquidity,
		&r.IsTaxModifiable, &r.SellTax, &r.BuyTax, &r.TransferTax,
		&r.Score, &r.HoldersCount,
		&data, &r.Code, &r.ABI, &r.Error,
		&r.DateCreated, &r.DateUpdated,
	)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		r.Data = json.RawMessage(data)
	}
	return &r, nil
}

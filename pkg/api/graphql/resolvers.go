package graphql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
	"github.com/0xmhha/token-screener/pkg/storage"
	"github.com/0xmhha/token-screener/pkg/token"
)

// extractContext safely extracts context.Context from interface{}
func extractContext(ctx interface{}) context.Context {
	if c, ok := ctx.(context.Context); ok && c != nil {
		return c
	}
	return context.Background()
}

func (s *Schema) resolveToken(p graphql.ResolveParams) (interface{}, error) {
	raw, _ := p.Args["address"].(string)
	address, err := token.ParseAddress(raw)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(extractContext(p.Context), address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to get token", zap.String("address", raw), zap.Error(err))
		return nil, fmt.Errorf("failed to load token")
	}
	return recordToMap(rec), nil
}

func (s *Schema) resolveTokens(p graphql.ResolveParams) (interface{}, error) {
	q, err := parseTokenQuery(p.Args)
	if err != nil {
		return nil, err
	}

	records, err := s.store.Query(extractContext(p.Context), q)
	if err != nil {
		s.logger.Error("failed to query tokens", zap.Error(err))
		return nil, fmt.Errorf("failed to query tokens")
	}
	return recordsToList(records), nil
}

func (s *Schema) resolveTokenCount(p graphql.ResolveParams) (interface{}, error) {
	n, err := s.store.Count(extractContext(p.Context))
	if err != nil {
		return nil, err
	}
	return strconv.FormatInt(n, 10), nil
}

func (s *Schema) resolveLatestTokens(p graphql.ResolveParams) (interface{}, error) {
	records, err := s.latest.List(extractContext(p.Context))
	if err != nil {
		return nil, err
	}
	return recordsToList(records), nil
}

// parseTokenQuery maps the tokens field arguments onto a storage query
func parseTokenQuery(args map[string]interface{}) (token.Query, error) {
	var q token.Query

	sortBy, _ := args["sortBy"].(string)
	key, err := token.ParseSortKey(sortBy)
	if err != nil {
		return q, err
	}
	q.SortBy = key

	q.Limit = constants.DefaultQueryLimit
	if l, ok := args["limit"].(int); ok {
		if l <= 0 || l > constants.MaxQueryLimit {
			return q, fmt.Errorf("limit must be between 1 and %d", constants.MaxQueryLimit)
		}
		q.Limit = l
	}
	if o, ok := args["offset"].(int); ok {
		if o < 0 {
			return q, fmt.Errorf("offset must not be negative")
		}
		q.Offset = o
	}

	f, ok := args["filter"].(map[string]interface{})
	if !ok {
		return q, nil
	}

	if v, ok := f["name"].(string); ok && v != "" {
		q.Name = &v
	}
	if v, ok := f["symbol"].(string); ok && v != "" {
		q.Symbol = &v
	}
	if v, ok := f["contractAddress"].(string); ok && v != "" {
		addr, err := token.ParseAddress(v)
		if err != nil {
			return q, err
		}
		normalized := token.NormalizeAddress(addr)
		q.ContractAddress = &normalized
	}
	if v, ok := f["isVerified"].(bool); ok {
		q.IsVerified = &v
	}
	if v, ok := f["isRenounced"].(bool); ok {
		q.IsRenounced = &v
	}
	if v, ok := f["isActive"].(bool); ok {
		q.IsActive = &v
	}
	if q.FromDate, err = parseTime(f, "fromDate"); err != nil {
		return q, err
	}
	if q.ToDate, err = parseTime(f, "toDate"); err != nil {
		return q, err
	}
	return q, nil
}

func parseTime(f map[string]interface{}, key string) (*time.Time, error) {
	v, ok := f[key].(string)
	if !ok || v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, v)
	}
	return &t, nil
}

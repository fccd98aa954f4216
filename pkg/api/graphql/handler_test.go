package graphql

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/pkg/storage"
	"github.com/0xmhha/token-screener/pkg/token"
)

type mockStore struct {
	records map[string]*token.Record
	lastQ   token.Query
	err     error
}

func (m *mockStore) Get(_ context.Context, address common.Address) (*token.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[token.NormalizeAddress(address)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *mockStore) Query(_ context.Context, q token.Query) ([]token.Record, error) {
	m.lastQ = q
	if m.err != nil {
		return nil, m.err
	}
	var out []token.Record
	for _, rec := range m.records {
		if q.Matches(rec) {
			out = append(out, *rec.Clone())
		}
	}
	return out, nil
}

func (m *mockStore) Count(context.Context) (int64, error) {
	return int64(len(m.records)), m.err
}

type mockLatest struct {
	records []token.Record
}

func (m *mockLatest) List(context.Context) ([]token.Record, error) {
	return m.records, nil
}

var (
	addrA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func fixtureRecord(addr common.Address, name string, verified bool) *token.Record {
	rec := token.NewRecord(addr)
	rec.Name = name
	rec.Symbol = strings.ToUpper(name[:3])
	rec.Decimals = 18
	rec.TotalSupply = "1000000000000000000000000000"
	rec.IsVerified = verified
	rec.LiquidityPeriod = 1 << 40
	rec.DateCreated = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return rec
}

func newTestHandler(t *testing.T) (*Handler, *mockStore) {
	t.Helper()
	store := &mockStore{records: map[string]*token.Record{
		token.NormalizeAddress(addrA): fixtureRecord(addrA, "Alpha", true),
		token.NormalizeAddress(addrB): fixtureRecord(addrB, "Bravo", false),
	}}
	latest := &mockLatest{records: []token.Record{*fixtureRecord(addrB, "Bravo", false)}}

	h, err := NewHandler(store, latest, zap.NewNop())
	require.NoError(t, err)
	return h, store
}

func TestToken(t *testing.T) {
	h, _ := newTestHandler(t)

	res := h.ExecuteQuery(`query($a: String!) { token(address: $a) { contractAddress name symbol decimals totalSupply isVerified liquidityPeriod dateCreated dateUpdated owner } }`,
		map[string]interface{}{"a": addrA.Hex()})
	require.Empty(t, res.Errors)

	tok := res.Data.(map[string]interface{})["token"].(map[string]interface{})
	assert.Equal(t, token.NormalizeAddress(addrA), tok["contractAddress"])
	assert.Equal(t, "Alpha", tok["name"])
	assert.Equal(t, 18, tok["decimals"])
	assert.Equal(t, "1000000000000000000000000000", tok["totalSupply"])
	assert.Equal(t, true, tok["isVerified"])
	assert.Equal(t, "1099511627776", tok["liquidityPeriod"])
	assert.Equal(t, "2024-05-01T12:00:00Z", tok["dateCreated"])
	assert.Nil(t, tok["dateUpdated"])
	assert.Nil(t, tok["owner"])
}

func TestToken_NotFoundIsNull(t *testing.T) {
	h, _ := newTestHandler(t)

	res := h.ExecuteQuery(`{ token(address: "0x00000000000000000000000000000000000000cc") { name } }`, nil)
	require.Empty(t, res.Errors)
	assert.Nil(t, res.Data.(map[string]interface{})["token"])
}

func TestToken_InvalidAddress(t *testing.T) {
	h, _ := newTestHandler(t)

	res := h.ExecuteQuery(`{ token(address: "0xnothex") { name } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "invalid contract address")
}

func TestToken_StorageErrorIsMasked(t *testing.T) {
	h, store := newTestHandler(t)
	store.err = errors.New("connection refused on 10.0.0.5")

	res := h.ExecuteQuery(`{ token(address: "`+addrA.Hex()+`") { name } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.NotContains(t, res.Errors[0].Message, "10.0.0.5")
}

func TestTokens_Filter(t *testing.T) {
	h, store := newTestHandler(t)

	res := h.ExecuteQuery(`{ tokens(filter: {isVerified: true, name: "alp"}, sortBy: NAME_ASC, limit: 10, offset: 0) { name } }`, nil)
	require.Empty(t, res.Errors)

	list := res.Data.(map[string]interface{})["tokens"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "Alpha", list[0].(map[string]interface{})["name"])

	assert.Equal(t, token.SortNameAsc, store.lastQ.SortBy)
	assert.Equal(t, 10, store.lastQ.Limit)
	require.NotNil(t, store.lastQ.IsVerified)
	assert.True(t, *store.lastQ.IsVerified)
	assert.Nil(t, store.lastQ.IsRenounced)
}

func TestTokens_Defaults(t *testing.T) {
	h, store := newTestHandler(t)

	res := h.ExecuteQuery(`{ tokens { contractAddress } }`, nil)
	require.Empty(t, res.Errors)
	assert.Len(t, res.Data.(map[string]interface{})["tokens"], 2)
	assert.Equal(t, token.SortDateCreatedDesc, store.lastQ.SortBy)
	assert.Equal(t, 100, store.lastQ.Limit)
}

func TestTokens_InvalidArgs(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, q := range []string{
		`{ tokens(limit: 5000) { name } }`,
		`{ tokens(offset: -1) { name } }`,
		`{ tokens(filter: {fromDate: "yesterday"}) { name } }`,
		`{ tokens(filter: {contractAddress: "0x12"}) { name } }`,
	} {
		res := h.ExecuteQuery(q, nil)
		assert.NotEmpty(t, res.Errors, q)
	}
}

func TestTokenCountAndLatest(t *testing.T) {
	h, _ := newTestHandler(t)

	res := h.ExecuteQuery(`{ tokenCount latestTokens { name } }`, nil)
	require.Empty(t, res.Errors)
	data := res.Data.(map[string]interface{})
	assert.Equal(t, "2", data["tokenCount"])
	latest := data["latestTokens"].([]interface{})
	require.Len(t, latest, 1)
	assert.Equal(t, "Bravo", latest[0].(map[string]interface{})["name"])
}

func TestNewHandler_WithoutLatest(t *testing.T) {
	h, err := NewHandler(&mockStore{}, nil, nil)
	require.NoError(t, err)

	res := h.ExecuteQuery(`{ latestTokens { name } }`, nil)
	assert.NotEmpty(t, res.Errors)

	_, err = NewHandler(nil, nil, nil)
	assert.Error(t, err)
}

func TestServeHTTP(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ tokenCount }"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tokenCount": "2"`)
}

func TestPlaygroundHandler(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.PlaygroundHandler("/api/graphql").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playground", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint: '/api/graphql'")
}

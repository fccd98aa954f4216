package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/token-screener/pkg/token"
)

type mockQuerier struct {
	mu      sync.Mutex
	records []token.Record
	err     error
	calls   int
	lastQ   token.Query
}

func (m *mockQuerier) Query(_ context.Context, q token.Query) ([]token.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastQ = q
	if m.err != nil {
		return nil, m.err
	}
	n := len(m.records)
	if q.Limit > 0 && q.Limit < n {
		n = q.Limit
	}
	return append([]token.Record(nil), m.records[:n]...), nil
}

func record(i int) *token.Record {
	rec := token.NewRecord(common.HexToAddress(fmt.Sprintf("0x%040x", i)))
	rec.Name = fmt.Sprintf("Token %d", i)
	rec.DateCreated = time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC)
	return rec
}

func TestTouch_InsertsAtFront(t *testing.T) {
	c := NewLatestTokens(&mockQuerier{}, Config{Capacity: 3})
	for i := 1; i <= 3; i++ {
		c.Touch(record(i))
	}

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Token 3", list[0].Name)
	assert.Equal(t, "Token 1", list[2].Name)
}

func TestTouch_ReplacesInPlace(t *testing.T) {
	c := NewLatestTokens(&mockQuerier{}, Config{Capacity: 3})
	for i := 1; i <= 3; i++ {
		c.Touch(record(i))
	}

	updated := record(1)
	updated.IsRenounced = true
	c.Touch(updated)

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Token 1", list[2].Name, "position unchanged")
	assert.True(t, list[2].IsRenounced)
}

func TestTouch_EvictsOldestInserted(t *testing.T) {
	c := NewLatestTokens(&mockQuerier{}, Config{Capacity: 3})
	for i := 1; i <= 3; i++ {
		c.Touch(record(i))
	}
	// Updating token 1 does not protect it from eviction.
	c.Touch(record(1))
	c.Touch(record(4))

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Token 4", "Token 3", "Token 2"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestTouch_NeverExceedsCapacity(t *testing.T) {
	c := NewLatestTokens(&mockQuerier{}, Config{})
	assert.Equal(t, 100, c.Capacity())

	for i := 1; i <= 250; i++ {
		c.Touch(record(i))
	}
	assert.Equal(t, 100, c.Len())

	list, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 100)
	assert.Equal(t, "Token 250", list[0].Name)
	assert.Equal(t, "Token 151", list[99].Name)
}

func TestList_LoadsOnceWhenEmpty(t *testing.T) {
	q := &mockQuerier{}
	for i := 200; i > 0; i-- {
		q.records = append(q.records, *record(i))
	}
	c := NewLatestTokens(q, Config{})

	list, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 100)
	assert.Equal(t, 1, q.calls)
	assert.Equal(t, token.SortDateCreatedDesc, q.lastQ.SortBy)
	assert.Equal(t, 100, q.lastQ.Limit)
	assert.Equal(t, "Token 200", list[0].Name)

	_, err = c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, q.calls, "served from memory")
}

func TestList_StorageError(t *testing.T) {
	q := &mockQuerier{err: errors.New("db down")}
	c := NewLatestTokens(q, Config{})

	_, err := c.List(context.Background())
	assert.ErrorContains(t, err, "db down")
	assert.Zero(t, c.Len())
}

func TestList_ReturnsCopies(t *testing.T) {
	c := NewLatestTokens(&mockQuerier{}, Config{})
	rec := record(1)
	rec.Owner = token.StringPtr("0xowner")
	c.Touch(rec)

	*rec.Owner = "mutated by caller"
	list, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xowner", *list[0].Owner)

	*list[0].Owner = "mutated by reader"
	again, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xowner", *again[0].Owner)
}

func TestRefresh(t *testing.T) {
	q := &mockQuerier{records: []token.Record{*record(9), *record(8)}}
	c := NewLatestTokens(q, Config{})
	c.Touch(record(1))

	require.NoError(t, c.Refresh(context.Background()))
	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Token 9", list[0].Name)

	q.err = errors.New("db down")
	assert.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, c.Len(), "failed refresh keeps entries")
}

func TestConcurrentTouchAndList(t *testing.T) {
	c := NewLatestTokens(&mockQuerier{}, Config{Capacity: 10})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Touch(record(i))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = c.List(context.Background())
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 10)
}

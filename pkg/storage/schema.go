package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/token-screener/pkg/token"
)

// Key prefixes for different data types
const (
	prefixTokens         = "/data/tokens/"
	prefixIdxCreated     = "/index/tokens/created/"
	createdTimestampSize = 20
)

// TokenKey returns the key of a token record
func TokenKey(address common.Address) []byte {
	return []byte(prefixTokens + token.NormalizeAddress(address))
}

// TokenKeyPrefix returns the prefix of all token records
func TokenKeyPrefix() []byte {
	return []byte(prefixTokens)
}

// CreatedIndexKey returns the date_created index key of a token.
// Timestamps are zero-padded so lexical order is chronological.
func CreatedIndexKey(created time.Time, address string) []byte {
	return []byte(fmt.Sprintf("%s%0*d/%s", prefixIdxCreated, createdTimestampSize, createdNanos(created), strings.ToLower(address)))
}

// CreatedIndexPrefix returns the prefix of the date_created index
func CreatedIndexPrefix() []byte {
	return []byte(prefixIdxCreated)
}

// addressFromCreatedIndexKey extracts the address from a date_created index key
func addressFromCreatedIndexKey(key []byte) (string, error) {
	s := string(key)
	if !strings.HasPrefix(s, prefixIdxCreated) {
		return "", fmt.Errorf("not a created index key: %q", s)
	}
	rest := strings.TrimPrefix(s, prefixIdxCreated)
	if len(rest) < createdTimestampSize+2 || rest[createdTimestampSize] != '/' {
		return "", fmt.Errorf("malformed created index key: %q", s)
	}
	return rest[createdTimestampSize+1:], nil
}

func createdNanos(t time.Time) int64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return t.UnixNano()
}

// prefixUpperBound returns the upper bound for prefix iteration
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

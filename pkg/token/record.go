package token

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is the per-contract aggregate of everything learned about a token.
// JSON field names are part of the public wire format, including the
// historical misspellings of liqudityPeriod and isLiquidyLocked.
type Record struct {
	ContractAddress string  `json:"contractAddress"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	Decimals        int32   `json:"decimals"`
	TotalSupply     string  `json:"totalSupply"`
	Owner           *string `json:"owner"`
	Creator         *string `json:"creator"`

	IsVerified  bool `json:"isVerified"`
	IsRenounced bool `json:"isRenounced"`
	IsActive    bool `json:"isActive"`
	IsV3        bool `json:"isV3"`
	IsScam      bool `json:"isScam"`
	IsRugPull   bool `json:"isRugPull"`
	IsDumpRisk  bool `json:"isDumpRisk"`

	RetryCount        int32 `json:"retryCount"`
	PreviousContracts int32 `json:"previousContracts"`

	LiquidityPoolAddress *string `json:"liquidityPoolAddress"`
	LiquidityPeriod      int64   `json:"liqudityPeriod"`
	InitialLiquidity     float64 `json:"initialLiquidity"`
	CurrentLiquidity     float64 `json:"currentLiquidity"`
	IsLiquidityLocked    bool    `json:"isLiquidyLocked"`
	LockedLiquidity      float64 `json:"lockedLiquidity"`

	IsTaxModifiable bool    `json:"isTaxModifiable"`
	SellTax         float64 `json:"sellTax"`
	BuyTax          float64 `json:"buyTax"`
	TransferTax     float64 `json:"transferTax"`

	Score        int32 `json:"score"`
	HoldersCount int64 `json:"holdersCount"`

	Data  json.RawMessage `json:"data,omitempty"`
	Code  *string         `json:"code"`
	ABI   *string         `json:"abi"`
	Error *string         `json:"error"`

	DateCreated time.Time  `json:"dateCreated"`
	DateUpdated *time.Time `json:"dateUpdated"`
}

// NewRecord returns an empty record keyed by the normalized address
func NewRecord(address common.Address) *Record {
	return &Record{ContractAddress: NormalizeAddress(address)}
}

// NormalizeAddress renders an address as lowercase 0x hex, the storage key format
func NormalizeAddress(address common.Address) string {
	return strings.ToLower(address.Hex())
}

// ParseAddress validates and normalizes a hex address string
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// Address returns the parsed contract address
func (r *Record) Address() (common.Address, error) {
	return ParseAddress(r.ContractAddress)
}

// HasSupply reports whether the record carries a non-zero total supply.
// Records without supply are not real tokens yet and are never persisted.
func (r *Record) HasSupply() bool {
	if r.TotalSupply == "" {
		return false
	}
	supply, ok := new(big.Int).SetString(r.TotalSupply, 10)
	if !ok {
		return false
	}
	return supply.Sign() > 0
}

// Clone returns a deep copy so holders never alias each other's state
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Owner = cloneString(r.Owner)
	c.Creator = cloneString(r.Creator)
	c.LiquidityPoolAddress = cloneString(r.LiquidityPoolAddress)
	c.Code = cloneString(r.Code)
	c.ABI = cloneString(r.ABI)
	c.Error = cloneString(r.Error)
	if r.Data != nil {
		c.Data = append(json.RawMessage(nil), r.Data...)
	}
	if r.DateUpdated != nil {
		t := *r.DateUpdated
		c.DateUpdated = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr is a helper for optional string fields
func StringPtr(s string) *string {
	return &s
}

// SortKey is the closed set of orderings a token query supports
type SortKey string

const (
	SortNameAsc         SortKey = "name_asc"
	SortNameDesc        SortKey = "name_desc"
	SortDateCreatedAsc  SortKey = "date_created_asc"
	SortDateCreatedDesc SortKey = "date_created_desc"
)

// ParseSortKey maps user input onto a SortKey; empty selects the default
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return SortDateCreatedDesc, nil
	case SortNameAsc:
		return SortNameAsc, nil
	case SortNameDesc:
		return SortNameDesc, nil
	case SortDateCreatedAsc:
		return SortDateCreatedAsc, nil
	case SortDateCreatedDesc:
		return SortDateCreatedDesc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSortKey, s)
	}
}

// Query filters stored tokens. Nil fields are not applied.
type Query struct {
	Name            *string
	Symbol          *string
	ContractAddress *string
	IsVerified      *bool
	IsRenounced     *bool
	IsActive        *bool
	FromDate        *time.Time
	ToDate          *time.Time
	SortBy          SortKey
	Limit           int
	Offset          int
}

// LatestQuery selects the n most recently created tokens
func LatestQuery(n int) Query {
	return Query{SortBy: SortDateCreatedDesc, Limit: n}
}

// Matches reports whether a record satisfies the query's filters.
// Key-value backends use it to filter after a scan.
func (q *Query) Matches(r *Record) bool {
	if q.Name != nil && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(*q.Name)) {
		return false
	}
	if q.Symbol != nil && !strings.Contains(strings.ToLower(r.Symbol), strings.ToLower(*q.Symbol)) {
		return false
	}
	if q.ContractAddress != nil && !strings.EqualFold(r.ContractAddress, *q.ContractAddress) {
		return false
	}
	if q.IsVerified != nil && r.IsVerified != *q.IsVerified {
		return false
	}
	if q.IsRenounced != nil && r.IsRenounced != *q.IsRenounced {
		return false
	}
	if q.IsActive != nil && r.IsActive != *q.IsActive {
		return false
	}
	if q.FromDate != nil && r.DateCreated.Before(*q.FromDate) {
		return false
	}
	if q.ToDate != nil && r.DateCreated.After(*q.ToDate) {
		return false
	}
	return true
}

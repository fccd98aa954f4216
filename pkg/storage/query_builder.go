package storage

import (
	"fmt"
	"strings"

	"github.com/0xmhha/token-screener/pkg/token"
)

// tokenColumns is the column list shared by every SELECT and INSERT
var tokenColumns = []string{
	"contract_address", "name", "symbol", "decimals", "total_supply",
	"owner", "creator",
	"is_verified", "is_renounced", "is_active", "is_v3", "is_scam", "is_rug_pull", "is_dump_risk",
	"retry_count", "previous_contracts",
	"liquidity_pool_address", "liquidity_period", "initial_liquidity", "current_liquidity",
	"is_liquidity_locked", "locked_liquidity",
	"is_tax_modifiable", "sell_tax", "buy_tax", "transfer_tax",
	"score", "holders_count",
	"data", "code", "abi", "error",
	"date_created", "date_updated",
}

// orderClauses maps each sort key to a fixed ORDER BY clause.
// User input never reaches the SQL text.
var orderClauses = map[token.SortKey]string{
	token.SortNameAsc:         "name ASC, contract_address ASC",
	token.SortNameDesc:        "name DESC, contract_address ASC",
	token.SortDateCreatedAsc:  "date_created ASC, contract_address ASC",
	token.SortDateCreatedDesc: "date_created DESC, contract_address ASC",
}

// QueryBuilder accumulates WHERE conditions with positional arguments
type QueryBuilder struct {
	conditions []string
	args       []any
}

// NewQueryBuilder creates an empty builder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Where adds a condition; each "?" in expr is bound to the next value
func (b *QueryBuilder) Where(expr string, values ...any) *QueryBuilder {
	for _, v := range values {
		b.args = append(b.args, v)
		expr = strings.Replace(expr, "?", fmt.Sprintf("$%d", len(b.args)), 1)
	}
	b.conditions = append(b.conditions, expr)
	return b
}

// Args returns the bound arguments in placeholder order
func (b *QueryBuilder) Args() []any {
	return b.args
}

// WhereClause renders the conditions, or "" when there are none
func (b *QueryBuilder) WhereClause() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

// bind appends an argument and returns its placeholder
func (b *QueryBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// BuildTokenQuery renders a parameterized SELECT for q
func BuildTokenQuery(q token.Query) (string, []any, error) {
	q = normalizeQuery(q)

	order, ok := orderClauses[q.SortBy]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", token.ErrInvalidSortKey, q.SortBy)
	}

	b := NewQueryBuilder()
	if q.Name != nil {
		b.Where("name ILIKE ?", likePattern(*q.Name))
	}
	if q.Symbol != nil {
		b.Where("symbol ILIKE ?", likePattern(*q.Symbol))
	}
	if q.ContractAddress != nil {
		b.Where("contract_address = ?", strings.ToLower(strings.TrimSpace(*q.ContractAddress)))
	}
	if q.IsVerified != nil {
		b.Where("is_verified = ?", *q.IsVerified)
	}
	if q.IsRenounced != nil {
		b.Where("is_renounced = ?", *q.IsRenounced)
	}
	if q.IsActive != nil {
		b.Where("is_active = ?", *q.IsActive)
	}
	if q.FromDate != nil {
		b.Where("date_created >= ?", *q.FromDate)
	}
	if q.ToDate != nil {
		b.Where("date_created <= ?", *q.ToDate)
	}

	sql := "SELECT " + strings.Join(tokenColumns, ", ") + " FROM tokens" +
		b.WhereClause() +
		" ORDER BY " + order
	sql += " LIMIT " + b.bind(q.Limit) + " OFFSET " + b.bind(q.Offset)

	return sql, b.Args(), nil
}

// buildUpsert renders the INSERT ... ON CONFLICT statement for a full record
func buildUpsert() string {
	placeholders := make([]string, len(tokenColumns))
	updates := make([]string, 0, len(tokenColumns)-1)
	for i, col := range tokenColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "contract_address" {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
	}
	return "INSERT INTO tokens (" + strings.Join(tokenColumns, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") ON CONFLICT (contract_address) DO UPDATE SET " +
		strings.Join(updates, ", ")
}

// likePattern wraps s for a substring match, escaping LIKE wildcards
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

package graphql

import (
	"strconv"
	"time"

	"github.com/0xmhha/token-screener/pkg/token"
)

// recordToMap converts a record to a GraphQL-friendly map
func recordToMap(rec *token.Record) map[string]interface{} {
	if rec == nil {
		return nil
	}

	result := map[string]interface{}{
		"contractAddress":      rec.ContractAddress,
		"name":                 rec.Name,
		"symbol":               rec.Symbol,
		"decimals":             int(rec.Decimals),
		"totalSupply":          rec.TotalSupply,
		"owner":                optional(rec.Owner),
		"creator":              optional(rec.Creator),
		"isVerified":           rec.IsVerified,
		"isRenounced":          rec.IsRenounced,
		"isActive":             rec.IsActive,
		"isV3":                 rec.IsV3,
		"isScam":               rec.IsScam,
		"isRugPull":            rec.IsRugPull,
		"isDumpRisk":           rec.IsDumpRisk,
		"retryCount":           int(rec.RetryCount),
		"previousContracts":    int(rec.PreviousContracts),
		"liquidityPoolAddress": optional(rec.LiquidityPoolAddress),
		"liquidityPeriod":      strconv.FormatInt(rec.LiquidityPeriod, 10),
		"initialLiquidity":     rec.InitialLiquidity,
		"currentLiquidity":     rec.CurrentLiquidity,
		"isLiquidityLocked":    rec.IsLiquidityLocked,
		"lockedLiquidity":      rec.LockedLiquidity,
		"isTaxModifiable":      rec.IsTaxModifiable,
		"sellTax":              rec.SellTax,
		"buyTax":               rec.BuyTax,
		"transferTax":          rec.TransferTax,
		"score":                int(rec.Score),
		"holdersCount":         strconv.FormatInt(rec.HoldersCount, 10),
		"abi":                  optional(rec.ABI),
		"error":                optional(rec.Error),
		"dateCreated":          rec.DateCreated.UTC().Format(time.RFC3339),
		"dateUpdated":          nil,
	}
	if rec.DateUpdated != nil {
		result["dateUpdated"] = rec.DateUpdated.UTC().Format(time.RFC3339)
	}
	return result
}

func recordsToList(records []token.Record) []interface{} {
	out := make([]interface{}, len(records))
	for i := range records {
		out[i] = recordToMap(&records[i])
	}
	return out
}

func optional(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

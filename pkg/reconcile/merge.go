package reconcile

import (
	"bytes"
	"time"

	"github.com/0xmhha/token-screener/pkg/token"
)

type counter interface {
	~int32 | ~int64 | ~float64
}

// Merge folds incoming into a copy of existing and reports whether any
// field changed. Learned facts never regress:
//
//   - flags are OR-ed
//   - owner, creator and liquidity pool are filled only while empty
//   - name, symbol and total supply take a non-empty new value
//   - counters only grow, and only from a positive new value
//   - data, code, abi and error take a present new value
//
// DateUpdated is stamped with now when something changed.
func Merge(existing, incoming *token.Record, now time.Time) (*token.Record, bool) {
	m := existing.Clone()
	changed := false

	mergeFlag(&m.IsVerified, incoming.IsVerified, &changed)
	mergeFlag(&m.IsRenounced, incoming.IsRenounced, &changed)
	mergeFlag(&m.IsActive, incoming.IsActive, &changed)
	mergeFlag(&m.IsV3, incoming.IsV3, &changed)
	mergeFlag(&m.IsScam, incoming.IsScam, &changed)
	mergeFlag(&m.IsRugPull, incoming.IsRugPull, &changed)
	mergeFlag(&m.IsDumpRisk, incoming.IsDumpRisk, &changed)
	mergeFlag(&m.IsLiquidityLocked, incoming.IsLiquidityLocked, &changed)
	mergeFlag(&m.IsTaxModifiable, incoming.IsTaxModifiable, &changed)

	fillIfEmpty(&m.Owner, incoming.Owner, &changed)
	fillIfEmpty(&m.Creator, incoming.Creator, &changed)
	fillIfEmpty(&m.LiquidityPoolAddress, incoming.LiquidityPoolAddress, &changed)

	overwriteString(&m.Name, incoming.Name, &changed)
	overwriteString(&m.Symbol, incoming.Symbol, &changed)
	overwriteString(&m.TotalSupply, incoming.TotalSupply, &changed)

	growCounter(&m.Decimals, incoming.Decimals, &changed)
	growCounter(&m.RetryCount, incoming.RetryCount, &changed)
	growCounter(&m.PreviousContracts, incoming.PreviousContracts, &changed)
	growCounter(&m.LiquidityPeriod, incoming.LiquidityPeriod, &changed)
	growCounter(&m.InitialLiquidity, incoming.InitialLiquidity, &changed)
	growCounter(&m.CurrentLiquidity, incoming.CurrentLiquidity, &changed)
	growCounter(&m.LockedLiquidity, incoming.LockedLiquidity, &changed)
	growCounter(&m.SellTax, incoming.SellTax, &changed)
	growCounter(&m.BuyTax, incoming.BuyTax, &changed)
	growCounter(&m.TransferTax, incoming.TransferTax, &changed)
	growCounter(&m.Score, incoming.Score, &changed)
	growCounter(&m.HoldersCount, incoming.HoldersCount, &changed)

	if len(incoming.Data) > 0 && !bytes.Equal(m.Data, incoming.Data) {
		m.Data = append([]byte(nil), incoming.Data...)
		changed = true
	}
	overwritePayload(&m.Code, incoming.Code, &changed)
	overwritePayload(&m.ABI, incoming.ABI, &changed)
	overwritePayload(&m.Error, incoming.Error, &changed)

	if m.DateCreated.IsZero() && !incoming.DateCreated.IsZero() {
		m.DateCreated = incoming.DateCreated
		changed = true
	}

	if changed {
		t := now
		m.DateUpdated = &t
	}
	return m, changed
}

func mergeFlag(dst *bool, v bool, changed *bool) {
	if v && !*dst {
		*dst = true
		*changed = true
	}
}

func fillIfEmpty(dst **string, v *string, changed *bool) {
	if v == nil || *v == "" {
		return
	}
	if *dst == nil || **dst == "" {
		s := *v
		*dst = &s
		*changed = true
	}
}

func overwriteString(dst *string, v string, changed *bool) {
	if v != "" && v != *dst {
		*dst = v
		*changed = true
	}
}

func growCounter[T counter](dst *T, v T, changed *bool) {
	if v > 0 && v > *dst {
		*dst = v
		*changed = true
	}
}

func overwritePayload(dst **string, v *string, changed *bool) {
	if v == nil {
		return
	}
	if *dst == nil || **dst != *v {
		s := *v
		*dst = &s
		*changed = true
	}
}

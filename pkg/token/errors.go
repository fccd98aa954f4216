package token

import "errors"

var (
	// ErrInvalidAddress is returned for strings that are not 20-byte hex addresses
	ErrInvalidAddress = errors.New("invalid contract address")

	// ErrInvalidSortKey is returned for an unsupported query ordering
	ErrInvalidSortKey = errors.New("invalid sort key")

	// ErrNotContract means the address holds no bytecode
	ErrNotContract = errors.New("address has no contract code")

	// ErrZeroSupply means the token reports no supply and is not a real token yet
	ErrZeroSupply = errors.New("token total supply is zero")

	// ErrEnrichment wraps RPC failures while reading on-chain metadata
	ErrEnrichment = errors.New("token enrichment failed")

	// ErrMethodNotFound is returned when a descriptor lacks the requested function
	ErrMethodNotFound = errors.New("method not found in interface descriptor")
)

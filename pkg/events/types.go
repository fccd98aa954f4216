package events

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/token-screener/pkg/token"
)

// Kind is the type of a recognized chain event
type Kind string

const (
	// KindPairCreated is a new liquidity pair or pool for a token
	KindPairCreated Kind = "pair_created"

	// KindOwnershipTransferred is an OwnershipTransferred(previous, new) log
	KindOwnershipTransferred Kind = "ownership_transferred"
)

// Version distinguishes the factory generation of a PairCreated event
type Version string

const (
	V2 Version = "v2"
	V3 Version = "v3"
)

// DomainEvent is a classified log reduced to what the pipeline needs
type DomainEvent struct {
	Kind    Kind
	Version Version

	// Emitter is the address of the contract that emitted the log
	Emitter common.Address

	// Topic1 and Topic2 are topics[1] and topics[2] decoded as addresses.
	// Nil when the log has fewer topics.
	Topic1 *common.Address
	Topic2 *common.Address

	// Contract is the resolved token the event is about
	Contract common.Address

	// Renounced is set for ownership transfers to the zero address
	Renounced bool

	BlockNumber uint64
	TxHash      common.Hash
}

// NewOwner returns the recipient of an ownership transfer as lowercase hex
func (e *DomainEvent) NewOwner() string {
	if e.Topic2 == nil {
		return ""
	}
	return strings.ToLower(e.Topic2.Hex())
}

// ToRecord builds the seed record that enters enrichment
func (e *DomainEvent) ToRecord() *token.Record {
	rec := token.NewRecord(e.Contract)
	switch e.Kind {
	case KindPairCreated:
		rec.IsV3 = e.Version == V3
	case KindOwnershipTransferred:
		rec.IsRenounced = e.Renounced
		if owner := e.NewOwner(); owner != "" {
			rec.Owner = token.StringPtr(owner)
		}
	}
	return rec
}

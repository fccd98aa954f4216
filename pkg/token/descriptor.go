package token

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// genericERC20ABI covers the read-only calls every fungible token is expected to answer
const genericERC20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// DescriptorKind tells which variant a resolved descriptor is
type DescriptorKind int

const (
	// DescriptorGeneric is the shared ERC20-shaped fallback
	DescriptorGeneric DescriptorKind = iota
	// DescriptorContract is an interface registered for one specific address
	DescriptorContract
)

func (k DescriptorKind) String() string {
	if k == DescriptorContract {
		return "contract"
	}
	return "generic"
}

// Descriptor is a contract interface used to encode calls and decode results
type Descriptor struct {
	Kind DescriptorKind
	ABI  abi.ABI
}

// HasMethod reports whether the interface declares the function
func (d *Descriptor) HasMethod(name string) bool {
	_, ok := d.ABI.Methods[name]
	return ok
}

// Registry resolves the interface descriptor for a contract: a registered
// per-contract descriptor wins, otherwise the generic ERC20 one applies.
type Registry struct {
	mu       sync.RWMutex
	generic  *Descriptor
	specific map[common.Address]*Descriptor
}

// NewRegistry creates a registry holding only the generic descriptor
func NewRegistry() *Registry {
	parsed, err := abi.JSON(strings.NewReader(genericERC20ABI))
	if err != nil {
		// The embedded ABI is a constant; failing to parse it is a programming error.
		panic(fmt.Sprintf("invalid generic ERC20 ABI: %v", err))
	}
	return &Registry{
		generic:  &Descriptor{Kind: DescriptorGeneric, ABI: parsed},
		specific: make(map[common.Address]*Descriptor),
	}
}

// Register adds a per-contract descriptor from ABI JSON
func (r *Registry) Register(address common.Address, abiJSON string) error {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return fmt.Errorf("failed to parse ABI for %s: %w", address.Hex(), err)
	}

	r.mu.Lock()
	r.specific[address] = &Descriptor{Kind: DescriptorContract, ABI: parsed}
	r.mu.Unlock()
	return nil
}

// Resolve returns the descriptor to use for an address
func (r *Registry) Resolve(address common.Address) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.specific[address]; ok {
		return d
	}
	return r.generic
}

// Generic returns the fallback descriptor
func (r *Registry) Generic() *Descriptor {
	return r.generic
}

// Len returns the number of per-contract descriptors
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specific)
}

// LoadDir registers every <address>.json file found in dir.
// Files whose base name is not an address are ignored.
func (r *Registry) LoadDir(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read ABI directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".json")
		if !common.IsHexAddress(base) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		if err := r.Register(common.HexToAddress(base), string(data)); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

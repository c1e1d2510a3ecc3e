package asset

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// MaxDecimals bounds the decimals a token may report. ERC20 contracts returning
// more are treated as broken metadata.
const MaxDecimals = 36

var (
	ErrEmptySymbol     = errors.New("asset: empty symbol")
	ErrInvalidDecimals = errors.New("asset: decimals out of range")
)

// Asset is the metadata of a native coin or ERC20 token. Identity is the
// AssetID; the symbol is display only and may collide across tokens.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
}

// NewToken validates ERC20 metadata and returns the token asset.
func NewToken(chainID uint64, addr common.Address, symbol, name string, decimals uint8) (*Asset, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptySymbol, addr.Hex())
	}
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: %s reports %d", ErrInvalidDecimals, addr.Hex(), decimals)
	}
	return &Asset{
		id:       NewTokenAssetID(chainID, addr),
		symbol:   symbol,
		name:     name,
		decimals: decimals,
	}, nil
}

// MustNewToken is NewToken for well-known constants.
func MustNewToken(chainID uint64, addr common.Address, symbol, name string, decimals uint8) *Asset {
	a, err := NewToken(chainID, addr, symbol, name, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// MustNewNative creates a native coin asset.
func MustNewNative(chainID uint64, symbol, name string, decimals uint8) *Asset {
	if symbol == "" {
		panic(ErrEmptySymbol)
	}
	return &Asset{
		id:       NewNativeAssetID(chainID),
		symbol:   symbol,
		name:     name,
		decimals: decimals,
	}
}

func (a *Asset) ID() AssetID {
	return a.id
}

// Symbol returns the ticker symbol (e.g., "WETH").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name falls back to the symbol when the contract reported no name.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

func (a *Asset) Decimals() uint8 {
	return a.decimals
}

func (a *Asset) ChainID() uint64 {
	return a.id.ChainID()
}

// Address returns the token contract address (zero for native coins).
func (a *Asset) Address() common.Address {
	return a.id.Address()
}

func (a *Asset) IsNative() bool {
	return a.id.IsNative()
}

func (a *Asset) String() string {
	return a.symbol
}

// Equals compares two assets by ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}

// Package ethereum discovers Uniswap V2 pools and ERC20 metadata over JSON-RPC.
package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	tracerName = "github.com/fd1az/sandwich-bot/business/registry/infra/ethereum"
	meterName  = "github.com/fd1az/sandwich-bot/business/registry/infra/ethereum"
)

// FactoryV2ABI covers the Uniswap V2 factory PairCreated event.
const FactoryV2ABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "token0", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "token1", "type": "address"},
			{"indexed": false, "internalType": "address", "name": "pair", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "", "type": "uint256"}
		],
		"name": "PairCreated",
		"type": "event"
	}
]`

// ERC20ABI is the metadata subset of ERC20.
const ERC20ABI = `[
	{"inputs": [], "name": "name", "outputs": [{"name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "symbol", "outputs": [{"name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "decimals", "outputs": [{"name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

// ERC20Bytes32ABI matches early tokens (MKR, SAI) that return bytes32 names.
const ERC20Bytes32ABI = `[
	{"inputs": [], "name": "name", "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "symbol", "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

// PairCreatedTopic is keccak256("PairCreated(address,address,address,uint256)").
var PairCreatedTopic = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("invalid ABI: " + err.Error())
	}
	return parsed
}

var (
	factoryABI      = mustABI(FactoryV2ABI)
	erc20ABI        = mustABI(ERC20ABI)
	erc20Bytes32ABI = mustABI(ERC20Bytes32ABI)
)

package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const poolManagerABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "provider", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenA", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenB", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountA", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountB", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "liquidity", "type": "uint256"}
    ],
    "name": "LiquidityAdded",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "provider", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenA", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenB", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountA", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountB", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "liquidity", "type": "uint256"}
    ],
    "name": "LiquidityRemoved",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "trader", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenIn", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "role", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "account", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"}
    ],
    "name": "RoleGranted",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "role", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "account", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"}
    ],
    "name": "RoleRevoked",
    "type": "event"
  }
]`

var (
	poolManagerABI     abi.ABI
	poolManagerABIOnce sync.Once
	poolManagerABIErr  error
)

// PoolManagerABI returns the parsed event ABI of the pool manager.
func PoolManagerABI() (abi.ABI, error) {
	poolManagerABIOnce.Do(func() {
		poolManagerABI, poolManagerABIErr = abi.JSON(strings.NewReader(poolManagerABIJSON))
	})
	return poolManagerABI, poolManagerABIErr
}

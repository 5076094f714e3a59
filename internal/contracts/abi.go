// internal/contracts/abi.go
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Default deployment on X Layer.
var (
	DefaultFactory   = common.HexToAddress("0x3c609DACA9867309b3170d109486f37EBaE0B6a6")
	DefaultRouter    = common.HexToAddress("0xe820A21fABA2e9a22d1f0240Af6Bd20B32c68a34")
	DefaultWETH      = common.HexToAddress("0xe538905cf8410324e03A5A23C1c177a474D59b2b")
	DefaultMulticall = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")
)

// MaxUint256 is the unbounded allowance value used for approvals.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const FactoryABIJSON = `[
 {"type":"function","name":"allTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"tokens","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"uri","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"tokensInfo","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[
  {"name":"base","type":"address"},
  {"name":"quote","type":"address"},
  {"name":"reserve0","type":"uint256"},
  {"name":"reserve1","type":"uint256"},
  {"name":"vReserve0","type":"uint256"},
  {"name":"vReserve1","type":"uint256"},
  {"name":"maxOffers","type":"uint256"},
  {"name":"totalSupply","type":"uint256"},
  {"name":"lastPrice","type":"uint256"},
  {"name":"target","type":"uint256"},
  {"name":"creator","type":"address"},
  {"name":"launched","type":"bool"}]},
 {"type":"function","name":"tryBuy","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"tokenOut","type":"uint256"},{"name":"refund","type":"uint256"}]},
 {"type":"function","name":"trySell","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"predictTokenAddress","stateMutability":"view","inputs":[{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"purchase","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"minAmountOut","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"buyToken","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"minAmountOut","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"sell","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"minEthOut","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"createToken","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"metadataHash","type":"string"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"createTokenAndBuy","stateMutability":"payable","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"uri","type":"string"},{"name":"salt","type":"bytes32"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

const RouterABIJSON = `[
 {"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"swapExactTokensForETH","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const ERC20ABIJSON = `[
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const Multicall3ABIJSON = `[
 {"type":"function","name":"aggregate3","stateMutability":"payable","inputs":[{"name":"calls","type":"tuple[]","components":[
  {"name":"target","type":"address"},
  {"name":"allowFailure","type":"bool"},
  {"name":"callData","type":"bytes"}]}],
  "outputs":[{"name":"returnData","type":"tuple[]","components":[
  {"name":"success","type":"bool"},
  {"name":"returnData","type":"bytes"}]}]}
]`

var (
	FactoryABI    = mustParse("factory", FactoryABIJSON)
	RouterABI     = mustParse("router", RouterABIJSON)
	ERC20ABI      = mustParse("erc20", ERC20ABIJSON)
	Multicall3ABI = mustParse("multicall3", Multicall3ABIJSON)
)

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("contracts: parse %s abi: %v", name, err))
	}
	return parsed
}

// MethodBySelector resolves a 4-byte selector against every known ABI.
// Used for log fields and the test backend journal.
func MethodBySelector(data []byte) (string, bool) {
	if len(data) < 4 {
		return "", false
	}
	for _, parsed := range []abi.ABI{FactoryABI, RouterABI, ERC20ABI, Multicall3ABI} {
		if m, err := parsed.MethodById(data[:4]); err == nil {
			return m.Name, true
		}
	}
	return "", false
}

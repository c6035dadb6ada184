package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const accountABIJSON = `[
	{"type":"function","name":"executeBySender","stateMutability":"payable","inputs":[
		{"name":"calls","type":"tuple[]","components":[
			{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}]}],"outputs":[]},
	{"type":"function","name":"setAddrPrivilege","stateMutability":"payable","inputs":[
		{"name":"addr","type":"address"},{"name":"priv","type":"bytes32"}],"outputs":[]}
]`

const factoryABIJSON = `[
	{"type":"function","name":"deployAndExecute","stateMutability":"nonpayable","inputs":[
		{"name":"code","type":"bytes"},{"name":"salt","type":"uint256"},
		{"name":"txns","type":"tuple[]","components":[
			{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}]},
		{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"deploy","stateMutability":"nonpayable","inputs":[
		{"name":"code","type":"bytes"},{"name":"salt","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const entryPointABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
		{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// estimatorABIJSON describes the deployless simulation contract. Outputs are
// flat so they decode straight into EstimatorOutput.
const estimatorABIJSON = `[
	{"type":"function","name":"estimate","stateMutability":"nonpayable","inputs":[
		{"name":"account","type":"address"},
		{"name":"initCode","type":"bytes"},
		{"name":"preCalls","type":"tuple[]","components":[
			{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}]},
		{"name":"calls","type":"tuple[]","components":[
			{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}]},
		{"name":"feeTokens","type":"address[]"},
		{"name":"nativeHolders","type":"address[]"},
		{"name":"feeCollector","type":"address"}],
	"outputs":[
		{"name":"deploymentGasUsed","type":"uint256"},
		{"name":"deploymentSuccess","type":"bool"},
		{"name":"preOpGasUsed","type":"uint256"},
		{"name":"preOpSuccess","type":"bool"},
		{"name":"preOpErr","type":"bytes"},
		{"name":"opGasUsed","type":"uint256"},
		{"name":"opSuccess","type":"bool"},
		{"name":"opErr","type":"bytes"},
		{"name":"nonce","type":"uint256"},
		{"name":"feeTokenAmounts","type":"uint256[]"},
		{"name":"feeTokenGasUsed","type":"uint256[]"},
		{"name":"nativeAssetBalances","type":"uint256[]"},
		{"name":"l1Fee","type":"uint256"}]}
]`

var (
	AccountABI    = mustParse(accountABIJSON)
	FactoryABI    = mustParse(factoryABIJSON)
	ERC20ABI      = mustParse(erc20ABIJSON)
	EntryPointABI = mustParse(entryPointABIJSON)
	EstimatorABI  = mustParse(estimatorABIJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum/common"
)

// EstimatorOutput is the flat result of the deployless estimate call
type EstimatorOutput struct {
	DeploymentGasUsed   *big.Int
	DeploymentSuccess   bool
	PreOpGasUsed        *big.Int
	PreOpSuccess        bool
	PreOpErr            []byte
	OpGasUsed           *big.Int
	OpSuccess           bool
	OpErr               []byte
	Nonce               *big.Int
	FeeTokenAmounts     []*big.Int
	FeeTokenGasUsed     []*big.Int
	NativeAssetBalances []*big.Int
	L1Fee               *big.Int
}

type EstimatorInput struct {
	Account       common.Address
	InitCode      []byte
	PreCalls      []domain.Call
	Calls         []domain.Call
	FeeTokens     []common.Address
	NativeHolders []common.Address
	FeeCollector  common.Address
}

func EncodeEstimate(in EstimatorInput) ([]byte, error) {
	initCode := in.InitCode
	if initCode == nil {
		initCode = []byte{}
	}
	data, err := EstimatorABI.Pack("estimate",
		in.Account,
		initCode,
		toABICalls(in.PreCalls),
		toABICalls(in.Calls),
		nonNilAddresses(in.FeeTokens),
		nonNilAddresses(in.NativeHolders),
		in.FeeCollector,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack estimate: %w", err)
	}
	return data, nil
}

func DecodeEstimate(data []byte) (*EstimatorOutput, error) {
	var out EstimatorOutput
	if err := EstimatorABI.UnpackIntoInterface(&out, "estimate", data); err != nil {
		return nil, fmt.Errorf("failed to unpack estimate: %w", err)
	}
	return &out, nil
}

// PackEstimateOutput encodes an output the way the contract returns it
func PackEstimateOutput(out *EstimatorOutput) ([]byte, error) {
	return EstimatorABI.Methods["estimate"].Outputs.Pack(
		out.DeploymentGasUsed,
		out.DeploymentSuccess,
		out.PreOpGasUsed,
		out.PreOpSuccess,
		nonNilBytes(out.PreOpErr),
		out.OpGasUsed,
		out.OpSuccess,
		nonNilBytes(out.OpErr),
		out.Nonce,
		nonNilBigs(out.FeeTokenAmounts),
		nonNilBigs(out.FeeTokenGasUsed),
		nonNilBigs(out.NativeAssetBalances),
		out.L1Fee,
	)
}

func nonNilAddresses(in []common.Address) []common.Address {
	if in == nil {
		return []common.Address{}
	}
	return in
}

func nonNilBytes(in []byte) []byte {
	if in == nil {
		return []byte{}
	}
	return in
}

func nonNilBigs(in []*big.Int) []*big.Int {
	if in == nil {
		return []*big.Int{}
	}
	return in
}

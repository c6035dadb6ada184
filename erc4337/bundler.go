package erc4337

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultGasPriceMethod is the bundler gas price RPC used when none is configured
const DefaultGasPriceMethod = "pimlico_getUserOperationGasPrice"

type GasEstimates struct {
	PreVerificationGas            *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit          *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit                  *hexutil.Big `json:"callGasLimit"`
	PaymasterVerificationGasLimit *hexutil.Big `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *hexutil.Big `json:"paymasterPostOpGasLimit"`
}

type GasPriceTier struct {
	MaxFeePerGas         *hexutil.Big `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big `json:"maxPriorityFeePerGas"`
}

// UserOperationGasPrice is the tiered answer of the bundler gas price method
type UserOperationGasPrice struct {
	Slow     GasPriceTier `json:"slow"`
	Standard GasPriceTier `json:"standard"`
	Fast     GasPriceTier `json:"fast"`
}

// OverrideAccount is the per-address state override accepted by eth_estimateUserOperationGas
type OverrideAccount struct {
	Code    hexutil.Bytes `json:"code,omitempty"`
	Balance *hexutil.Big  `json:"balance,omitempty"`
}

type StateOverride map[common.Address]OverrideAccount

type Bundler interface {
	ChainId(ctx context.Context) (*big.Int, error)
	EstimateUserOperationGas(ctx context.Context, op *UserOperation, entryPoint common.Address, overrides StateOverride) (*GasEstimates, error)
	GetUserOperationGasPrice(ctx context.Context) (*UserOperationGasPrice, error)
}

type BundlerClient struct {
	client         *rpc.Client
	gasPriceMethod string
}

func DialContext(ctx context.Context, rawurl string, gasPriceMethod string) (*BundlerClient, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return NewBundlerClient(c, gasPriceMethod), nil
}

func NewBundlerClient(c *rpc.Client, gasPriceMethod string) *BundlerClient {
	if gasPriceMethod == "" {
		gasPriceMethod = DefaultGasPriceMethod
	}
	return &BundlerClient{client: c, gasPriceMethod: gasPriceMethod}
}

func (b *BundlerClient) ChainId(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	err := b.client.CallContext(ctx, &result, "eth_chainId")
	if err != nil {
		return nil, err
	}
	return (*big.Int)(&result), nil
}

func (b *BundlerClient) EstimateUserOperationGas(ctx context.Context, op *UserOperation, entryPoint common.Address, overrides StateOverride) (*GasEstimates, error) {
	var estimate GasEstimates
	args := []interface{}{op, entryPoint}
	if len(overrides) > 0 {
		args = append(args, overrides)
	}
	err := b.client.CallContext(ctx, &estimate, "eth_estimateUserOperationGas", args...)
	if err != nil {
		return nil, err
	}
	return &estimate, nil
}

func (b *BundlerClient) GetUserOperationGasPrice(ctx context.Context) (*UserOperationGasPrice, error) {
	var price UserOperationGasPrice
	err := b.client.CallContext(ctx, &price, b.gasPriceMethod)
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (b *BundlerClient) Close() {
	b.client.Close()
}

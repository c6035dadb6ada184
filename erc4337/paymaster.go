package erc4337

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

type PaymasterSponsor struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// PaymasterStubData is the ERC-7677 pm_getPaymasterStubData result for v0.7
type PaymasterStubData struct {
	Sponsor                       *PaymasterSponsor `json:"sponsor,omitempty"`
	Paymaster                     common.Address    `json:"paymaster"`
	PaymasterData                 hexutil.Bytes     `json:"paymasterData"`
	PaymasterVerificationGasLimit *hexutil.Big      `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *hexutil.Big      `json:"paymasterPostOpGasLimit"`
	IsFinal                       bool              `json:"isFinal"`
}

// PaymasterData is the ERC-7677 pm_getPaymasterData result for v0.7
type PaymasterData struct {
	Paymaster     common.Address `json:"paymaster"`
	PaymasterData hexutil.Bytes  `json:"paymasterData"`
}

type PaymasterService interface {
	GetPaymasterStubData(ctx context.Context, op *UserOperation, entryPoint common.Address, chainID *big.Int, pmContext map[string]any) (*PaymasterStubData, error)
	GetPaymasterData(ctx context.Context, op *UserOperation, entryPoint common.Address, chainID *big.Int, pmContext map[string]any) (*PaymasterData, error)
}

type PaymasterClient struct {
	client *rpc.Client
}

func DialPaymaster(ctx context.Context, rawurl string) (*PaymasterClient, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return &PaymasterClient{client: c}, nil
}

func (p *PaymasterClient) GetPaymasterStubData(ctx context.Context, op *UserOperation, entryPoint common.Address, chainID *big.Int, pmContext map[string]any) (*PaymasterStubData, error) {
	var stub PaymasterStubData
	err := p.client.CallContext(ctx, &stub, "pm_getPaymasterStubData", op, entryPoint, (*hexutil.Big)(chainID), contextOrEmpty(pmContext))
	if err != nil {
		return nil, err
	}
	return &stub, nil
}

func (p *PaymasterClient) GetPaymasterData(ctx context.Context, op *UserOperation, entryPoint common.Address, chainID *big.Int, pmContext map[string]any) (*PaymasterData, error) {
	var data PaymasterData
	err := p.client.CallContext(ctx, &data, "pm_getPaymasterData", op, entryPoint, (*hexutil.Big)(chainID), contextOrEmpty(pmContext))
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (p *PaymasterClient) Close() {
	p.client.Close()
}

func contextOrEmpty(pmContext map[string]any) map[string]any {
	if pmContext == nil {
		return map[string]any{}
	}
	return pmContext
}

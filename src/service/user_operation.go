package service

import (
	"fmt"
	"math/big"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/strategy"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// buildUserOperation turns op into an unsigned v0.7 user operation priced at
// gasPrice. Gas limits and paymaster fields are left for the caller.
func buildUserOperation(s strategy.AccountStrategy, op *domain.AccountOp, gasPrice domain.GasPrice) (*erc4337.UserOperation, error) {
	account := s.Account()
	state := s.State()

	callData, err := contracts.EncodeExecuteBySender(op.SignableCalls())
	if err != nil {
		return nil, err
	}

	userOp := &erc4337.UserOperation{
		Sender:               account.Addr,
		Nonce:                (*hexutil.Big)(state.Erc4337NonceOrZero()),
		CallData:             callData,
		CallGasLimit:         (*hexutil.Big)(new(big.Int)),
		VerificationGasLimit: (*hexutil.Big)(new(big.Int)),
		PreVerificationGas:   (*hexutil.Big)(new(big.Int)),
		MaxFeePerGas:         (*hexutil.Big)(bigOrZero(gasPrice.MaxFeePerGas)),
		MaxPriorityFeePerGas: (*hexutil.Big)(bigOrZero(gasPrice.MaxPriorityFeePerGas)),
		Signature:            dummySignature(),
	}

	if account.Creation != nil && !state.IsDeployed {
		factoryData, err := contracts.EncodeDeploy(account.Creation)
		if err != nil {
			return nil, fmt.Errorf("failed to encode factory data: %w", err)
		}
		factory := account.Creation.FactoryAddr
		userOp.Factory = &factory
		userOp.FactoryData = factoryData
	}

	return userOp, nil
}

// applyGasLimits copies the bundler estimate onto userOp
func applyGasLimits(userOp *erc4337.UserOperation, limits *domain.Erc4337GasLimits) {
	userOp.PreVerificationGas = (*hexutil.Big)(bigOrZero(limits.PreVerificationGas))
	userOp.VerificationGasLimit = (*hexutil.Big)(bigOrZero(limits.VerificationGasLimit))
	userOp.CallGasLimit = (*hexutil.Big)(bigOrZero(limits.CallGasLimit))
	if limits.PaymasterVerificationGasLimit != nil {
		userOp.PaymasterVerificationGasLimit = (*hexutil.Big)(limits.PaymasterVerificationGasLimit)
	}
	if limits.PaymasterPostOpGasLimit != nil {
		userOp.PaymasterPostOpGasLimit = (*hexutil.Big)(limits.PaymasterPostOpGasLimit)
	}
}

func gasLimitsFromEstimate(gas *erc4337.GasEstimates, userOp *erc4337.UserOperation) *domain.Erc4337GasLimits {
	limits := &domain.Erc4337GasLimits{
		PreVerificationGas:            bigOrZero(gas.PreVerificationGas.ToInt()),
		VerificationGasLimit:          bigOrZero(gas.VerificationGasLimit.ToInt()),
		CallGasLimit:                  bigOrZero(gas.CallGasLimit.ToInt()),
		PaymasterVerificationGasLimit: gas.PaymasterVerificationGasLimit.ToInt(),
		PaymasterPostOpGasLimit:       gas.PaymasterPostOpGasLimit.ToInt(),
	}
	if limits.PaymasterVerificationGasLimit == nil {
		limits.PaymasterVerificationGasLimit = bigOrZero(userOp.PaymasterVerificationGasLimit.ToInt())
	}
	if limits.PaymasterPostOpGasLimit == nil {
		limits.PaymasterPostOpGasLimit = bigOrZero(userOp.PaymasterPostOpGasLimit.ToInt())
	}
	return limits
}

// paymentToken picks the token the estimation fee call pays with. Token
// transfers cost more than native value so they are preferred.
func paymentToken(tokens []domain.TokenResult) domain.TokenResult {
	var native *domain.TokenResult
	for i, t := range tokens {
		if !t.Flags.IsFeeToken || t.Flags.OnGasTank {
			continue
		}
		if !t.IsNative() {
			return t
		}
		if native == nil {
			native = &tokens[i]
		}
	}
	if native != nil {
		return *native
	}
	return domain.TokenResult{Symbol: "ETH", Decimals: 18, Flags: domain.TokenFlags{IsFeeToken: true}}
}

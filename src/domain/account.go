package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AccountCreation holds what is needed to counterfactually deploy a smart account.
type AccountCreation struct {
	FactoryAddr common.Address `json:"factoryAddr"`
	Bytecode    hexutil.Bytes  `json:"bytecode"`
	Salt        common.Hash    `json:"salt"`
}

type Account struct {
	Addr     common.Address   `json:"addr"`
	Creation *AccountCreation `json:"creation,omitempty"`
}

// IsSmartAccount reports whether the account is a deployable smart contract wallet
func (a Account) IsSmartAccount() bool {
	return a.Creation != nil
}

// AccountOnchainState is a read-only snapshot of the account on one network.
type AccountOnchainState struct {
	IsEOA            bool             `json:"isEOA"`
	IsSmarterEoa     bool             `json:"isSmarterEoa"`
	IsDeployed       bool             `json:"isDeployed"`
	IsV2             bool             `json:"isV2"`
	Nonce            *big.Int         `json:"nonce"`
	Erc4337Nonce     *big.Int         `json:"erc4337Nonce"`
	IsErc4337Enabled bool             `json:"isErc4337Enabled"`
	AssociatedKeys   []common.Address `json:"associatedKeys"`
}

func (s *AccountOnchainState) NonceOrZero() *big.Int {
	if s.Nonce == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.Nonce)
}

func (s *AccountOnchainState) Erc4337NonceOrZero() *big.Int {
	if s.Erc4337Nonce == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.Erc4337Nonce)
}

type Call struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

// ValueOrZero returns a copy of the call value, zero when unset
func (c Call) ValueOrZero() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.Value)
}

// PaymasterService is a dapp supplied ERC-7677 paymaster endpoint.
type PaymasterService struct {
	URL     string         `json:"url"`
	ChainID uint64         `json:"chainId"`
	ID      string         `json:"id"`
	Context map[string]any `json:"context,omitempty"`
}

type AccountOpMeta struct {
	PaymasterService *PaymasterService `json:"paymasterService,omitempty"`
	// SetDelegation is non-nil when the op installs (true) or removes (false) 7702 code
	SetDelegation *bool `json:"setDelegation,omitempty"`
}

type GasFeePayment struct {
	PaidBy          common.Address `json:"paidBy"`
	Token           TokenResult    `json:"token"`
	Amount          *big.Int       `json:"amount"`
	GasUsed         *big.Int       `json:"gasUsed"`
	BroadcastOption BroadcastKind  `json:"broadcastOption"`
	IsSponsored     bool           `json:"isSponsored"`
}

// AccountOp is one intended batch of calls from one account on one network.
type AccountOp struct {
	AccountAddr              common.Address `json:"accountAddr"`
	ChainID                  uint64         `json:"chainId"`
	Nonce                    *big.Int       `json:"nonce"`
	Calls                    []Call         `json:"calls"`
	FeeCall                  *Call          `json:"feeCall,omitempty"`
	ActivatorCall            *Call          `json:"activatorCall,omitempty"`
	AccountOpToExecuteBefore *AccountOp     `json:"accountOpToExecuteBefore,omitempty"`
	GasFeePayment            *GasFeePayment `json:"gasFeePayment,omitempty"`
	Meta                     *AccountOpMeta `json:"meta,omitempty"`
	Signature                hexutil.Bytes  `json:"signature,omitempty"`
}

// SignableCalls returns the calls in execution order: the chained op first,
// then the op calls, the activator and finally the fee call.
func (op *AccountOp) SignableCalls() []Call {
	calls := make([]Call, 0, len(op.Calls)+2)
	if op.AccountOpToExecuteBefore != nil {
		calls = append(calls, op.AccountOpToExecuteBefore.Calls...)
	}
	calls = append(calls, op.Calls...)
	if op.ActivatorCall != nil {
		calls = append(calls, *op.ActivatorCall)
	}
	if op.FeeCall != nil {
		calls = append(calls, *op.FeeCall)
	}
	return calls
}

// TotalValue sums the native value sent by the op calls
func (op *AccountOp) TotalValue() *big.Int {
	total := new(big.Int)
	for _, call := range op.Calls {
		total.Add(total, call.ValueOrZero())
	}
	return total
}

func (op *AccountOp) PaymasterService() *PaymasterService {
	if op.Meta == nil {
		return nil
	}
	return op.Meta.PaymasterService
}

func (op *AccountOp) HasDelegationIntent() bool {
	return op.Meta != nil && op.Meta.SetDelegation != nil
}

package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnexpectedSelector = errors.New("unexpected function selector")

// abiCall mirrors the (address to, uint256 value, bytes data) tuple
type abiCall struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

func toABICalls(calls []domain.Call) []abiCall {
	out := make([]abiCall, len(calls))
	for i, c := range calls {
		out[i] = abiCall{To: c.To, Value: c.ValueOrZero(), Data: []byte(c.Data)}
		if out[i].Data == nil {
			out[i].Data = []byte{}
		}
	}
	return out
}

func fromABICalls(calls []abiCall) []domain.Call {
	out := make([]domain.Call, len(calls))
	for i, c := range calls {
		out[i] = domain.Call{To: c.To, Value: c.Value, Data: c.Data}
	}
	return out
}

func unpackInputs(parsed abi.ABI, name string, data []byte) ([]interface{}, error) {
	method, ok := parsed.Methods[name]
	if !ok {
		return nil, fmt.Errorf("method %s not found", name)
	}
	if len(data) < 4 || string(data[:4]) != string(method.ID) {
		return nil, fmt.Errorf("%w: want %s", ErrUnexpectedSelector, name)
	}
	return method.Inputs.Unpack(data[4:])
}

func decodeCalls(v interface{}) []domain.Call {
	calls := *abi.ConvertType(v, new([]abiCall)).(*[]abiCall)
	return fromABICalls(calls)
}

// EncodeExecuteBySender builds the account call executing calls in order
func EncodeExecuteBySender(calls []domain.Call) ([]byte, error) {
	data, err := AccountABI.Pack("executeBySender", toABICalls(calls))
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeBySender: %w", err)
	}
	return data, nil
}

func DecodeExecuteBySender(data []byte) ([]domain.Call, error) {
	args, err := unpackInputs(AccountABI, "executeBySender", data)
	if err != nil {
		return nil, err
	}
	return decodeCalls(args[0]), nil
}

// EncodeDeployAndExecute builds the factory call that deploys the account and runs calls in one go
func EncodeDeployAndExecute(creation *domain.AccountCreation, calls []domain.Call, signature []byte) ([]byte, error) {
	if signature == nil {
		signature = []byte{}
	}
	data, err := FactoryABI.Pack("deployAndExecute",
		[]byte(creation.Bytecode),
		new(big.Int).SetBytes(creation.Salt.Bytes()),
		toABICalls(calls),
		signature,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack deployAndExecute: %w", err)
	}
	return data, nil
}

type DeployAndExecute struct {
	Code      []byte
	Salt      common.Hash
	Calls     []domain.Call
	Signature []byte
}

func DecodeDeployAndExecute(data []byte) (*DeployAndExecute, error) {
	args, err := unpackInputs(FactoryABI, "deployAndExecute", data)
	if err != nil {
		return nil, err
	}
	return &DeployAndExecute{
		Code:      args[0].([]byte),
		Salt:      common.BigToHash(args[1].(*big.Int)),
		Calls:     decodeCalls(args[2]),
		Signature: args[3].([]byte),
	}, nil
}

// EncodeDeploy builds the factory data used as user operation initCode
func EncodeDeploy(creation *domain.AccountCreation) ([]byte, error) {
	data, err := FactoryABI.Pack("deploy", []byte(creation.Bytecode), new(big.Int).SetBytes(creation.Salt.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to pack deploy: %w", err)
	}
	return data, nil
}

// ActivatorCall grants the entry point privilege on the account
func ActivatorCall(account common.Address, c domain.Contracts) (domain.Call, error) {
	data, err := AccountABI.Pack("setAddrPrivilege", c.EntryPoint, [32]byte(c.EntryPointMarker))
	if err != nil {
		return domain.Call{}, fmt.Errorf("failed to pack setAddrPrivilege: %w", err)
	}
	return domain.Call{To: account, Value: new(big.Int), Data: data}, nil
}

func EncodeERC20Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := ERC20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer: %w", err)
	}
	return data, nil
}

var gasTankArgs = func() abi.Arguments {
	stringType, _ := abi.NewType("string", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{{Type: stringType}, {Type: uint256Type}, {Type: stringType}}
}()

// EncodeGasTankPayment encodes the ("gasTank", amount, symbol) payload the relayer debits
func EncodeGasTankPayment(amount *big.Int, symbol string) ([]byte, error) {
	data, err := gasTankArgs.Pack("gasTank", amount, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to pack gas tank payment: %w", err)
	}
	return data, nil
}

func EncodeEntryPointBalanceOf(account common.Address) ([]byte, error) {
	return EntryPointABI.Pack("balanceOf", account)
}

func DecodeEntryPointBalance(data []byte) (*big.Int, error) {
	out, err := EntryPointABI.Unpack("balanceOf", data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

var ambirePaymasterArgs = func() abi.Arguments {
	uint48Type, _ := abi.NewType("uint48", "", nil)
	bytesType, _ := abi.NewType("bytes", "", nil)
	return abi.Arguments{{Type: uint48Type}, {Type: uint48Type}, {Type: bytesType}}
}()

// EncodeAmbirePaymasterData encodes (validUntil, validAfter, signature) as the hosted paymaster expects it
func EncodeAmbirePaymasterData(validUntil, validAfter uint64, signature []byte) ([]byte, error) {
	if signature == nil {
		signature = []byte{}
	}
	data, err := ambirePaymasterArgs.Pack(new(big.Int).SetUint64(validUntil), new(big.Int).SetUint64(validAfter), signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack paymaster data: %w", err)
	}
	return data, nil
}

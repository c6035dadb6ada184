package erc4337

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// EntryPointV07 address constant
var EntryPointV07 = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

// UserOperation represents the ERC-4337 v0.7 user operation structure
type UserOperation struct {
	Sender                        common.Address  `json:"sender"`
	Nonce                         *hexutil.Big    `json:"nonce"`
	Factory                       *common.Address `json:"factory"`
	FactoryData                   hexutil.Bytes   `json:"factoryData"`
	CallData                      hexutil.Bytes   `json:"callData"`
	CallGasLimit                  *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit          *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas            *hexutil.Big    `json:"preVerificationGas"`
	MaxPriorityFeePerGas          *hexutil.Big    `json:"maxPriorityFeePerGas"`
	MaxFeePerGas                  *hexutil.Big    `json:"maxFeePerGas"`
	Paymaster                     *common.Address `json:"paymaster"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData"`
	Signature                     hexutil.Bytes   `json:"signature"`
}

// MarshalJSON drops the optional factory and paymaster groups when they are
// unset. Bundlers reject explicit nulls for them.
func (uo *UserOperation) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"sender":               uo.Sender,
		"nonce":                paddedHex(uo.Nonce),
		"callData":             nonNilBytes(uo.CallData),
		"callGasLimit":         hexOrZero(uo.CallGasLimit),
		"verificationGasLimit": hexOrZero(uo.VerificationGasLimit),
		"preVerificationGas":   hexOrZero(uo.PreVerificationGas),
		"maxPriorityFeePerGas": hexOrZero(uo.MaxPriorityFeePerGas),
		"maxFeePerGas":         hexOrZero(uo.MaxFeePerGas),
		"signature":            nonNilBytes(uo.Signature),
	}
	if uo.Factory != nil {
		out["factory"] = uo.Factory
		out["factoryData"] = nonNilBytes(uo.FactoryData)
	}
	if uo.Paymaster != nil {
		out["paymaster"] = uo.Paymaster
		out["paymasterVerificationGasLimit"] = hexOrZero(uo.PaymasterVerificationGasLimit)
		out["paymasterPostOpGasLimit"] = hexOrZero(uo.PaymasterPostOpGasLimit)
		out["paymasterData"] = nonNilBytes(uo.PaymasterData)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the zero padded nonce produced by MarshalJSON
func (uo *UserOperation) UnmarshalJSON(data []byte) error {
	type Alias UserOperation
	aux := struct {
		Nonce string `json:"nonce"`
		*Alias
	}{
		Alias: (*Alias)(uo),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	digits := strings.TrimLeft(strings.TrimPrefix(aux.Nonce, "0x"), "0")
	if digits == "" {
		uo.Nonce = (*hexutil.Big)(new(big.Int))
		return nil
	}
	nonce, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return fmt.Errorf("invalid nonce: %s", aux.Nonce)
	}
	uo.Nonce = (*hexutil.Big)(nonce)
	return nil
}

// paddedHex formats the nonce as a 32-byte word so the key and sequence stay visible
func paddedHex(v *hexutil.Big) string {
	if v == nil {
		return fmt.Sprintf("0x%064x", 0)
	}
	return fmt.Sprintf("0x%064x", (*big.Int)(v))
}

func hexOrZero(v *hexutil.Big) *hexutil.Big {
	if v == nil {
		return (*hexutil.Big)(new(big.Int))
	}
	return v
}

func nonNilBytes(b hexutil.Bytes) hexutil.Bytes {
	if b == nil {
		return hexutil.Bytes{}
	}
	return b
}

func bigOrZero(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return (*big.Int)(v)
}

// Copy returns a deep enough copy for callers that patch gas or paymaster fields
func (uo *UserOperation) Copy() *UserOperation {
	cp := *uo
	cp.FactoryData = append(hexutil.Bytes(nil), uo.FactoryData...)
	cp.CallData = append(hexutil.Bytes(nil), uo.CallData...)
	cp.PaymasterData = append(hexutil.Bytes(nil), uo.PaymasterData...)
	cp.Signature = append(hexutil.Bytes(nil), uo.Signature...)
	return &cp
}

// PackedUserOp is the on-chain representation hashed by the EntryPoint
type PackedUserOp struct {
	Sender             common.Address
	Nonce              *big.Int
	InitCode           []byte
	CallData           []byte
	AccountGasLimits   [32]byte
	PreVerificationGas *big.Int
	GasFees            [32]byte
	PaymasterAndData   []byte
	Signature          []byte
}

// packUint128Pair left pads hi and lo into the two halves of a 32-byte word
func packUint128Pair(hi, lo *hexutil.Big) [32]byte {
	var word [32]byte
	bigOrZero(hi).FillBytes(word[:16])
	bigOrZero(lo).FillBytes(word[16:])
	return word
}

// Pack packs a UserOperation into a PackedUserOp
func (uo *UserOperation) Pack() *PackedUserOp {
	packed := &PackedUserOp{
		Sender:             uo.Sender,
		Nonce:              bigOrZero(uo.Nonce),
		CallData:           nonNilBytes(uo.CallData),
		AccountGasLimits:   packUint128Pair(uo.VerificationGasLimit, uo.CallGasLimit),
		PreVerificationGas: bigOrZero(uo.PreVerificationGas),
		GasFees:            packUint128Pair(uo.MaxPriorityFeePerGas, uo.MaxFeePerGas),
		InitCode:           []byte{},
		PaymasterAndData:   []byte{},
		Signature:          nonNilBytes(uo.Signature),
	}

	if uo.Factory != nil {
		packed.InitCode = append(uo.Factory.Bytes(), uo.FactoryData...)
	}

	if uo.Paymaster != nil {
		limits := packUint128Pair(uo.PaymasterVerificationGasLimit, uo.PaymasterPostOpGasLimit)
		pad := make([]byte, 0, common.AddressLength+32+len(uo.PaymasterData))
		pad = append(pad, uo.Paymaster.Bytes()...)
		pad = append(pad, limits[:]...)
		pad = append(pad, uo.PaymasterData...)
		packed.PaymasterAndData = pad
	}

	return packed
}

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	bytes32Type, _ = abi.NewType("bytes32", "", nil)

	packedUserOpArgs = abi.Arguments{
		{Type: addressType}, // sender
		{Type: uint256Type}, // nonce
		{Type: bytes32Type}, // keccak(initCode)
		{Type: bytes32Type}, // keccak(callData)
		{Type: bytes32Type}, // accountGasLimits
		{Type: uint256Type}, // preVerificationGas
		{Type: bytes32Type}, // gasFees
		{Type: bytes32Type}, // keccak(paymasterAndData)
	}
	userOpHashArgs = abi.Arguments{
		{Type: bytes32Type},
		{Type: addressType},
		{Type: uint256Type},
	}
)

// Hash computes the v0.7 user operation hash for the given entry point and chain
func (uo *UserOperation) Hash(entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	packed := uo.Pack()

	encoded, err := packedUserOpArgs.Pack(
		packed.Sender,
		packed.Nonce,
		crypto.Keccak256Hash(packed.InitCode),
		crypto.Keccak256Hash(packed.CallData),
		packed.AccountGasLimits,
		packed.PreVerificationGas,
		packed.GasFees,
		crypto.Keccak256Hash(packed.PaymasterAndData),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode user operation: %w", err)
	}

	final, err := userOpHashArgs.Pack(crypto.Keccak256Hash(encoded), entryPoint, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode user operation hash: %w", err)
	}

	return crypto.Keccak256Hash(final), nil
}

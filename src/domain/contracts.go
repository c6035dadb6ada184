package domain

import "github.com/ethereum/go-ethereum/common"

const (
	// ActivatorGasUsed is the extra gas of installing 7702 delegation code
	ActivatorGasUsed uint64 = 29300
	// EntryPointDeploymentAdditionalGas covers the factory call the bundler
	// under-estimates for accounts that are not deployed yet
	EntryPointDeploymentAdditionalGas uint64 = 35000
	// GasTankFeeGas is charged for gas tank payments. The settlement cost
	// depends on the relayer that broadcasts, which is unknown here.
	GasTankFeeGas uint64 = 5000
	// BaseTransactionGas is the intrinsic cost of one transaction
	BaseTransactionGas uint64 = 21000
)

type Contracts struct {
	EntryPoint            common.Address `json:"entryPoint"`
	AmbirePaymaster       common.Address `json:"ambirePaymaster"`
	FeeCollector          common.Address `json:"feeCollector"`
	AccountFactory        common.Address `json:"accountFactory"`
	Eip7702Implementation common.Address `json:"eip7702Implementation"`
	EntryPointMarker      common.Hash    `json:"entryPointMarker"`
}

func DefaultContracts() Contracts {
	return Contracts{
		EntryPoint:            common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
		AmbirePaymaster:       common.HexToAddress("0xA8B267C68715FA1Dca055993149f30217B572Cf0"),
		FeeCollector:          common.HexToAddress("0x942f9CE5D9a33a82F88D233AEb3292E680230348"),
		AccountFactory:        common.HexToAddress("0x26cE6745A633030A6faC5e64e41D21fb6246dc2d"),
		Eip7702Implementation: common.HexToAddress("0x5A7FC11397E9a8AD41BF10bf13F22B0a63f96f6d"),
		EntryPointMarker:      common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000007171"),
	}
}

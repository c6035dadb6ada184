package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/strategy"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

var ErrNotBundlerBroadcast = errors.New("operation is not broadcast through a bundler")

// BroadcastPlan tells the caller what to sign and what to submit for the
// chosen fee option.
type BroadcastPlan struct {
	BroadcastOption             domain.BroadcastKind `json:"broadcastOption"`
	AtomicStatus                domain.AtomicStatus  `json:"atomicStatus"`
	RequiresAuthorization       bool                 `json:"requiresAuthorization"`
	RequiresDeployAuthorization bool                 `json:"requiresDeployAuthorization"`
	IncludesActivatorCall       bool                 `json:"includesActivatorCall"`
	BroadcastCallsSeparately    bool                 `json:"broadcastCallsSeparately"`
	IsSponsored                 bool                 `json:"isSponsored"`
	GasUsed                     *big.Int             `json:"gasUsed"`
	// Calldata is empty when the calls go out as separate transactions
	Calldata hexutil.Bytes  `json:"calldata,omitempty"`
	Calls    []domain.Call  `json:"calls,omitempty"`
	To       common.Address `json:"to"`
}

type PlanRequest struct {
	Strategy    strategy.AccountStrategy
	Op          *domain.AccountOp
	FeeOption   domain.FeePaymentOption
	Estimation  *domain.FullEstimation
	IsSponsored bool
}

// PrepareRequest asks for a ready to sign user operation. FeeAmount is what
// the fee call pays when the paymaster collects a fee.
type PrepareRequest struct {
	Strategy  strategy.AccountStrategy
	Op        *domain.AccountOp
	Limits    *domain.Erc4337GasLimits
	FeeToken  domain.TokenResult
	FeeAmount *big.Int
	Provider  Provider
	Network   *domain.Network
	OnRetry   domain.RetryNotifier
}

type PreparedUserOperation struct {
	UserOperation         *erc4337.UserOperation    `json:"userOperation"`
	UserOpHash            common.Hash               `json:"userOpHash"`
	Paymaster             domain.PaymasterType      `json:"paymaster"`
	IsSponsored           bool                      `json:"isSponsored"`
	Sponsor               *erc4337.PaymasterSponsor `json:"sponsor,omitempty"`
	RequiresAuthorization bool                      `json:"requiresAuthorization"`
}

// BroadcastPlanner turns a chosen fee option into signing and submission
// instructions.
type BroadcastPlanner struct {
	gasPrices  *GasPriceService
	paymasters *PaymasterFactory
	contracts  domain.Contracts
}

func NewBroadcastPlanner(gasPrices *GasPriceService, paymasters *PaymasterFactory, c domain.Contracts) *BroadcastPlanner {
	return &BroadcastPlanner{gasPrices: gasPrices, paymasters: paymasters, contracts: c}
}

// logger wraps the execution context with component info
func (p *BroadcastPlanner) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("service", "broadcast").Logger()
	return &l
}

func (p *BroadcastPlanner) Plan(req PlanRequest) (*BroadcastPlan, error) {
	s := req.Strategy
	kind := s.GetBroadcastOption(req.FeeOption, strategy.BroadcastOptions{Op: req.Op, IsSponsored: req.IsSponsored})

	op := *req.Op
	plan := &BroadcastPlan{
		BroadcastOption:             kind,
		AtomicStatus:                s.GetAtomicStatus(),
		RequiresAuthorization:       s.ShouldSignAuthorization(kind),
		RequiresDeployAuthorization: s.ShouldSignDeployAuth(kind),
		IsSponsored:                 req.IsSponsored,
		To:                          s.Account().Addr,
	}

	if s.ShouldIncludeActivatorCall(kind) {
		activator, err := contracts.ActivatorCall(s.Account().Addr, p.contracts)
		if err != nil {
			return nil, err
		}
		op.ActivatorCall = &activator
		plan.IncludesActivatorCall = true
	}

	if req.Estimation != nil {
		plan.GasUsed = s.GetGasUsed(req.Estimation, strategy.GasUsedOptions{
			FeeToken: req.FeeOption.Token,
			PaidBy:   req.FeeOption.PaidBy,
			Op:       &op,
		})
	}

	if s.ShouldBroadcastCallsSeparately(&op) {
		plan.BroadcastCallsSeparately = true
		plan.Calls = op.Calls
		return plan, nil
	}

	// a key account without smart code sends its single call straight to the target
	if kind == domain.BroadcastBySelf && len(op.Calls) == 1 {
		plan.To = op.Calls[0].To
		plan.Calldata = op.Calls[0].Data
		return plan, nil
	}

	// the entry point deploys through the user operation's factory fields,
	// so the sender always runs executeBySender
	if kind == domain.BroadcastByBundler {
		calldata, err := contracts.EncodeExecuteBySender(op.SignableCalls())
		if err != nil {
			return nil, err
		}
		plan.Calldata = calldata
		return plan, nil
	}

	calldata, err := s.GetBroadcastCalldata(&op)
	if err != nil {
		return nil, err
	}
	plan.To = s.GetBroadcastTarget()
	plan.Calldata = calldata
	return plan, nil
}

// PrepareUserOperation builds the final user operation for a bundler
// broadcast, including the paymaster signature when one is used.
func (p *BroadcastPlanner) PrepareUserOperation(ctx context.Context, req PrepareRequest) (*PreparedUserOperation, error) {
	if req.Limits == nil {
		return nil, ErrNotBundlerBroadcast
	}
	s := req.Strategy
	network := req.Network
	if network == nil {
		network = s.Network()
	}

	tiers := req.Limits.GasPrice
	if tiers == nil {
		var err error
		if tiers, err = p.gasPrices.Fetch(ctx, network); err != nil {
			return nil, err
		}
	}

	op := *req.Op
	userOp, err := buildUserOperation(s, &op, tiers.Medium)
	if err != nil {
		return nil, err
	}

	paymaster := p.paymasters.New(req.OnRetry)
	paymaster.Init(ctx, &op, userOp, network, req.Provider)

	if paymaster.ShouldIncludePayment() && !paymaster.IsSponsored() && req.FeeAmount != nil {
		feeCall, err := paymaster.FeeCall(req.FeeToken, req.FeeAmount)
		if err != nil {
			return nil, err
		}
		op.FeeCall = &feeCall
		if userOp.CallData, err = contracts.EncodeExecuteBySender(op.SignableCalls()); err != nil {
			return nil, err
		}
	}

	if err := paymaster.ApplyEstimationData(userOp); err != nil {
		return nil, err
	}
	applyGasLimits(userOp, req.Limits)

	if paymaster.IsUsable() {
		data, err := paymaster.Call(ctx, userOp)
		if err != nil {
			p.logger(ctx).Warn().Err(err).
				Str("paymaster", string(paymaster.Type())).
				Msg("failed to obtain paymaster data")
			return nil, err
		}
		pm := data.Paymaster
		userOp.Paymaster = &pm
		userOp.PaymasterData = data.PaymasterData
	}

	hash, err := userOp.Hash(p.contracts.EntryPoint, new(big.Int).SetUint64(network.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to hash user operation: %w", err)
	}

	return &PreparedUserOperation{
		UserOperation:         userOp,
		UserOpHash:            hash,
		Paymaster:             paymaster.Type(),
		IsSponsored:           paymaster.IsSponsored(),
		Sponsor:               paymaster.Sponsor(),
		RequiresAuthorization: s.ShouldSignAuthorization(domain.BroadcastByBundler),
	}, nil
}

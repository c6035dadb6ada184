package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/metrics"
	"github.com/ethaccount/walletcore/src/strategy"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const (
	sourceAmbire   = "ambire"
	sourceProvider = "provider"
	sourceBundler  = "bundler"
)

// EstimateRequest carries everything one estimation needs. Switcher is the
// signing session's bundler state and must belong to the same network.
type EstimateRequest struct {
	Strategy      strategy.AccountStrategy
	Op            *domain.AccountOp
	FeeTokens     []domain.TokenResult
	NativeToCheck []common.Address
	Provider      Provider
	Switcher      *BundlerSwitcher
	OnRetry       domain.RetryNotifier
}

type EstimationOrchestrator struct {
	simulator  *AmbireSimulator
	bundlers   BundlerSource
	gasPrices  *GasPriceService
	paymasters *PaymasterFactory
	contracts  domain.Contracts
	metrics    metrics.Collector
}

func NewEstimationOrchestrator(
	simulator *AmbireSimulator,
	bundlers BundlerSource,
	gasPrices *GasPriceService,
	paymasters *PaymasterFactory,
	c domain.Contracts,
	collector metrics.Collector,
) *EstimationOrchestrator {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &EstimationOrchestrator{
		simulator:  simulator,
		bundlers:   bundlers,
		gasPrices:  gasPrices,
		paymasters: paymasters,
		contracts:  c,
		metrics:    collector,
	}
}

// logger wraps the execution context with component info
func (o *EstimationOrchestrator) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("service", "estimation").Logger()
	return &l
}

// Estimate runs the three estimation sources concurrently and folds their
// outcomes into a summary. A failed source is recorded, not fatal; only the
// strategy's critical error fails the whole call.
func (o *EstimationOrchestrator) Estimate(ctx context.Context, req EstimateRequest) (*domain.FullEstimationSummary, error) {
	defer o.metrics.MeasureEstimationDuration(time.Now())

	s := req.Strategy
	log := o.logger(ctx).With().
		Str("account", s.Account().Addr.Hex()).
		Uint64("chain_id", s.Network().ChainID).
		Str("strategy", string(s.Kind())).
		Logger()

	probe, err := o.probeOp(s, req.Op)
	if err != nil {
		return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
	}

	var (
		est domain.FullEstimation
		wg  sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		est.Ambire = runSource(func() (*domain.AmbireEstimation, error) {
			calls := append([]domain.Call{}, probe.Calls...)
			if probe.ActivatorCall != nil {
				calls = append(calls, *probe.ActivatorCall)
			}
			return o.simulator.Simulate(ctx, req.Provider, SimulationInput{
				Strategy:      s,
				Op:            probe,
				Calls:         calls,
				FeeTokens:     req.FeeTokens,
				NativeToCheck: req.NativeToCheck,
			})
		})
	}()
	go func() {
		defer wg.Done()
		est.Provider = runSource(func() (*domain.ProviderEstimation, error) {
			return o.estimateProvider(ctx, s, probe, req.Provider)
		})
	}()
	go func() {
		defer wg.Done()
		if !s.SupportsBundlerEstimation() {
			return
		}
		est.Bundler = runSource(func() (*domain.Erc4337GasLimits, error) {
			return o.estimateBundler(ctx, req, probe)
		})
	}()
	wg.Wait()

	for source, err := range map[string]error{
		sourceAmbire:   est.Ambire.Err,
		sourceProvider: est.Provider.Err,
		sourceBundler:  est.Bundler.Err,
	} {
		if err != nil {
			o.metrics.EstimationSourceFailed(source)
			log.Warn().Err(err).Str("source", source).Msg("estimation source failed")
		}
	}

	full := &est
	if full.Ambire.Ok() {
		expected := new(big.Int).Add(s.State().NonceOrZero(), big.NewInt(1))
		full.Ambire.Value.Flags.HasNonceDiscrepancy = full.Ambire.Value.Nonce.Cmp(expected) != 0
	}

	if err := s.GetEstimationCriticalError(full, req.Op); err != nil {
		log.Info().Err(err).Msg("estimation failed critically")
		return nil, err
	}

	options, err := s.GetAvailableFeeOptions(full, o.feeOptions(s, full, req), req.Op)
	if err != nil {
		return nil, err
	}
	for i := range options {
		options[i].GasUsed = s.GetGasUsed(full, strategy.GasUsedOptions{
			FeeToken: options[i].Token,
			PaidBy:   options[i].PaidBy,
			Op:       req.Op,
		})
	}

	summary := &domain.FullEstimationSummary{
		AmbireEstimation:   full.Ambire,
		ProviderEstimation: full.Provider,
		BundlerEstimation:  full.Bundler,
		FeePaymentOptions:  options,
	}
	if full.Ambire.Ok() {
		summary.Flags = full.Ambire.Value.Flags
	}

	log.Debug().Int("fee_options", len(options)).Msg("estimation finished")
	return summary, nil
}

// runSource turns fn into an Outcome. A panic is reported as a CodeError so
// one broken source never takes the others down.
func runSource[T any](fn func() (*T, error)) (out domain.Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Failure[T](domain.NewEstimationError(domain.KindCodeError, "", fmt.Errorf("panic: %v", r)))
		}
	}()
	v, err := fn()
	if err != nil {
		return domain.Failure[T](err)
	}
	if v == nil {
		return domain.Outcome[T]{}
	}
	return domain.Success(v)
}

// probeOp is a copy of op carrying the activator call when the account
// needs one in the worst case broadcast.
func (o *EstimationOrchestrator) probeOp(s strategy.AccountStrategy, op *domain.AccountOp) (*domain.AccountOp, error) {
	probe := *op
	probe.FeeCall = nil
	if s.ShouldIncludeActivatorCall(domain.BroadcastByOtherEOA) {
		activator, err := contracts.ActivatorCall(s.Account().Addr, o.contracts)
		if err != nil {
			return nil, err
		}
		probe.ActivatorCall = &activator
	}
	return &probe, nil
}

func (o *EstimationOrchestrator) estimateProvider(ctx context.Context, s strategy.AccountStrategy, op *domain.AccountOp, provider Provider) (*domain.ProviderEstimation, error) {
	msg, ok, err := s.ProviderEstimateCall(op)
	if err != nil {
		return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
	}
	if !ok {
		return nil, nil
	}
	gas, err := provider.EstimateGas(ctx, msg)
	if err != nil {
		if data, ok := revertData(err); ok {
			return nil, o.simulator.innerCallFailure(data, SimulationInput{Op: op})
		}
		return nil, domain.NewEstimationError(domain.KindProviderError, "", err)
	}
	return &domain.ProviderEstimation{GasUsed: new(big.Int).SetUint64(gas)}, nil
}

func (o *EstimationOrchestrator) estimateBundler(ctx context.Context, req EstimateRequest, probe *domain.AccountOp) (*domain.Erc4337GasLimits, error) {
	s := req.Strategy
	switcher := req.Switcher
	if switcher == nil {
		switcher = NewBundlerSwitcher(s.Network(), nil)
	}
	network := switcher.Network()
	if len(network.BundlerIDs()) == 0 {
		return nil, domain.NewEstimationError(domain.KindBundlerError, "no bundler configured", domain.ErrNoBundlerAvailable)
	}

	tiers, err := o.gasPrices.Fetch(ctx, network)
	if err != nil {
		return nil, domain.NewEstimationError(domain.KindBundlerError, "gas price unavailable", err)
	}

	userOp, err := buildUserOperation(s, probe, tiers.Medium)
	if err != nil {
		return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
	}

	paymaster := o.paymasters.New(req.OnRetry)
	paymaster.Init(ctx, probe, userOp, network, req.Provider)
	if paymaster.ShouldIncludePayment() && !paymaster.IsSponsored() {
		feeCall, err := paymaster.FeeCall(paymentToken(req.FeeTokens), big.NewInt(1))
		if err != nil {
			return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
		}
		withFee := *probe
		withFee.FeeCall = &feeCall
		if userOp.CallData, err = contracts.EncodeExecuteBySender(withFee.SignableCalls()); err != nil {
			return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
		}
	}
	if err := paymaster.ApplyEstimationData(userOp); err != nil {
		return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
	}

	gas, bundler, err := o.estimateWithSwitching(ctx, switcher, userOp, s.GetBundlerStateOverride(), req.OnRetry)
	if err != nil {
		return nil, err
	}

	limits := gasLimitsFromEstimate(gas, userOp)
	limits.GasPrice = tiers
	limits.Bundler = bundler
	limits.Paymaster = paymaster.Type()
	limits.IsSponsored = paymaster.IsSponsored()
	return limits, nil
}

// estimateWithSwitching asks the session's current bundler and moves to an
// untried one on infrastructure failures. The tried set only grows so the
// loop ends after every configured bundler was asked once.
func (o *EstimationOrchestrator) estimateWithSwitching(
	ctx context.Context,
	switcher *BundlerSwitcher,
	userOp *erc4337.UserOperation,
	overrides erc4337.StateOverride,
	onRetry domain.RetryNotifier,
) (*erc4337.GasEstimates, domain.BundlerID, error) {
	network := switcher.Network()
	for {
		id := switcher.Current()
		gas, err := o.estimateOnBundler(ctx, network, id, userOp, overrides)
		if err == nil {
			return gas, id, nil
		}

		bundlerErr := &domain.BundlerError{Bundler: id, Err: err}
		if !switcher.CanSwitch(err) {
			onRetry.Notify(domain.RetryEvent{
				Level:   domain.EventLevelMinor,
				Message: "Bundler estimation failed",
				Err:     bundlerErr,
			})
			return nil, id, domain.NewEstimationError(domain.KindBundlerError, "", bundlerErr)
		}

		next, switchErr := switcher.Switch()
		if switchErr != nil {
			return nil, id, domain.NewEstimationError(domain.KindBundlerError, "", bundlerErr)
		}
		o.metrics.BundlerSwitched(network.ChainID)
		o.logger(ctx).Warn().Err(err).
			Str("from", string(id)).
			Str("to", string(next)).
			Msg("switching bundler")
		onRetry.Notify(domain.RetryEvent{
			Level:   domain.EventLevelMajor,
			Message: "Bundler is not responding. Retrying with another one...",
			Err:     bundlerErr,
		})
	}
}

func (o *EstimationOrchestrator) estimateOnBundler(
	ctx context.Context,
	network *domain.Network,
	id domain.BundlerID,
	userOp *erc4337.UserOperation,
	overrides erc4337.StateOverride,
) (*erc4337.GasEstimates, error) {
	bundler, err := o.bundlers.GetBundlerClient(ctx, network, id)
	if err != nil {
		return nil, err
	}
	return bundler.EstimateUserOperationGas(ctx, userOp, o.contracts.EntryPoint, overrides)
}

// feeOptions lists every (payer, token) pair before the strategy filters
// them. Simulated amounts win over the portfolio amounts when present.
func (o *EstimationOrchestrator) feeOptions(s strategy.AccountStrategy, est *domain.FullEstimation, req EstimateRequest) []domain.FeePaymentOption {
	var ambire *domain.AmbireEstimation
	if est.Ambire.Ok() {
		ambire = est.Ambire.Value
	}
	addedNative := func() *big.Int {
		if ambire == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(bigOrZero(ambire.L1Fee))
	}

	account := s.Account().Addr
	options := make([]domain.FeePaymentOption, 0, len(req.FeeTokens)+len(req.NativeToCheck))
	for _, token := range req.FeeTokens {
		if !token.Flags.IsFeeToken {
			continue
		}
		options = append(options, domain.FeePaymentOption{
			PaidBy:          account,
			Token:           token,
			AvailableAmount: availableAmount(s, ambire, token),
			GasUsed:         new(big.Int),
			AddedNative:     addedNative(),
		})
	}

	native := nativeToken(req.FeeTokens)
	for _, holder := range req.NativeToCheck {
		balance := new(big.Int)
		if ambire != nil {
			if b, ok := ambire.NativeAssetBalances[holder]; ok && b != nil {
				balance = new(big.Int).Set(b)
			}
		}
		options = append(options, domain.FeePaymentOption{
			PaidBy:          holder,
			Token:           native,
			AvailableAmount: balance,
			GasUsed:         new(big.Int),
			AddedNative:     addedNative(),
		})
	}
	return options
}

func availableAmount(s strategy.AccountStrategy, ambire *domain.AmbireEstimation, token domain.TokenResult) *big.Int {
	if token.Flags.OnGasTank {
		if token.AvailableAmount != nil {
			return new(big.Int).Set(token.AvailableAmount)
		}
		return token.AmountOrZero()
	}
	if ambire == nil {
		return token.AmountOrZero()
	}
	outcome, ok := ambire.FeeTokenOutcome(token.Address)
	if !ok || outcome.Amount == nil {
		return token.AmountOrZero()
	}
	amount := new(big.Int).Set(outcome.Amount)
	// native received by the batch is only spendable on fees by some accounts
	if token.IsNative() && !s.CanUseReceivingNativeForFee(amount) && amount.Cmp(token.AmountOrZero()) > 0 {
		return token.AmountOrZero()
	}
	return amount
}

func nativeToken(tokens []domain.TokenResult) domain.TokenResult {
	for _, t := range tokens {
		if t.IsNative() {
			return t
		}
	}
	return domain.TokenResult{Symbol: "ETH", Decimals: 18, Flags: domain.TokenFlags{IsFeeToken: true}}
}

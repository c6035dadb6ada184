package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

const (
	paymasterStubTimeout = 5 * time.Second
	paymasterCallTimeout = 8 * time.Second
	paymasterMaxAttempts = 3

	// gas the hosted paymaster reserves for validation during estimation
	ambirePaymasterVerificationGas = 100000
)

// PaymasterDialer opens a client for a dapp supplied ERC-7677 service
type PaymasterDialer func(ctx context.Context, url string) (erc4337.PaymasterService, error)

func dialPaymaster(ctx context.Context, url string) (erc4337.PaymasterService, error) {
	return erc4337.DialPaymaster(ctx, url)
}

// PaymasterFactory builds one PaymasterCoordinator per operation while
// sharing the process wide FailedPaymasters registry.
type PaymasterFactory struct {
	failed    FailedPaymasters
	relayer   RelayerSigner
	dial      PaymasterDialer
	contracts domain.Contracts
	metrics   metrics.Collector
}

func NewPaymasterFactory(failed FailedPaymasters, relayer RelayerSigner, c domain.Contracts, collector metrics.Collector) *PaymasterFactory {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &PaymasterFactory{
		failed:    failed,
		relayer:   relayer,
		dial:      dialPaymaster,
		contracts: c,
		metrics:   collector,
	}
}

// WithDialer replaces how ERC-7677 services are reached
func (f *PaymasterFactory) WithDialer(dial PaymasterDialer) *PaymasterFactory {
	f.dial = dial
	return f
}

func (f *PaymasterFactory) New(onRetry domain.RetryNotifier) *PaymasterCoordinator {
	return &PaymasterCoordinator{factory: f, onRetry: onRetry, typ: domain.PaymasterNone}
}

// PaymasterCoordinator decides how the fee of one user operation is settled.
// Init must run before any other method.
type PaymasterCoordinator struct {
	factory *PaymasterFactory
	onRetry domain.RetryNotifier

	initialized bool
	typ         domain.PaymasterType
	network     *domain.Network
	provider    Provider
	service     *domain.PaymasterService
	client      erc4337.PaymasterService
	stub        *erc4337.PaymasterStubData
}

// logger wraps the execution context with component info
func (p *PaymasterCoordinator) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("service", "paymaster").Logger()
	return &l
}

// Init resolves the paymaster type for op on network
func (p *PaymasterCoordinator) Init(ctx context.Context, op *domain.AccountOp, userOp *erc4337.UserOperation, network *domain.Network, provider Provider) {
	p.initialized = true
	p.typ = domain.PaymasterNone
	p.network = network
	p.provider = provider
	p.service = op.PaymasterService()
	p.client = nil
	p.stub = nil

	if p.service != nil && p.initERC7677(ctx, userOp) {
		p.typ = domain.PaymasterERC7677
		return
	}
	if p.ambireAvailable(ctx) {
		p.typ = domain.PaymasterAmbire
	}
}

func (p *PaymasterCoordinator) initERC7677(ctx context.Context, userOp *erc4337.UserOperation) bool {
	log := p.logger(ctx).With().Str("sponsorship_id", p.service.ID).Logger()

	failed, err := p.factory.failed.HasFailedSponsorship(ctx, p.service.ID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read sponsorship registry")
	}
	if failed {
		log.Debug().Msg("sponsorship failed before, skipping paymaster service")
		return false
	}

	client, err := p.factory.dial(ctx, p.service.URL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to dial paymaster service")
		return false
	}

	stubCtx, cancel := context.WithTimeout(ctx, paymasterStubTimeout)
	defer cancel()
	stub, err := client.GetPaymasterStubData(stubCtx, userOp, p.factory.contracts.EntryPoint, p.chainID(), p.service.Context)
	if err != nil {
		log.Warn().Err(err).Msg("paymaster stub data unavailable")
		return false
	}

	p.client = client
	p.stub = stub
	return true
}

func (p *PaymasterCoordinator) ambireAvailable(ctx context.Context) bool {
	if p.factory.relayer == nil {
		return false
	}
	chainID := p.network.ChainID
	lastSeen, insufficient, err := p.factory.failed.InsufficientFunds(ctx, chainID)
	if err != nil {
		p.logger(ctx).Warn().Err(err).Uint64("chain_id", chainID).Msg("failed to read insufficient funds registry")
	}

	// a hosted paymaster is trusted until it is seen short of funds; only
	// custom networks and drained paymasters are checked on chain
	if p.network.Erc4337.HasPaymaster && !insufficient {
		return true
	}
	if p.network.Predefined && !insufficient {
		return false
	}
	if p.provider == nil {
		return false
	}

	balance, err := EntryPointBalance(ctx, p.provider, p.factory.contracts.EntryPoint, p.factory.contracts.AmbirePaymaster)
	if err != nil {
		p.logger(ctx).Warn().Err(err).Uint64("chain_id", chainID).Msg("failed to read paymaster deposit")
		return false
	}
	if lastSeen == nil {
		lastSeen = new(big.Int)
	}
	if balance.Cmp(lastSeen) <= 0 {
		return false
	}
	if insufficient {
		if err := p.factory.failed.ClearInsufficientFunds(ctx, chainID); err != nil {
			p.logger(ctx).Warn().Err(err).Uint64("chain_id", chainID).Msg("failed to clear insufficient funds")
		}
	}
	return true
}

func (p *PaymasterCoordinator) chainID() *big.Int {
	return new(big.Int).SetUint64(p.network.ChainID)
}

func (p *PaymasterCoordinator) Type() domain.PaymasterType { return p.typ }

func (p *PaymasterCoordinator) IsUsable() bool { return p.typ != domain.PaymasterNone }

// IsSponsored is true only for dapp sponsorship
func (p *PaymasterCoordinator) IsSponsored() bool { return p.typ == domain.PaymasterERC7677 }

func (p *PaymasterCoordinator) ShouldIncludePayment() bool {
	return p.typ == domain.PaymasterAmbire || p.typ == domain.PaymasterERC7677
}

func (p *PaymasterCoordinator) Sponsor() *erc4337.PaymasterSponsor {
	if p.stub == nil {
		return nil
	}
	return p.stub.Sponsor
}

// ApplyEstimationData fills the paymaster fields used while estimating
func (p *PaymasterCoordinator) ApplyEstimationData(userOp *erc4337.UserOperation) error {
	switch p.typ {
	case domain.PaymasterERC7677:
		paymaster := p.stub.Paymaster
		userOp.Paymaster = &paymaster
		userOp.PaymasterData = p.stub.PaymasterData
		userOp.PaymasterVerificationGasLimit = p.stub.PaymasterVerificationGasLimit
		userOp.PaymasterPostOpGasLimit = p.stub.PaymasterPostOpGasLimit
	case domain.PaymasterAmbire:
		data, err := contracts.EncodeAmbirePaymasterData(0, 0, dummySignature())
		if err != nil {
			return err
		}
		paymaster := p.factory.contracts.AmbirePaymaster
		userOp.Paymaster = &paymaster
		userOp.PaymasterData = data
		userOp.PaymasterVerificationGasLimit = (*hexutil.Big)(big.NewInt(ambirePaymasterVerificationGas))
		userOp.PaymasterPostOpGasLimit = (*hexutil.Big)(new(big.Int))
	}
	return nil
}

// FeeCall is the call that pays amount of token to the fee collector
func (p *PaymasterCoordinator) FeeCall(token domain.TokenResult, amount *big.Int) (domain.Call, error) {
	return FeeCall(p.factory.contracts, token, amount)
}

// Call fetches the final paymaster data for userOp. Timeouts are retried up
// to the attempt cap; any other failure ends the attempt.
func (p *PaymasterCoordinator) Call(ctx context.Context, userOp *erc4337.UserOperation) (*erc4337.PaymasterData, error) {
	if !p.initialized {
		return nil, domain.ErrPaymasterNotInitialized
	}
	if !p.IsUsable() {
		return nil, domain.NewEstimationError(domain.KindPaymasterError, "no paymaster available", nil)
	}
	return p.call(ctx, userOp, 1)
}

func (p *PaymasterCoordinator) call(ctx context.Context, userOp *erc4337.UserOperation, attempt int) (*erc4337.PaymasterData, error) {
	callCtx, cancel := context.WithTimeout(ctx, paymasterCallTimeout)
	data, err := p.request(callCtx, userOp)
	cancel()

	if err == nil {
		p.factory.metrics.PaymasterAttempted(string(p.typ), "success")
		return data, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		p.factory.metrics.PaymasterAttempted(string(p.typ), "timeout")
		if attempt < paymasterMaxAttempts {
			p.logger(ctx).Warn().Err(err).Int("attempt", attempt).Msg("paymaster timed out, retrying")
			p.onRetry.Notify(domain.RetryEvent{
				Level:   domain.EventLevelMajor,
				Message: "Paymaster is not responding. Retrying...",
				Err:     err,
			})
			return p.call(ctx, userOp, attempt+1)
		}
		// an unresponsive paymaster says nothing about the sponsorship, so it
		// stays out of the failure registry
		p.logger(ctx).Warn().Err(err).Int("attempts", attempt).Msg("paymaster timed out")
		return nil, domain.NewEstimationError(domain.KindPaymasterError, "paymaster is not responding", err)
	} else {
		p.factory.metrics.PaymasterAttempted(string(p.typ), "failure")
	}

	return nil, p.fail(ctx, err)
}

func (p *PaymasterCoordinator) request(ctx context.Context, userOp *erc4337.UserOperation) (*erc4337.PaymasterData, error) {
	switch p.typ {
	case domain.PaymasterERC7677:
		if p.stub.IsFinal {
			return &erc4337.PaymasterData{Paymaster: p.stub.Paymaster, PaymasterData: p.stub.PaymasterData}, nil
		}
		return p.client.GetPaymasterData(ctx, userOp, p.factory.contracts.EntryPoint, p.chainID(), p.service.Context)
	case domain.PaymasterAmbire:
		return p.factory.relayer.SignPaymaster(ctx, p.network.ChainID, userOp, p.factory.contracts.AmbirePaymaster)
	default:
		return nil, fmt.Errorf("unsupported paymaster type %s", p.typ)
	}
}

// fail records the failure in the shared registry and classifies it
func (p *PaymasterCoordinator) fail(ctx context.Context, err error) error {
	if p.typ == domain.PaymasterERC7677 {
		if markErr := p.factory.failed.MarkSponsorshipFailed(ctx, p.service.ID); markErr != nil {
			p.logger(ctx).Warn().Err(markErr).Msg("failed to record failed sponsorship")
		}
		p.logger(ctx).Warn().Err(err).Str("sponsorship_id", p.service.ID).Msg("sponsorship failed")
		return domain.NewEstimationError(domain.KindPaymasterSponsorshipError, "sponsorship failed", err)
	}

	var relayerErr *RelayerError
	if errors.As(err, &relayerErr) && relayerErr.IsInsufficientFunds() {
		balance := new(big.Int)
		if p.provider != nil {
			if b, balErr := EntryPointBalance(ctx, p.provider, p.factory.contracts.EntryPoint, p.factory.contracts.AmbirePaymaster); balErr == nil {
				balance = b
			}
		}
		if markErr := p.factory.failed.MarkInsufficientFunds(ctx, p.network.ChainID, balance); markErr != nil {
			p.logger(ctx).Warn().Err(markErr).Msg("failed to record insufficient funds")
		}
		return domain.NewEstimationError(domain.KindPaymasterError, "paymaster has insufficient funds", err)
	}

	p.logger(ctx).Warn().Err(err).Str("paymaster", string(p.typ)).Msg("paymaster request failed")
	return domain.NewEstimationError(domain.KindPaymasterError, "paymaster request failed", err)
}

// FeeCall builds the call that pays amount of token to the fee collector.
// Native goes as value, gas tank as an encoded debit and tokens as a transfer.
func FeeCall(c domain.Contracts, token domain.TokenResult, amount *big.Int) (domain.Call, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	switch {
	case token.Flags.OnGasTank:
		data, err := contracts.EncodeGasTankPayment(amount, token.Symbol)
		if err != nil {
			return domain.Call{}, err
		}
		return domain.Call{To: c.FeeCollector, Value: new(big.Int), Data: data}, nil
	case token.Address == (common.Address{}):
		return domain.Call{To: c.FeeCollector, Value: new(big.Int).Set(amount), Data: []byte{}}, nil
	default:
		data, err := contracts.EncodeERC20Transfer(c.FeeCollector, amount)
		if err != nil {
			return domain.Call{}, err
		}
		return domain.Call{To: token.Address, Value: new(big.Int), Data: data}, nil
	}
}

// dummySignature is a well formed 65 byte signature for estimation only
func dummySignature() []byte {
	sig := make([]byte, 65)
	for i := range sig[:64] {
		sig[i] = 0x11
	}
	sig[64] = 0x1b
	return sig
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/strategy"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// AccountOpInput identifies the account and the batch a request is about
type AccountOpInput struct {
	ChainID   uint64                     `json:"chainId" binding:"required"`
	SessionID string                     `json:"sessionId"`
	Account   domain.Account             `json:"account" binding:"required"`
	State     domain.AccountOnchainState `json:"state"`
	Op        domain.AccountOp           `json:"op" binding:"required"`
}

type EstimateInput struct {
	AccountOpInput
	FeeTokens     []domain.TokenResult `json:"feeTokens"`
	NativeToCheck []common.Address     `json:"nativeToCheck"`
}

type EstimateOutput struct {
	SessionID    string                        `json:"sessionId"`
	Strategy     strategy.Kind                 `json:"strategy"`
	AtomicStatus domain.AtomicStatus           `json:"atomicStatus"`
	UsedBundlers []domain.BundlerID            `json:"usedBundlers"`
	Summary      *domain.FullEstimationSummary `json:"summary"`
	Events       []domain.RetryEvent           `json:"events"`
}

type PlanInput struct {
	AccountOpInput
	FeeOption   domain.FeePaymentOption `json:"feeOption"`
	IsSponsored bool                    `json:"isSponsored"`
}

type PrepareInput struct {
	AccountOpInput
	FeeToken  domain.TokenResult `json:"feeToken"`
	FeeAmount *big.Int           `json:"feeAmount"`
}

type PrepareOutput struct {
	*PreparedUserOperation
	Events []domain.RetryEvent `json:"events"`
}

// AccountOpService is the entry point of the HTTP and CLI surfaces. It
// resolves the network, the provider, the strategy and the signing session,
// then hands over to the orchestrator or the planner.
type AccountOpService struct {
	networks     *NetworkRegistry
	providers    ProviderSource
	sessions     *SessionStore
	orchestrator *EstimationOrchestrator
	planner      *BroadcastPlanner
	contracts    domain.Contracts
}

func NewAccountOpService(
	networks *NetworkRegistry,
	providers ProviderSource,
	sessions *SessionStore,
	orchestrator *EstimationOrchestrator,
	planner *BroadcastPlanner,
	c domain.Contracts,
) *AccountOpService {
	return &AccountOpService{
		networks:     networks,
		providers:    providers,
		sessions:     sessions,
		orchestrator: orchestrator,
		planner:      planner,
		contracts:    c,
	}
}

// logger wraps the execution context with component info
func (s *AccountOpService) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("service", "account-op").Logger()
	return &l
}

// eventRecorder collects retry events for the response. Events arrive from
// estimation goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.RetryEvent
}

func (r *eventRecorder) notify(event domain.RetryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) list() []domain.RetryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RetryEvent{}, r.events...)
}

func (s *AccountOpService) resolve(ctx context.Context, in *AccountOpInput) (strategy.AccountStrategy, Provider, error) {
	network, err := s.networks.Get(in.ChainID)
	if err != nil {
		return nil, nil, domain.NewError(domain.ErrorCodeParameterInvalid, err, domain.WithMsg("Unknown network"))
	}
	if in.Op.ChainID != 0 && in.Op.ChainID != in.ChainID {
		return nil, nil, domain.NewError(domain.ErrorCodeParameterInvalid,
			fmt.Errorf("op chain id %d does not match %d", in.Op.ChainID, in.ChainID),
			domain.WithMsg("Operation chain mismatch"))
	}
	if in.Op.AccountAddr != (common.Address{}) && in.Op.AccountAddr != in.Account.Addr {
		return nil, nil, domain.NewError(domain.ErrorCodeParameterInvalid,
			fmt.Errorf("op account %s does not match %s", in.Op.AccountAddr.Hex(), in.Account.Addr.Hex()),
			domain.WithMsg("Operation account mismatch"))
	}

	provider, err := s.providers.GetProvider(ctx, in.ChainID)
	if err != nil {
		return nil, nil, domain.NewError(domain.ErrorCodeRemoteProcessError, err)
	}
	return strategy.Select(in.Account, network, &in.State, s.contracts), provider, nil
}

func (s *AccountOpService) Estimate(ctx context.Context, in EstimateInput) (*EstimateOutput, error) {
	st, provider, err := s.resolve(ctx, &in.AccountOpInput)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Resume(in.SessionID, st.Network())
	if err != nil {
		return nil, domain.NewError(domain.ErrorCodeResourceNotFound, err, domain.WithMsg("Signing session not found"))
	}

	recorder := &eventRecorder{}
	summary, err := s.orchestrator.Estimate(ctx, EstimateRequest{
		Strategy:      st,
		Op:            &in.Op,
		FeeTokens:     in.FeeTokens,
		NativeToCheck: in.NativeToCheck,
		Provider:      provider,
		Switcher:      session.Switcher,
		OnRetry:       recorder.notify,
	})
	if err != nil {
		return nil, estimationFailed(err)
	}
	session.SetEstimation(summary)

	if summary.Flags.HasNonceDiscrepancy {
		s.logger(ctx).Info().
			Str("session_id", session.ID).
			Str("account", in.Account.Addr.Hex()).
			Msg("simulated nonce does not follow the account nonce")
	}

	return &EstimateOutput{
		SessionID:    session.ID,
		Strategy:     st.Kind(),
		AtomicStatus: st.GetAtomicStatus(),
		UsedBundlers: session.Switcher.Used(),
		Summary:      summary,
		Events:       recorder.list(),
	}, nil
}

// Plan decides how the op is broadcast with the chosen fee option, using the
// latest estimation of the session.
func (s *AccountOpService) Plan(ctx context.Context, in PlanInput) (*BroadcastPlan, error) {
	st, _, err := s.resolve(ctx, &in.AccountOpInput)
	if err != nil {
		return nil, err
	}

	var est *domain.FullEstimation
	if in.SessionID != "" {
		session, err := s.sessions.Get(in.SessionID)
		if err != nil {
			return nil, domain.NewError(domain.ErrorCodeResourceNotFound, err, domain.WithMsg("Signing session not found"))
		}
		if summary, ok := session.Estimation(); ok {
			est = summary.Estimation()
		}
	}

	plan, err := s.planner.Plan(PlanRequest{
		Strategy:    st,
		Op:          &in.Op,
		FeeOption:   in.FeeOption,
		Estimation:  est,
		IsSponsored: in.IsSponsored,
	})
	if err != nil {
		return nil, domain.NewError(domain.ErrorCodeParameterInvalid, err)
	}
	return plan, nil
}

// PrepareUserOperation commits the session and builds the user operation
// the account signs for a bundler broadcast.
func (s *AccountOpService) PrepareUserOperation(ctx context.Context, in PrepareInput) (*PrepareOutput, error) {
	st, provider, err := s.resolve(ctx, &in.AccountOpInput)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(in.SessionID)
	if err != nil {
		return nil, domain.NewError(domain.ErrorCodeResourceNotFound, err, domain.WithMsg("Signing session not found"))
	}
	summary, ok := session.Estimation()
	if !ok || !summary.BundlerEstimation.Ok() {
		return nil, domain.NewError(domain.ErrorCodeParameterInvalid, ErrNotBundlerBroadcast,
			domain.WithMsg("No bundler estimation in this session"))
	}
	session.Commit()

	recorder := &eventRecorder{}
	prepared, err := s.planner.PrepareUserOperation(ctx, PrepareRequest{
		Strategy:  st,
		Op:        &in.Op,
		Limits:    summary.BundlerEstimation.Value,
		FeeToken:  in.FeeToken,
		FeeAmount: in.FeeAmount,
		Provider:  provider,
		Network:   session.Switcher.Network(),
		OnRetry:   recorder.notify,
	})
	if err != nil {
		return nil, estimationFailed(err)
	}
	return &PrepareOutput{PreparedUserOperation: prepared, Events: recorder.list()}, nil
}

func (s *AccountOpService) CommitSession(id string) error {
	if err := s.sessions.Commit(id); err != nil {
		return domain.NewError(domain.ErrorCodeResourceNotFound, err, domain.WithMsg("Signing session not found"))
	}
	return nil
}

// estimationFailed maps core errors to the HTTP error taxonomy
func estimationFailed(err error) error {
	var domainErr domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	kind, ok := domain.KindOf(err)
	if !ok {
		if errors.Is(err, domain.ErrNativeFeeOptionMissing) || errors.Is(err, domain.ErrMultipleCallsNotSupported) {
			return domain.NewError(domain.ErrorCodeEstimationFailed, err, domain.WithMsg(err.Error()))
		}
		return domain.NewError(domain.ErrorCodeInternalProcess, err)
	}

	detail := map[string]interface{}{"kind": kind}
	var estErr *domain.EstimationError
	if errors.As(err, &estErr) {
		if estErr.Cause != "" {
			detail["cause"] = estErr.Cause
		}
		if len(estErr.Data) > 0 {
			detail["data"] = estErr.Data.String()
		}
	}

	code := domain.ErrorCodeEstimationFailed
	switch kind {
	case domain.KindProviderError, domain.KindBundlerError, domain.KindPaymasterError,
		domain.KindPaymasterSponsorshipError, domain.KindRelayerError:
		code = domain.ErrorCodeRemoteProcessError
	case domain.KindCodeError:
		code = domain.ErrorCodeInternalProcess
	}
	return domain.NewError(code, err, domain.WithDetail(detail))
}

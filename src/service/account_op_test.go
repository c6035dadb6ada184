package service

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccountOps(provider Provider, bundlers fakeBundlerSource, networks ...*domain.Network) (*AccountOpService, *SessionStore) {
	registry := NewNetworkRegistry(nil)
	for _, n := range networks {
		registry.Set(*n)
	}
	sessions := NewSessionStore(10, time.Minute)
	return NewAccountOpService(
		registry,
		fakeProviderSource{provider: provider},
		sessions,
		newTestOrchestrator(bundlers, nil),
		newTestPlanner(nil),
		domain.DefaultContracts(),
	), sessions
}

func smartAccountInput(state domain.AccountOnchainState) EstimateInput {
	state.IsV2 = true
	return EstimateInput{
		AccountOpInput: AccountOpInput{
			ChainID: 1,
			Account: domain.Account{Addr: testAccount},
			State:   state,
			Op:      *testOp(),
		},
		FeeTokens: testFeeTokens(),
	}
}

func deployedState() domain.AccountOnchainState {
	return domain.AccountOnchainState{IsDeployed: true, IsErc4337Enabled: true, Nonce: big.NewInt(3), Erc4337Nonce: big.NewInt(0)}
}

func requireDomainError(t *testing.T, err error) domain.DomainError {
	t.Helper()
	var domainErr domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr
}

func TestAccountOps_EstimateEOA(t *testing.T) {
	network := testNetwork()
	network.Has7702 = false
	ops, _ := newTestAccountOps(simulatingProvider(t, successOutput(4)), fakeBundlerSource{}, network)

	in := EstimateInput{
		AccountOpInput: AccountOpInput{
			ChainID: 1,
			Account: domain.Account{Addr: testAccount},
			State:   domain.AccountOnchainState{IsEOA: true, Nonce: big.NewInt(3)},
			Op:      *testOp(),
		},
		FeeTokens: testFeeTokens(),
	}
	out, err := ops.Estimate(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, strategy.KindEOA, out.Strategy)
	assert.Equal(t, domain.AtomicUnsupported, out.AtomicStatus)
	require.Len(t, out.Summary.FeePaymentOptions, 1)
	assert.Empty(t, out.Events)

	// estimating again in the session keeps its id
	in.SessionID = out.SessionID
	again, err := ops.Estimate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, out.SessionID, again.SessionID)
}

func TestAccountOps_EstimateReportsBundlerSwitch(t *testing.T) {
	down := &fakeBundler{estimate: func(*erc4337.UserOperation, erc4337.StateOverride) (*erc4337.GasEstimates, error) {
		return nil, errBundlerDown
	}}
	ops, _ := newTestAccountOps(
		simulatingProvider(t, successOutput(4)),
		fakeBundlerSource{"pimlico": down, "biconomy": &fakeBundler{}},
		testNetwork("pimlico", "biconomy"),
	)

	out, err := ops.Estimate(context.Background(), smartAccountInput(deployedState()))
	require.NoError(t, err)
	assert.Equal(t, strategy.KindSmartAccount, out.Strategy)
	assert.Equal(t, []domain.BundlerID{"pimlico", "biconomy"}, out.UsedBundlers)
	require.Len(t, out.Events, 1)
	assert.Equal(t, domain.EventLevelMajor, out.Events[0].Level)
}

func TestAccountOps_RejectsBadInput(t *testing.T) {
	ops, _ := newTestAccountOps(simulatingProvider(t, successOutput(4)), fakeBundlerSource{}, testNetwork())

	t.Run("unknown network", func(t *testing.T) {
		in := smartAccountInput(deployedState())
		in.ChainID = 137
		_, err := ops.Estimate(context.Background(), in)
		assert.Equal(t, http.StatusBadRequest, requireDomainError(t, err).HTTPStatus())
	})

	t.Run("op on another chain", func(t *testing.T) {
		in := smartAccountInput(deployedState())
		in.Op.ChainID = 10
		_, err := ops.Estimate(context.Background(), in)
		assert.Equal(t, http.StatusBadRequest, requireDomainError(t, err).HTTPStatus())
	})

	t.Run("unknown session", func(t *testing.T) {
		in := smartAccountInput(deployedState())
		in.SessionID = "missing"
		_, err := ops.Estimate(context.Background(), in)
		assert.Equal(t, http.StatusNotFound, requireDomainError(t, err).HTTPStatus())
	})
}

func TestAccountOps_CriticalFailure(t *testing.T) {
	out := successOutput(4)
	out.OpSuccess = false
	out.OpErr = revertReason(t, "insufficient balance")
	ops, _ := newTestAccountOps(simulatingProvider(t, out), fakeBundlerSource{}, testNetwork())

	_, err := ops.Estimate(context.Background(), smartAccountInput(deployedState()))
	domainErr := requireDomainError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, domainErr.HTTPStatus())
	assert.Equal(t, domain.KindInnerCallFailure, domainErr.Detail()["kind"])
	assert.Equal(t, "insufficient balance", domainErr.Detail()["cause"])
}

func TestAccountOps_PlanUsesSessionEstimation(t *testing.T) {
	ops, _ := newTestAccountOps(simulatingProvider(t, successOutput(4)), fakeBundlerSource{"pimlico": &fakeBundler{}}, testNetwork("pimlico"))
	in := smartAccountInput(deployedState())

	out, err := ops.Estimate(context.Background(), in)
	require.NoError(t, err)

	planIn := PlanInput{AccountOpInput: in.AccountOpInput, FeeOption: out.Summary.FeePaymentOptions[0]}
	planIn.SessionID = out.SessionID
	plan, err := ops.Plan(context.Background(), planIn)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastByBundler, plan.BroadcastOption)
	assert.Equal(t, out.Summary.FeePaymentOptions[0].GasUsed.String(), plan.GasUsed.String())
}

func TestAccountOps_PrepareCommitsSession(t *testing.T) {
	ops, sessions := newTestAccountOps(simulatingProvider(t, successOutput(4)), fakeBundlerSource{"pimlico": &fakeBundler{}}, testNetwork("pimlico"))
	in := smartAccountInput(deployedState())

	out, err := ops.Estimate(context.Background(), in)
	require.NoError(t, err)

	prepareIn := PrepareInput{AccountOpInput: in.AccountOpInput, FeeToken: testFeeTokens()[0]}
	prepareIn.SessionID = out.SessionID
	prepared, err := ops.PrepareUserOperation(context.Background(), prepareIn)
	require.NoError(t, err)
	assert.NotEqual(t, [32]byte{}, [32]byte(prepared.UserOpHash))
	assert.Equal(t, domain.PaymasterNone, prepared.Paymaster)

	session, err := sessions.Get(out.SessionID)
	require.NoError(t, err)
	assert.True(t, session.Committed())
}

func TestAccountOps_PrepareWithoutBundlerEstimation(t *testing.T) {
	network := testNetwork()
	ops, sessions := newTestAccountOps(simulatingProvider(t, successOutput(4)), fakeBundlerSource{}, network)
	session := sessions.Open(network)

	prepareIn := PrepareInput{AccountOpInput: smartAccountInput(deployedState()).AccountOpInput}
	prepareIn.SessionID = session.ID
	_, err := ops.PrepareUserOperation(context.Background(), prepareIn)
	domainErr := requireDomainError(t, err)
	assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
	assert.ErrorIs(t, err, ErrNotBundlerBroadcast)
	assert.False(t, session.Committed())
}

func TestAccountOps_CommitSession(t *testing.T) {
	network := testNetwork()
	ops, sessions := newTestAccountOps(nil, fakeBundlerSource{}, network)

	err := ops.CommitSession("missing")
	assert.Equal(t, http.StatusNotFound, requireDomainError(t, err).HTTPStatus())

	session := sessions.Open(network)
	require.NoError(t, ops.CommitSession(session.ID))
	assert.True(t, session.Committed())
}

func TestEstimationFailed(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"inner call", domain.NewEstimationError(domain.KindInnerCallFailure, "reverted", nil), http.StatusUnprocessableEntity},
		{"provider", domain.NewEstimationError(domain.KindProviderError, "", errors.New("timeout")), http.StatusBadGateway},
		{"bundler", domain.NewEstimationError(domain.KindBundlerError, "", errBundlerDown), http.StatusBadGateway},
		{"relayer", domain.NewEstimationError(domain.KindRelayerError, "", nil), http.StatusBadGateway},
		{"code", domain.NewEstimationError(domain.KindCodeError, "", errors.New("panic")), http.StatusInternalServerError},
		{"missing native option", domain.ErrNativeFeeOptionMissing, http.StatusUnprocessableEntity},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
		{"already mapped", domain.NewError(domain.ErrorCodeResourceNotFound, nil), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, requireDomainError(t, estimationFailed(tt.err)).HTTPStatus())
		})
	}
}

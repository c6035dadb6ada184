package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type ErrorKind string

const (
	KindInnerCallFailure          ErrorKind = "InnerCallFailure"
	KindNonceDiscrepancy          ErrorKind = "NonceDiscrepancy"
	KindProviderError             ErrorKind = "ProviderError"
	KindBundlerError              ErrorKind = "BundlerError"
	KindPaymasterError            ErrorKind = "PaymasterError"
	KindPaymasterSponsorshipError ErrorKind = "PaymasterSponsorshipError"
	KindRelayerError              ErrorKind = "RelayerError"
	KindCodeError                 ErrorKind = "CodeError"
)

const CauseInsufficientNativeForCalls = "insufficient native for calls"

var (
	ErrNativeFeeOptionMissing    = errors.New("native fee payment option missing")
	ErrMultipleCallsNotSupported = errors.New("account cannot broadcast multiple calls in one transaction")
	ErrNoBundlerAvailable        = errors.New("no untried bundler available")
	ErrUnknownNetwork            = errors.New("unknown network")
	ErrUnknownBundler            = errors.New("unknown bundler")
	ErrSessionNotFound           = errors.New("signing session not found")
	ErrPaymasterNotInitialized   = errors.New("paymaster coordinator not initialized")
	ErrSimulationUnavailable     = errors.New("simulation contract bytecode not configured")
)

// EstimationError is a classified failure of one estimation source. Cause is
// a machine readable reason and Data the raw revert data when there is one.
type EstimationError struct {
	Kind  ErrorKind     `json:"kind"`
	Cause string        `json:"cause,omitempty"`
	Data  hexutil.Bytes `json:"data,omitempty"`
	Err   error         `json:"-"`
}

func NewEstimationError(kind ErrorKind, cause string, err error) *EstimationError {
	return &EstimationError{Kind: kind, Cause: cause, Err: err}
}

func (e *EstimationError) Error() string {
	switch {
	case e.Cause != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Cause, e.Err)
	case e.Cause != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *EstimationError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first EstimationError in the chain
func KindOf(err error) (ErrorKind, bool) {
	var estErr *EstimationError
	if errors.As(err, &estErr) {
		return estErr.Kind, true
	}
	return "", false
}

// BundlerError tags a failure with the bundler that produced it.
type BundlerError struct {
	Bundler BundlerID
	Err     error
}

func (e *BundlerError) Error() string {
	return fmt.Sprintf("bundler %s: %v", e.Bundler, e.Err)
}

func (e *BundlerError) Unwrap() error {
	return e.Err
}

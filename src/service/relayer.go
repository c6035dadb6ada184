package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
)

// RelayerSigner signs user operations for the hosted paymaster
type RelayerSigner interface {
	SignPaymaster(ctx context.Context, chainID uint64, op *erc4337.UserOperation, paymaster common.Address) (*erc4337.PaymasterData, error)
}

// RelayerError is a failed relayer response
type RelayerError struct {
	StatusCode int
	Message    string
}

func (e *RelayerError) Error() string {
	return fmt.Sprintf("relayer returned status %d: %s", e.StatusCode, e.Message)
}

// IsInsufficientFunds reports whether the hosted paymaster ran out of deposit
func (e *RelayerError) IsInsufficientFunds() bool {
	return strings.Contains(strings.ToLower(e.Message), "insufficient funds")
}

type relayerSignRequest struct {
	UserOperation *erc4337.UserOperation `json:"userOperation"`
	Paymaster     common.Address         `json:"paymaster"`
}

type relayerSignResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		PaymasterData hexutil.Bytes `json:"paymasterData"`
	} `json:"data"`
}

// AmbireRelayer talks to the relayer that co-signs hosted paymaster operations.
type AmbireRelayer struct {
	httpClient *resty.Client
}

func NewAmbireRelayer(baseURL string) *AmbireRelayer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second)
	client.SetHeaders(map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	})
	return &AmbireRelayer{httpClient: client}
}

func (r *AmbireRelayer) SignPaymaster(ctx context.Context, chainID uint64, op *erc4337.UserOperation, paymaster common.Address) (*erc4337.PaymasterData, error) {
	var result relayerSignResponse
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetBody(relayerSignRequest{UserOperation: op, Paymaster: paymaster}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/v2/paymaster/%d/sign", chainID))
	if err != nil {
		return nil, fmt.Errorf("relayer request failed: %w", err)
	}

	if resp.StatusCode() != 200 || !result.Success {
		msg := result.Message
		if msg == "" {
			msg = resp.String()
		}
		return nil, &RelayerError{StatusCode: resp.StatusCode(), Message: msg}
	}

	return &erc4337.PaymasterData{
		Paymaster:     paymaster,
		PaymasterData: result.Data.PaymasterData,
	}, nil
}

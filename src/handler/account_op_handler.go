package handler

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountOpService is the slice of the core the account op endpoints use
type AccountOpService interface {
	Estimate(ctx context.Context, in service.EstimateInput) (*service.EstimateOutput, error)
	Plan(ctx context.Context, in service.PlanInput) (*service.BroadcastPlan, error)
	PrepareUserOperation(ctx context.Context, in service.PrepareInput) (*service.PrepareOutput, error)
	CommitSession(id string) error
}

type AccountOpHandler struct {
	accountOps AccountOpService
}

func NewAccountOpHandler(accountOps AccountOpService) *AccountOpHandler {
	return &AccountOpHandler{
		accountOps: accountOps,
	}
}

func (h *AccountOpHandler) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("handler", "account-op").Logger()
	return &l
}

// FeeOptionView adds human readable amounts to a fee payment option
type FeeOptionView struct {
	domain.FeePaymentOption
	AvailableFormatted string `json:"availableFormatted"`
}

type EstimateResponse struct {
	*service.EstimateOutput
	FeeOptions []FeeOptionView `json:"feeOptions"`
}

// Estimate godoc
// @Summary Estimate an account operation
// @Description Run the simulation, node and bundler estimations and derive the fee payment options
// @Tags account-op
// @Accept json
// @Produce json
// @Param request body service.EstimateInput true "Estimation request"
// @Success 200 {object} StandardResponse
// @Failure 400 {object} StandardResponse
// @Failure 422 {object} StandardResponse
// @Router /account-ops/estimate [post]
func (h *AccountOpHandler) Estimate(c *gin.Context) {
	logger := h.logger(c.Request.Context()).With().Str("func", "Estimate").Logger()

	var req service.EstimateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error().Err(err).Msg("invalid request payload")
		respondWithError(c, domain.NewError(domain.ErrorCodeParameterInvalid, err, domain.WithMsg("Invalid request payload")))
		return
	}
	if len(req.Op.Calls) == 0 {
		respondWithError(c, domain.NewError(domain.ErrorCodeParameterInvalid, errors.New("op has no calls"), domain.WithMsg("op.calls must not be empty")))
		return
	}

	out, err := h.accountOps.Estimate(c.Request.Context(), req)
	if err != nil {
		logger.Error().Err(err).Msg("failed to estimate account op")
		respondWithError(c, err)
		return
	}

	views := make([]FeeOptionView, 0, len(out.Summary.FeePaymentOptions))
	for _, option := range out.Summary.FeePaymentOptions {
		views = append(views, FeeOptionView{
			FeePaymentOption:   option,
			AvailableFormatted: formatAmount(option.AvailableAmount, option.Token.Decimals),
		})
	}

	logger.Info().
		Str("session_id", out.SessionID).
		Uint64("chain_id", req.ChainID).
		Str("strategy", string(out.Strategy)).
		Int("fee_options", len(views)).
		Msg("account op estimated")

	respondWithSuccess(c, EstimateResponse{EstimateOutput: out, FeeOptions: views})
}

// Plan godoc
// @Summary Plan the broadcast of an account operation
// @Description Decide the broadcast mechanism, signatures and calldata for a chosen fee option
// @Tags account-op
// @Accept json
// @Produce json
// @Param request body service.PlanInput true "Plan request"
// @Success 200 {object} StandardResponse
// @Failure 400 {object} StandardResponse
// @Router /account-ops/plan [post]
func (h *AccountOpHandler) Plan(c *gin.Context) {
	logger := h.logger(c.Request.Context()).With().Str("func", "Plan").Logger()

	var req service.PlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error().Err(err).Msg("invalid request payload")
		respondWithError(c, domain.NewError(domain.ErrorCodeParameterInvalid, err, domain.WithMsg("Invalid request payload")))
		return
	}

	plan, err := h.accountOps.Plan(c.Request.Context(), req)
	if err != nil {
		logger.Error().Err(err).Msg("failed to plan broadcast")
		respondWithError(c, err)
		return
	}

	respondWithSuccess(c, plan)
}

// PrepareUserOperation godoc
// @Summary Prepare the user operation to sign
// @Description Build the user operation from the session's bundler estimate and attach paymaster data
// @Tags account-op
// @Accept json
// @Produce json
// @Param request body service.PrepareInput true "Prepare request"
// @Success 200 {object} StandardResponse
// @Failure 400 {object} StandardResponse
// @Failure 502 {object} StandardResponse
// @Router /account-ops/user-operation [post]
func (h *AccountOpHandler) PrepareUserOperation(c *gin.Context) {
	logger := h.logger(c.Request.Context()).With().Str("func", "PrepareUserOperation").Logger()

	var req service.PrepareInput
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error().Err(err).Msg("invalid request payload")
		respondWithError(c, domain.NewError(domain.ErrorCodeParameterInvalid, err, domain.WithMsg("Invalid request payload")))
		return
	}
	if req.SessionID == "" {
		respondWithError(c, domain.NewError(domain.ErrorCodeParameterInvalid, errors.New("missing session id"), domain.WithMsg("sessionId is required")))
		return
	}

	out, err := h.accountOps.PrepareUserOperation(c.Request.Context(), req)
	if err != nil {
		logger.Error().Err(err).Msg("failed to prepare user operation")
		respondWithError(c, err)
		return
	}

	logger.Info().
		Str("session_id", req.SessionID).
		Str("user_op_hash", out.UserOpHash.Hex()).
		Str("paymaster", string(out.Paymaster)).
		Msg("user operation prepared")

	respondWithSuccess(c, out)
}

// CommitSession godoc
// @Summary Commit a signing session
// @Description Mark that signing started so bundlers are no longer switched
// @Tags account-op
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} StandardResponse
// @Failure 404 {object} StandardResponse
// @Router /sessions/{id}/commit [post]
func (h *AccountOpHandler) CommitSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.accountOps.CommitSession(id); err != nil {
		respondWithError(c, err)
		return
	}
	respondWithSuccessAndStatus(c, http.StatusOK, gin.H{"sessionId": id}, "Session committed")
}

// formatAmount renders amount in token units
func formatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

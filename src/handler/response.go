package handler

import (
	"errors"
	"net/http"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StandardResponse represents the standard API response format
type StandardResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

func respondWithSuccess(c *gin.Context, data interface{}) {
	respondWithSuccessAndStatus(c, http.StatusOK, data)
}

// respondWithSuccessAndStatus sends a successful response with custom HTTP status
func respondWithSuccessAndStatus(c *gin.Context, httpStatus int, data interface{}, message ...string) {
	msg := "OK"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}

	response := StandardResponse{
		Code:    0,
		Message: msg,
		Data:    data,
	}

	c.JSON(httpStatus, response)
}

// respondWithError sends an error response with the standard format
func respondWithError(c *gin.Context, err error) {
	domainErr := parseDomainError(err)

	// Use the original error message if the domain error has no client message
	message := domainErr.ClientMsg()
	if message == "" {
		message = err.Error()
	}

	response := StandardResponse{
		Code:    mapDomainErrorToCode(domainErr),
		Message: message,
	}

	// Add error details if available
	if detail := domainErr.Detail(); detail != nil {
		response.Error = detail
	}

	event := zerolog.Ctx(c.Request.Context()).Warn()
	if domainErr.HTTPStatus() >= http.StatusInternalServerError {
		event = zerolog.Ctx(c.Request.Context()).Error()
	}
	event.
		Str("function", "respondWithError").
		Str("error_name", domainErr.Name()).
		Int("error_code", response.Code).
		Err(err).
		Msg(response.Message)

	_ = c.Error(err)
	c.AbortWithStatusJSON(domainErr.HTTPStatus(), response)
}

// parseDomainError returns the domain error in err's chain. Errors from
// outside the domain become INTERNAL_PROCESS.
func parseDomainError(err error) domain.DomainError {
	var domainError domain.DomainError
	if errors.As(err, &domainError) {
		return domainError
	}
	return domain.NewError(domain.ErrorCodeInternalProcess, err)
}

// apiErrorCodes are the response codes clients switch on, keyed by domain error name
var apiErrorCodes = map[string]int{
	domain.ErrorCodeParameterInvalid.Name:     1001,
	domain.ErrorCodeResourceNotFound.Name:     1002,
	domain.ErrorCodeAuthPermissionDenied.Name: 1003,
	domain.ErrorCodeAuthNotAuthenticated.Name: 1004,
	domain.ErrorCodeInternalProcess.Name:      1005,
	domain.ErrorCodeRemoteProcessError.Name:   1006,
	domain.ErrorCodeEstimationFailed.Name:     1007,
}

func mapDomainErrorToCode(domainErr domain.DomainError) int {
	if code, ok := apiErrorCodes[domainErr.Name()]; ok {
		return code
	}
	return 1000
}

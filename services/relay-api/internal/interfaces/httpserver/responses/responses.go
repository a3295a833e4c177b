package responses

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code              string `json:"code"` // UUID from PlatformError
	Error             string `json:"error"`
	Message           string `json:"message,omitempty"`
	Reason            string `json:"reason,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	ErrorInstance     error  `json:"-"`
	RequestID         string `json:"request_id,omitempty"`
}

// HandleError handles domain errors and returns appropriate HTTP responses.
// The platform error's own message is preferred over the fallback message.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType())
		if domainErr.Message != "" {
			message = domainErr.Message
		}

		errResp := ErrorResponse{
			Code:          domainErr.GetUUID(),
			Error:         message,
			Message:       message,
			Reason:        domainErr.GetReason(),
			ErrorInstance: domainErr,
			RequestID:     domainErr.GetRequestID(),
		}
		if domainErr.RetryAfter > 0 {
			secs := int(math.Ceil(domainErr.RetryAfter.Seconds()))
			errResp.RetryAfterSeconds = secs
			reqCtx.Header("Retry-After", strconv.Itoa(secs))
		}
		if errResp.RequestID == "" {
			errResp.RequestID = platformerrors.RequestIDFromContext(reqCtx.Request.Context())
		}

		_ = reqCtx.Error(domainErr)
		reqCtx.AbortWithStatusJSON(statusCode, errResp)
		return
	}
	// Non-platform errors
	errResp := ErrorResponse{
		Error:         message,
		Message:       message,
		Reason:        platformerrors.ReasonInternal,
		ErrorInstance: err,
		RequestID:     platformerrors.RequestIDFromContext(reqCtx.Request.Context()),
	}
	_ = reqCtx.Error(err)
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	ctx := reqCtx.Request.Context()
	HandleError(reqCtx, platformerrors.NewError(ctx, platformerrors.LayerRoute, errorType, message, nil, uuid), message)
}

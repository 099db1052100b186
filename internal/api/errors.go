package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jcastroba/red-simpatizantes/internal/logging"
	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/jcastroba/red-simpatizantes/internal/services"
	"github.com/jcastroba/red-simpatizantes/internal/tree"
	"go.uber.org/zap"
)

// Error codes returned in models.ErrorResponse.Code
const (
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeVerification      = "VERIFICATION_FAILED"
	CodeSizeLimitExceeded = "SIZE_LIMIT_EXCEEDED"
	CodeCodeExhausted     = "REFERRAL_CODE_EXHAUSTED"
	CodeTimeout           = "TIMEOUT"
	CodeInternal          = "INTERNAL_ERROR"
)

type errorMapping struct {
	target error
	status int
	code   string
	title  string
}

var errorMappings = []errorMapping{
	{services.ErrNotFound, http.StatusNotFound, CodeNotFound, "Not found"},
	{services.ErrForbidden, http.StatusForbidden, CodeForbidden, "Forbidden"},
	{services.ErrConflict, http.StatusConflict, CodeConflict, "Already exists"},
	{services.ErrInvalid, http.StatusBadRequest, CodeInvalidInput, "Invalid request data"},
	{services.ErrVerificationFailed, http.StatusBadRequest, CodeVerification, "Verification failed"},
	{tree.ErrSizeLimitExceeded, http.StatusUnprocessableEntity, CodeSizeLimitExceeded, "Network too large"},
	{services.ErrGenerationExhausted, http.StatusInternalServerError, CodeCodeExhausted, "Could not generate referral code"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout, "Request timed out"},
}

// respondError maps a service error onto a status code and error body
func (h *Handler) respondError(c *gin.Context, err error) {
	log := logging.FromContext(c, h.logger)
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				log.Error("request failed", zap.String("code", m.code), zap.Error(err))
			} else {
				log.Debug("request rejected", zap.String("code", m.code), zap.Error(err))
			}
			c.JSON(m.status, models.ErrorResponse{Error: m.title, Message: err.Error(), Code: m.code})
			return
		}
	}
	log.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "Internal server error",
		Message: "An unexpected error occurred",
		Code:    CodeInternal,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "Invalid request data",
		Message: err.Error(),
		Code:    CodeInvalidInput,
	})
}

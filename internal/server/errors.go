package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	postingdomain "github.com/ledgerloop/revrec/internal/posting/domain"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	reconciliationdomain "github.com/ledgerloop/revrec/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isUnprocessableError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, contractdomain.ErrInvalidOrganization),
		errors.Is(err, contractdomain.ErrInvalidContractRef),
		errors.Is(err, contractdomain.ErrInvalidAmount),
		errors.Is(err, contractdomain.ErrInvalidStartDate),
		errors.Is(err, contractdomain.ErrInvalidTermMonths),
		errors.Is(err, contractdomain.ErrInvalidStatus),
		errors.Is(err, contractdomain.ErrInvalidID),
		errors.Is(err, contractdomain.ErrStatusTransition),
		errors.Is(err, recognitiondomain.ErrInvalidOrganization),
		errors.Is(err, recognitiondomain.ErrInvalidID),
		errors.Is(err, recognitiondomain.ErrInvalidStrategy),
		errors.Is(err, recognitiondomain.ErrInvalidTerm),
		errors.Is(err, recognitiondomain.ErrInvalidAmount),
		errors.Is(err, reconciliationdomain.ErrInvalidOrganization),
		errors.Is(err, reconciliationdomain.ErrInvalidScope),
		errors.Is(err, reconciliationdomain.ErrInvalidAsOf),
		errors.Is(err, reconciliationdomain.ErrInvalidPageToken),
		errors.Is(err, postingdomain.ErrInvalidOrganization):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, contractdomain.ErrNotFound),
		errors.Is(err, recognitiondomain.ErrContractNotFound),
		errors.Is(err, recognitiondomain.ErrEntryNotFound),
		errors.Is(err, postingdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, contractdomain.ErrContractRefTaken),
		errors.Is(err, recognitiondomain.ErrScheduleExists),
		errors.Is(err, recognitiondomain.ErrContractLocked),
		errors.Is(err, recognitiondomain.ErrPostedScheduleExists):
		return true
	default:
		return false
	}
}

// Unprocessable: the request is well-formed, the schedule's current
// posted/unposted partition just does not admit the asked-for action.
func isUnprocessableError(err error) bool {
	switch {
	case errors.Is(err, recognitiondomain.ErrNoUnpostedMonths),
		errors.Is(err, recognitiondomain.ErrMissingCatchUpMonth),
		errors.Is(err, recognitiondomain.ErrCatchUpMonthNotUnposted),
		errors.Is(err, recognitiondomain.ErrContractNotEditable),
		errors.Is(err, postingdomain.ErrEntryNotPosted),
		errors.Is(err, postingdomain.ErrInvalidConfig),
		errors.Is(err, postingdomain.ErrPostRejected):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == "invalid_request" {
		return "request"
	}
	return ""
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", payload.Type
	case status == http.StatusNotFound:
		return "not_found", payload.Type
	case status == http.StatusConflict:
		return "conflict", payload.Type
	default:
		return "client", payload.Type
	}
}

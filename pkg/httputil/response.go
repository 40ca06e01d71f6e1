package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/odontogram-api/pkg/errors"
	"github.com/jwalitptl/odontogram-api/pkg/validator"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int                    `json:"code"`
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Fields  []validator.FieldError `json:"fields,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
}

var kinds = map[errors.ErrorCode]string{
	errors.ErrNotFound:           "NOT_FOUND",
	errors.ErrValidation:         "VALIDATION",
	errors.ErrUnauthorized:       "UNAUTHORIZED",
	errors.ErrInvalidToothNumber: "INVALID_TOOTH_NUMBER",
	errors.ErrConflict:           "CONFLICT",
	errors.ErrRemote:             "REMOTE",
	errors.ErrInternal:           "INTERNAL",
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondCreated sends a 201 success response
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// NewError builds the error body for err. Internal details never leak.
func NewError(err error, traceID string) (int, *Error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.NewInternal(err)
	}

	status := appErr.StatusCode()
	message := appErr.Message
	if status == http.StatusBadGateway {
		message = "El servicio clínico no está disponible. Intente nuevamente."
	}
	return status, &Error{
		Code:    status,
		Kind:    kinds[appErr.Code],
		Message: message,
		Fields:  validator.Fields(err),
		TraceID: traceID,
	}
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	status, body := NewError(err, c.GetString("request_id"))
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   body,
	})
}

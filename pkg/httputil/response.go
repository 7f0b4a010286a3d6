package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consultorio/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Meta    map[string]any    `json:"meta,omitempty"`
}

const genericMessage = "Ocurrió un error inesperado. Intentá de nuevo."

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response. The wrapped cause is never serialized.
func RespondWithError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	body := &Error{Code: statusCode, Message: genericMessage}

	if appErr, ok := errors.As(err); ok {
		statusCode = appErr.StatusCode()
		body = &Error{
			Code:    statusCode,
			Message: appErr.Message,
			Fields:  appErr.Fields,
			Meta:    appErr.Meta,
		}
	}

	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Error:   body,
	})
}

// SeeOther redirects after a successful form action.
func SeeOther(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/firdspulse/internal/domain/dto"
)

// ErrorHandler converts errors attached with c.Error into a JSON ErrorResponse
// when the handler did not write a response itself.
//
// Status is kept when the handler already set one (>= 400), otherwise 500.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	status := c.Writer.Status()
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	last := c.Errors.Last()
	c.JSON(status, dto.NewErrorResponse(http.StatusText(status), last.Err))
}

// AbortWithError stops the chain and writes an ErrorResponse with the given status.
// err is also attached to the context so RequestLogger reports it.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err))
}

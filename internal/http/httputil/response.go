package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zcurve-labs/quote-engine/internal/common"
)

// Response is the envelope every endpoint answers with. Code is a
// machine-readable error tag, set only on failures.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func HandleSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// HandleHttpError renders a mapped error with its status and code.
func HandleHttpError(c *gin.Context, err *common.HttpError) {
	c.JSON(err.StatusCode, Response{
		Success: false,
		Code:    err.Code,
		Error:   err.Message,
	})
}

func HandleBadRequest(c *gin.Context, msg string) {
	HandleHttpError(c, common.HTTPErrorBadRequest(msg))
}

func HandleNotFound(c *gin.Context, msg string) {
	HandleHttpError(c, common.HTTPErrorNotFound(msg))
}

func HandleInternalError(c *gin.Context, msg string) {
	HandleHttpError(c, common.HTTPErrorInternalError(msg))
}

func HandleUnauthorized(c *gin.Context, msg string) {
	HandleHttpError(c, common.HTTPErrorUnauthorized(msg))
}

package utils

import "github.com/gin-gonic/gin"

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// ErrorResponse is the body of every failed API call. Message carries the
// underlying error detail and is only filled in development.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// JSON writes data as the response body. Successful API responses are the
// resource itself, without an envelope.
func JSON(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, data)
}

// Success writes data with 200.
func Success(ctx *gin.Context, data interface{}) {
	JSON(ctx, 200, data)
}

// Error writes an error response. detail may be empty.
func Error(ctx *gin.Context, status int, code int, message string, detail string) {
	ctx.JSON(status, ErrorResponse{
		Code:    code,
		Error:   message,
		Message: detail,
	})
}

// Abort writes an error response and stops the handler chain.
func Abort(ctx *gin.Context, status int, code int, message string) {
	Error(ctx, status, code, message, "")
	ctx.Abort()
}

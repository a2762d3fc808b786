// Package httputils provides the shared HTTP response envelope.
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kenneth-kang/elementary-chatbot/pkg/errors"
)

// Response is the uniform success envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the uniform error envelope. MessageKO carries the
// user-facing Korean message, Details optional structured context.
type ErrorResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	MessageKO string      `json:"message_ko,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// WriteSuccess writes data wrapped in the success envelope.
func WriteSuccess(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// WriteError maps err to its errno and writes the error envelope.
func WriteError(c *gin.Context, err error) {
	WriteErrorDetails(c, err, nil)
}

// WriteErrorDetails writes the error envelope with extra context, such
// as the ids committed before a partial ingestion failure.
func WriteErrorDetails(c *gin.Context, err error, details interface{}) {
	errno := errors.FromError(err)
	c.JSON(errno.HTTPStatus(), ErrorResponse{
		Code:      errno.Code,
		Message:   errno.MessageEN,
		MessageKO: errno.MessageKO,
		Details:   details,
	})
}

package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUsernameExists     = 40001
	CodeEmailExists        = 40002
	CodeEmptyDocument      = 40003
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeForbidden          = 40300
	CodeModelNotAuthorized = 40301
	CodeNotFound           = 40400
	CodeDocumentNotFound   = 40401
	CodeUserNotFound       = 40402
	CodeModelNotFound      = 40403
	CodeDocumentBusy       = 40900
	CodePayloadTooLarge    = 41300
	CodeUnsupportedFile    = 41500
	CodeInternalServer     = 50000
	CodeUpstreamFailure    = 50200
	CodeUnavailable        = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithKind adds the error taxonomy kind and optional detail data.
func ErrorWithKind(c *gin.Context, httpStatus, code int, message, kind string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Kind:    kind,
		Data:    data,
	})
}

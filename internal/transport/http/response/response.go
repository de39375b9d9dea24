package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// OK renders data as indented JSON.
func OK(c *gin.Context, data any) {
	c.IndentedJSON(http.StatusOK, data)
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.IndentedJSON(httpStatus, ErrorBody{Error: message})
}

func ValidationError(c *gin.Context, message string, fields map[string]string) {
	c.IndentedJSON(http.StatusBadRequest, ErrorBody{Error: message, Fields: fields})
}

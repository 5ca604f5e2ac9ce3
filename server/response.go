package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/rembg/rembg"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// statusOf 把流水线错误映射成 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, rembg.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, rembg.ErrInference):
		return http.StatusBadGateway
	case errors.Is(err, rembg.ErrShape):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rembg.ErrInvalidInput),
		errors.Is(err, rembg.ErrUnsupportedFormat),
		errors.Is(err, rembg.ErrPreprocessing):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(statusOf(err), resp)
}

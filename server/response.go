package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/genui/engine"
)

// Shared response helpers.

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func failure(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"success": false, "error": gin.H{"code": code, "message": message}})
}

func badRequest(c *gin.Context, message string) {
	failure(c, http.StatusBadRequest, "bad_request", message)
}

func notFound(c *gin.Context, message string) {
	failure(c, http.StatusNotFound, "not_found", message)
}

// invokeError maps engine admission errors to HTTP responses.
func invokeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrTooManyInvocations):
		failure(c, http.StatusTooManyRequests, "too_many_invocations", err.Error())
	case errors.Is(err, engine.ErrEmptyInput):
		badRequest(c, err.Error())
	default:
		failure(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

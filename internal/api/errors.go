package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stock-portfolio-ledger/internal/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusFor maps a ledger error onto an HTTP status code.
func StatusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrOwnership:
		return http.StatusForbidden
	case apperr.ErrInsufficientFunds, apperr.ErrInsufficientHoldings:
		return http.StatusUnprocessableEntity
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrConcurrencyConflict, apperr.ErrDuplicate, apperr.ErrImmutable:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Internal errors are not echoed to the caller.
func fail(c *gin.Context, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	if kind := apperr.Kind(err); kind != nil {
		resp.Kind = kind.Error()
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		resp.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, resp)
}

// badRequest reports a body or parameter that could not be decoded.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: apperr.ErrValidation.Error()})
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, errors.New("invalid "+name+" parameter"))
		return 0, false
	}
	return uint(id), true
}

// idQuery parses an optional numeric query parameter; absent means 0.
func idQuery(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, errors.New("invalid "+name+" query parameter"))
		return 0, false
	}
	return uint(id), true
}

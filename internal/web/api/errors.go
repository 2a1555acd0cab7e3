package api

import (
	"errors"
	"net/http"
	"strconv"

	"homelink/internal/logging"
	"homelink/internal/models"
	webModels "homelink/internal/web/models"

	"github.com/gin-gonic/gin"
)

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrValidation, http.StatusBadRequest, "validation"},
	{models.ErrConflict, http.StatusConflict, "conflict"},
	{models.ErrUpstreamGeneration, http.StatusBadGateway, "upstream_generation"},
	{models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
}

// respondError maps domain errors to a status and a JSON body
func respondError(c *gin.Context, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			c.JSON(e.status, webModels.ErrorResponse{Error: e.code, Message: err.Error()})
			return
		}
	}
	_ = c.Error(err)
	log := logging.Component("api")
	log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, webModels.ErrorResponse{Error: "internal", Message: "internal server error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, webModels.ErrorResponse{Error: "validation", Message: msg})
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// flag reports whether a query parameter is set to a truthy value
func flag(c *gin.Context, name string) bool {
	v, ok := c.GetQuery(name)
	if !ok {
		return false
	}
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

package http

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/marketfit"
	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
)

const (
	MsgInvalidPayload  = "Invalid JSON payload"
	MsgEmptySubreddits = "Subreddits list cannot be empty for Reddit source"
	MsgEmptyAppName    = "App Name cannot be empty for Reviews source"
	MsgInvalidSource   = "Invalid source. Use one of: all, hn, reddit, reviews"
	MsgNotFound        = "Resource Not Found"
	MsgInternal        = "Something went wrong on the server. Please try again later."
)

//go:embed web/index.html
var indexPage []byte

func IndexHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
}

func HealthHandler(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"name":    conf.G().Name,
			"version": version,
		})
	}
}

func GenerateIdeasHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := decodeGenerateRequest(c)
		if err != nil {
			failure(c, http.StatusBadRequest, err, MsgInvalidPayload)
			return
		}

		resp, err := endpoint(c, req)
		if err != nil {
			errorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

// decodeGenerateRequest rejects empty bodies, null and {} the same way as malformed JSON.
func decodeGenerateRequest(c *gin.Context) (marketfit.GenerateRequest, error) {
	var req marketfit.GenerateRequest

	data, err := c.GetRawData()
	if err != nil {
		return req, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return req, err
	}

	if len(fields) == 0 {
		return req, errors.New("empty payload")
	}

	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}

	return req, nil
}

func ReportHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := opportunity.ParseID(c.Param("id"))
		if err != nil {
			failure(c, http.StatusNotFound, err, MsgNotFound)
			return
		}

		resp, err := endpoint(c, id)
		if err != nil {
			errorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ReportsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				err := errors.New("limit must be a positive integer")
				failure(c, http.StatusBadRequest, err, err.Error())
				return
			}

			limit = n
		}

		resp, err := endpoint(c, marketfit.ReportsRequest{Limit: limit})
		if err != nil {
			errorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"reports": resp})
	}
}

func DeleteReportHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := opportunity.ParseID(c.Param("id"))
		if err != nil {
			failure(c, http.StatusNotFound, err, MsgNotFound)
			return
		}

		if _, err := endpoint(c, id); err != nil {
			errorResponse(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func NotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": MsgNotFound})
}

// RecoveryHandler is meant for ginzap.CustomRecoveryWithZap, which has already logged the panic.
func RecoveryHandler(c *gin.Context, recovered any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": MsgInternal})
}

func errorResponse(c *gin.Context, err error) {
	var notFound *marketfit.AppNotFoundError
	switch {
	case errors.As(err, &notFound):
		msg := "App '" + notFound.AppName + "' not found in " + string(notFound.Platform) + " store(s)."
		failure(c, http.StatusNotFound, err, msg)

	case errors.Is(err, opportunity.ErrEmptySubreddits):
		failure(c, http.StatusBadRequest, err, MsgEmptySubreddits)

	case errors.Is(err, opportunity.ErrEmptyAppName):
		failure(c, http.StatusBadRequest, err, MsgEmptyAppName)

	case errors.Is(err, opportunity.ErrInvalidSource):
		failure(c, http.StatusBadRequest, err, MsgInvalidSource)

	case errors.Is(err, opportunity.ErrReportNotFound):
		failure(c, http.StatusNotFound, err, MsgNotFound)

	default:
		failure(c, http.StatusInternalServerError, err, MsgInternal)
	}
}

func failure(c *gin.Context, code int, err error, msg string) {
	c.Abort()
	c.Error(err)
	c.JSON(code, gin.H{"error": msg})
}

package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/renova-api/pkg/errors"
)

// DateLayout is the format of date query parameters
const DateLayout = "2006-01-02"

// ParamID parses a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest(fmt.Sprintf("invalid %s", name), err)
	}
	return id, nil
}

// QueryID parses an optional positive integer query parameter.
func QueryID(c *gin.Context, name string) (*int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.BadRequest(fmt.Sprintf("invalid %s", name), err)
	}
	return &id, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter as midnight in loc.
func QueryDate(c *gin.Context, name string, loc *time.Location) (*time.Time, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return nil, errors.BadRequest(fmt.Sprintf("%s must be formatted as %s", name, DateLayout), err)
	}
	return &day, nil
}

// MetricsHandler exposes the metrics gathered by g.
func MetricsHandler(g prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

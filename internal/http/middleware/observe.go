package middleware

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"

	routeUnmatched = "unmatched"
)

// Inbound ids are echoed into headers and logs, so only short opaque tokens
// are accepted.
var inboundID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestContext stamps every request with a request id and a trace id. An
// active span wins over the X-Trace-Id header.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if !inboundID.MatchString(reqID) {
			reqID = uuid.NewString()
		}

		var traceID string
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		} else if h := strings.TrimSpace(c.GetHeader(headerTraceID)); inboundID.MatchString(h) {
			traceID = h
		} else {
			traceID = reqID
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		}))
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}

// Observe logs one line per request and records request metrics. Either
// sink may be nil.
func Observe(log *logger.Logger, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if m != nil {
			m.ApiInflightInc()
			defer m.ApiInflightDec()
		}

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = routeUnmatched
		}
		if m != nil {
			m.ObserveAPI(c.Request.Method, route, strconv.Itoa(status), elapsed)
		}
		if log == nil {
			return
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		}
		fields = append(fields, ctxutil.LogFields(c.Request.Context())...)
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil && rd.CallerID != "" {
			fields = append(fields, "caller_id", rd.CallerID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Debug("request served", fields...)
		}
	}
}

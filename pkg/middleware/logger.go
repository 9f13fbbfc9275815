package middleware

import (
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/kikokaraba/srei-sub004/pkg/appcontext"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

// Logger logs one line per request. Health and metrics probes are skipped so
// the scrape interval does not drown out real traffic.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()

			if req.URL.Path == "/metrics" || strings.Contains(req.URL.Path, "/health") {
				return next(c)
			}

			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			ctx := c.Request().Context()
			fields := map[string]any{
				"request_id":    appcontext.GetRequestID(ctx),
				"method":        req.Method,
				"route":         c.Path(),
				"uri":           req.RequestURI,
				"status":        res.Status,
				"remote_ip":     c.RealIP(),
				"response_time": time.Since(start),
				"response_size": res.Size,
			}
			if traceID := tracing.GetTraceID(ctx); traceID != "" {
				fields["trace_id"] = traceID
			}

			logger.WithContext(ctx).WithFields(fields).Info("Request")
			return nil
		}
	}
}

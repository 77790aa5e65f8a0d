package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"subsettle/internal/caching"
	"subsettle/internal/common"

	"github.com/labstack/echo/v4"
)

// RateLimit caps how often one caller may hit a route group. Keys on the
// authenticated settlement address, so it must run after BindClaims. A cache
// outage fails open: payments keep working without the limiter.
func RateLimit(cacheSvc caching.CacheService, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			address, ok := common.GetCallerAddressFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Caller not authenticated")
			}

			limited, err := cacheSvc.IsRateLimited(ctx, fmt.Sprintf("pay:%s", address), limit, window)
			if err != nil {
				log.Printf("WARN: rate limit check failed for %s: %v", address, err)
				return next(c)
			}
			if limited {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many payment attempts, try again later")
			}
			return next(c)
		}
	}
}

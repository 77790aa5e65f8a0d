package middleware

import (
	"context"
	"net/http"

	"subsettle/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTCustomClaims carries the caller's settlement address and operator flag.
type JWTCustomClaims struct {
	Address  string `json:"address"`
	Operator bool   `json:"operator"`
	jwt.RegisteredClaims
}

// BindClaims validates the address claim of the already-verified token that
// echo-jwt stashed on the echo context, and moves the caller identity into
// the request context. Runs directly after echo-jwt on protected routes.
func BindClaims() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}
			claims, ok := token.Claims.(*JWTCustomClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}

			address, err := common.ValidateAddress(claims.Address, "address claim")
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing or invalid address in token")
			}

			ctx := context.WithValue(c.Request().Context(), common.CallerAddressKey, address)
			ctx = context.WithValue(ctx, common.OperatorKey, claims.Operator)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireOperator gates the price-schedule mutation surface. Only callers
// whose token carries the operator claim may pass.
func RequireOperator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetCallerAddressFromContext(ctx); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}
			if !common.IsOperatorFromContext(ctx) {
				return echo.NewHTTPError(http.StatusForbidden, "Operator access required")
			}
			return next(c)
		}
	}
}

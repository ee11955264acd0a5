package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Authenticate rejects requests without a resolvable identity.  The
// response is the same whether the token was missing, invalid or belonged to
// a user that no longer exists.
func Authenticate(r *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			user, ok := r.Resolve(req.Context(), ExtractToken(req.Cookies(), req.Header))
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			setCurrentUser(c, user)
			return next(c)
		}
	}
}

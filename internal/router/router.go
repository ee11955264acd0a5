package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/handler"
)

// importBodyLimit caps the size of an uploaded CSV export.
const importBodyLimit = "10M"

// Guards are the middlewares applied to route groups.  A nil guard is
// skipped, so tests can register routes without Redis.
type Guards struct {
	Auth       echo.MiddlewareFunc // resolves the caller, 401 otherwise
	Write      echo.MiddlewareFunc // requires a write role, 403 otherwise
	Cache      echo.MiddlewareFunc // caches GET responses
	Invalidate echo.MiddlewareFunc // drops cached responses after a write
	RateLimit  echo.MiddlewareFunc // throttles credential endpoints
}

func chain(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (g Guards) writes() []echo.MiddlewareFunc { return chain(g.Auth, g.Write, g.Invalidate) }

// New returns an Echo instance with panic recovery and zap request logging.
func New(log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	return e
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the account endpoints.  Register and login are
// rate limited; /auth/me needs a resolved user.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	auth := e.Group("/auth")
	auth.POST("/register", a.Register, chain(g.RateLimit)...)
	auth.POST("/login", a.Login, chain(g.RateLimit)...)
	auth.POST("/logout", a.Logout)
	auth.GET("/me", a.Me, chain(g.Auth)...)
}

// RegisterProducts registers the /cereals, /products and /ops groups.
// Reads are public; every mutation requires a write role.
func RegisterProducts(e *echo.Echo, p *handler.ProductHandler, g Guards) {
	cereals := e.Group("/cereals")
	cereals.GET("", p.ListCereals, chain(g.Cache)...)
	cereals.GET("/top/:take", p.TopCereals, chain(g.Cache)...)
	cereals.POST("", p.CreateCereal, g.writes()...)
	cereals.PUT("/:name/:mfr/:type", p.UpdateCereal, g.writes()...)
	cereals.DELETE("/:name/:mfr/:type", p.DeleteCereal, g.writes()...)

	products := e.Group("/products")
	products.GET("", p.ListProducts, chain(g.Cache)...)
	products.GET("/liste", p.SearchProducts, chain(g.Cache)...)
	products.GET("/:id", p.GetProduct, chain(g.Cache)...)
	products.POST("", p.SaveProduct, g.writes()...)
	products.DELETE("/:id", p.DeleteProduct, g.writes()...)

	ops := e.Group("/ops")
	ops.POST("/import-csv", p.ImportCSV, append([]echo.MiddlewareFunc{echomw.BodyLimit(importBodyLimit)}, g.writes()...)...)
}

package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/middleware"
	"github.com/iliyamo/cereal-api/internal/queue"
)

// storeTimeout bounds every store call made while serving a request.
const storeTimeout = 5 * time.Second

// EventSink receives product change notifications.  service.Publisher
// forwards them to RabbitMQ; service.Discard drops them.
type EventSink interface {
	ProductChanged(ev queue.ProductChangedEvent)
}

func storeCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), storeTimeout)
}

// serverError logs err and answers with a generic 500.
func serverError(c echo.Context, log *zap.Logger, msg string, err error) error {
	log.Error(msg, zap.Error(err), zap.String("method", c.Request().Method), zap.String("path", c.Path()))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// actor names the caller for audit events.
func actor(c echo.Context) string {
	if u, ok := middleware.CurrentUserFrom(c); ok {
		return u.Username
	}
	return "anonymous"
}

func nowStamp() string { return time.Now().UTC().Format(time.RFC3339) }

// pathParam returns a path parameter with percent-escapes removed.  Values
// that are not valid escapes (e.g. "100% Bran" already decoded by the
// router) are returned as they are.
func pathParam(c echo.Context, name string) string {
	v := c.Param(name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func idParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

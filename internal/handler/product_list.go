package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/query"
)

// SearchProducts handles GET /products/liste.  Filters come from both the
// raw "calories>=100" syntax and the calories_gte=100 aliases; sort takes a
// comma separated list such as sort=sugars_desc,name.
func (h *ProductHandler) SearchProducts(c echo.Context) error {
	req := c.Request()
	b := query.CompileFilter(req.URL.RawQuery, c.QueryParams())
	order := query.CompileSort(c.QueryParam("sort"))

	ctx, cancel := storeCtx(c)
	defer cancel()

	items, err := h.Products.Search(ctx, b, order)
	if err != nil {
		return serverError(c, h.Log, "query failed", err)
	}
	h.Log.Debug("product search",
		zap.Int("predicates", len(b.Predicates())),
		zap.String("order", order.SQL()),
		zap.Int("rows", len(items)))
	return c.JSON(http.StatusOK, items)
}

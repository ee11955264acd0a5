package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/importer"
	"github.com/iliyamo/cereal-api/internal/queue"
	"github.com/iliyamo/cereal-api/internal/repository"
)

// ImportCSV handles POST /ops/import-csv.  The multipart field "file"
// carries a semicolon separated export; every row is stored or none is.
func (h *ProductHandler) ImportCSV(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field 'file' is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "cannot read upload")
	}
	defer f.Close()

	products, err := importer.ParseProducts(f)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if len(products) == 0 {
		return badRequest(c, "no rows to import")
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	n, err := h.Products.BulkInsert(ctx, products)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "import contains a product that already exists"})
		}
		return serverError(c, h.Log, "import failed", err)
	}

	h.Log.Info("csv import", zap.String("file", fh.Filename), zap.Int("inserted", n), zap.String("actor", actor(c)))
	h.Events.ProductChanged(queue.ProductChangedEvent{
		Action:     queue.ActionImported,
		Count:      n,
		Actor:      actor(c),
		OccurredAt: nowStamp(),
	})
	return c.JSON(http.StatusOK, echo.Map{"inserted": n})
}

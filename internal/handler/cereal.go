package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/model"
	"github.com/iliyamo/cereal-api/internal/queue"
	"github.com/iliyamo/cereal-api/internal/repository"
)

// ProductHandler serves the /cereals, /products and /ops groups.  All of
// them operate on the same products table.
type ProductHandler struct {
	Products *repository.ProductRepo
	Events   EventSink
	Log      *zap.Logger
}

func NewProductHandler(products *repository.ProductRepo, events EventSink, log *zap.Logger) *ProductHandler {
	return &ProductHandler{Products: products, Events: events, Log: log}
}

func (h *ProductHandler) emit(c echo.Context, action string, id int64, key model.ProductKey) {
	h.Events.ProductChanged(queue.ProductChangedEvent{
		Action:     action,
		ProductID:  id,
		Name:       key.Name,
		Mfr:        key.Mfr,
		Type:       key.Type,
		Actor:      actor(c),
		OccurredAt: nowStamp(),
	})
}

// ListCereals handles GET /cereals.
func (h *ProductHandler) ListCereals(c echo.Context) error {
	ctx, cancel := storeCtx(c)
	defer cancel()

	items, err := h.Products.List(ctx)
	if err != nil {
		return serverError(c, h.Log, "query failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

// TopCereals handles GET /cereals/top/:take.
func (h *ProductHandler) TopCereals(c echo.Context) error {
	take, err := strconv.Atoi(strings.TrimSpace(c.Param("take")))
	if err != nil {
		return badRequest(c, "take must be an integer")
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	items, err := h.Products.Top(ctx, take)
	if err != nil {
		return serverError(c, h.Log, "query failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

// CreateCereal handles POST /cereals.
func (h *ProductHandler) CreateCereal(c echo.Context) error {
	var p model.Product
	if err := c.Bind(&p); err != nil {
		return badRequest(c, "invalid body")
	}
	if !validKey(&p) {
		return badRequest(c, "name, mfr and type are required")
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	id, err := h.Products.Create(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "product already exists"})
		}
		return serverError(c, h.Log, "insert failed", err)
	}
	h.emit(c, queue.ActionCreated, id, p.Key())
	return c.JSON(http.StatusCreated, echo.Map{"inserted": 1, "id": id})
}

// UpdateCereal handles PUT /cereals/:name/:mfr/:type.  Only nutrition
// columns change; the body's own name/mfr/type are ignored.
func (h *ProductHandler) UpdateCereal(c echo.Context) error {
	key := keyParams(c)
	var n model.Nutrition
	if err := c.Bind(&n); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	if err := h.Products.UpdateByKey(ctx, key, n); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return serverError(c, h.Log, "update failed", err)
	}
	h.emit(c, queue.ActionUpdated, 0, key)
	return c.JSON(http.StatusOK, echo.Map{"updated": 1})
}

// DeleteCereal handles DELETE /cereals/:name/:mfr/:type.
func (h *ProductHandler) DeleteCereal(c echo.Context) error {
	key := keyParams(c)

	ctx, cancel := storeCtx(c)
	defer cancel()

	if err := h.Products.DeleteByKey(ctx, key); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return serverError(c, h.Log, "delete failed", err)
	}
	h.emit(c, queue.ActionDeleted, 0, key)
	return c.JSON(http.StatusOK, echo.Map{"deleted": 1})
}

func keyParams(c echo.Context) model.ProductKey {
	return model.ProductKey{
		Name: pathParam(c, "name"),
		Mfr:  pathParam(c, "mfr"),
		Type: pathParam(c, "type"),
	}
}

// validKey trims the natural key in place and reports whether all three
// parts are present.
func validKey(p *model.Product) bool {
	p.Name = strings.TrimSpace(p.Name)
	p.Mfr = strings.TrimSpace(p.Mfr)
	p.Type = strings.TrimSpace(p.Type)
	return p.Name != "" && p.Mfr != "" && p.Type != ""
}

package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cereal-api/internal/model"
	"github.com/iliyamo/cereal-api/internal/query"
	"github.com/iliyamo/cereal-api/internal/queue"
	"github.com/iliyamo/cereal-api/internal/repository"
)

// manufacturerCodes maps full manufacturer names to the one-letter codes
// stored in the mfr column.
var manufacturerCodes = map[string]string{
	"KELLOGGS":      "K",
	"KELLOGG'S":     "K",
	"KELLOGG":       "K",
	"GENERAL MILLS": "G",
	"POST":          "P",
	"NABISCO":       "N",
	"QUAKER":        "Q",
	"RALSTON":       "R",
	"ALBERS":        "A",
}

var (
	intFilters   = []string{"calories", "protein", "fat", "sodium", "sugars", "potass", "vitamins", "shelf"}
	floatFilters = []string{"fiber", "carbo", "weight", "cups"}
)

// NormalizeManufacturer turns a manufacturer name into its mfr code.  Codes
// and unknown names are returned upper-cased.
func NormalizeManufacturer(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	if len(s) <= 1 {
		return s
	}
	if code, ok := manufacturerCodes[s]; ok {
		return code
	}
	return s
}

// exactFilter builds the exact-match predicates of GET /products.  The
// returned field name is non-empty when a numeric value does not parse.
func exactFilter(q url.Values) (*query.Builder, string) {
	b := query.NewBuilder()
	get := func(k string) string { return strings.TrimSpace(q.Get(k)) }

	if v := get("id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, "id"
		}
		b.Add("id", query.OpEq, id)
	}
	if v := get("name"); v != "" {
		b.EqualFold("name", v)
	}
	if v := get("nameLike"); v != "" {
		b.Contains("name", v)
	}
	mfr := get("mfr")
	if mfr == "" && get("manufacturer") != "" {
		mfr = NormalizeManufacturer(get("manufacturer"))
	}
	if mfr != "" {
		b.EqualFold("mfr", mfr)
	}
	if v := get("type"); v != "" {
		b.EqualFold("type", v)
	}
	// rating is free text and compared as stored.
	if v := get("rating"); v != "" {
		b.Add("rating", query.OpEq, v)
	}
	for _, f := range intFilters {
		if v := get(f); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, f
			}
			b.Add(f, query.OpEq, n)
		}
	}
	for _, f := range floatFilters {
		if v := get(f); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, f
			}
			b.Add(f, query.OpEq, n)
		}
	}
	return b, ""
}

// ListProducts handles GET /products.
func (h *ProductHandler) ListProducts(c echo.Context) error {
	b, bad := exactFilter(c.QueryParams())
	if bad != "" {
		return badRequest(c, "invalid value for "+bad)
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	items, err := h.Products.Find(ctx, b)
	if err != nil {
		return serverError(c, h.Log, "query failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

// GetProduct handles GET /products/:id.
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return serverError(c, h.Log, "query failed", err)
	}
	return c.JSON(http.StatusOK, p)
}

// productInput is the body of POST /products.  A nil ID means create.
type productInput struct {
	ID *int64 `json:"id"`
	model.Product
}

// SaveProduct handles POST /products.  Without an id the product is
// created and the store picks the id; with an id that exists every column
// is overwritten; an id that does not exist is rejected because ids are
// never chosen by clients.
func (h *ProductHandler) SaveProduct(c echo.Context) error {
	var in productInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	p := in.Product
	if !validKey(&p) {
		return badRequest(c, "name, mfr and type are required")
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	if in.ID == nil {
		id, err := h.Products.Create(ctx, p)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "a product with the same name, mfr and type already exists"})
			}
			return serverError(c, h.Log, "insert failed", err)
		}
		h.emit(c, queue.ActionCreated, id, p.Key())
		c.Response().Header().Set(echo.HeaderLocation, "/products/"+strconv.FormatInt(id, 10))
		return c.JSON(http.StatusCreated, echo.Map{"id": id})
	}

	exists, err := h.Products.Exists(ctx, *in.ID)
	if err != nil {
		return serverError(c, h.Log, "query failed", err)
	}
	if !exists {
		return badRequest(c, "id does not exist; ids cannot be chosen manually")
	}
	p.ID = *in.ID
	if err := h.Products.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "a product with the same name, mfr and type already exists"})
		case errors.Is(err, repository.ErrProductNotFound):
			// deleted between the existence check and the update
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return serverError(c, h.Log, "update failed", err)
	}
	h.emit(c, queue.ActionUpdated, p.ID, p.Key())
	return c.JSON(http.StatusOK, echo.Map{"updated": 1})
}

// DeleteProduct handles DELETE /products/:id.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	if err := h.Products.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return serverError(c, h.Log, "delete failed", err)
	}
	h.emit(c, queue.ActionDeleted, id, model.ProductKey{})
	return c.JSON(http.StatusOK, echo.Map{"deleted": 1})
}

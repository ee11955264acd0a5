package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cereal-api/internal/model"
	"github.com/iliyamo/cereal-api/internal/queue"
)

func TestCereals_WritesRequireWriteRole(t *testing.T) {
	app := newTestApp(t)
	app.addUser(t, "reader", "pw", "user")
	userTok := app.login(t, "reader", "pw")
	adminTok := app.adminToken(t)
	body := `{"name":"Trix","mfr":"G","type":"C","calories":110}`

	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodPost, "/cereals", body, "").Code)
	assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, "/cereals", body, userTok).Code)
	assert.Equal(t, http.StatusCreated, app.do(http.MethodPost, "/cereals", body, adminTok).Code)

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodDelete, "/cereals/Trix/G/C", "", userTok).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodDelete, "/products/1", "", "").Code)
	assert.Equal(t, http.StatusForbidden, app.upload(t, userTok, "c.csv", "x").Code)
}

func TestCereals_CRUD(t *testing.T) {
	app := newTestApp(t)
	tok := app.adminToken(t)

	rec := app.do(http.MethodPost, "/cereals", `{"name":"Corn Flakes","mfr":"K","type":"C","calories":100,"rating":"45.86"}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, created["inserted"])

	rec = app.do(http.MethodPost, "/cereals", `{"name":"Corn Flakes","mfr":"K","type":"C"}`, tok)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(http.MethodPost, "/cereals", `{"name":"No Maker","type":"C"}`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusCreated,
		app.do(http.MethodPost, "/cereals", `{"name":"Apple Jacks","mfr":"K","type":"C","calories":110}`, tok).Code)

	rec = app.do(http.MethodGet, "/cereals", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]model.Product](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "Apple Jacks", all[0].Name)

	rec = app.do(http.MethodGet, "/cereals/top/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Product](t, rec), 1)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, "/cereals/top/many", "", "").Code)

	rec = app.do(http.MethodPut, "/cereals/Corn%20Flakes/K/C", `{"calories":90,"sugars":2}`, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	rec = app.do(http.MethodGet, "/products?name=corn%20flakes", "", "")
	got := decode[[]model.Product](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, 90, *got[0].Calories)
	assert.Equal(t, 2, *got[0].Sugars)
	assert.Nil(t, got[0].Rating, "a key update replaces every nutrition column")

	rec = app.do(http.MethodPut, "/cereals/Ghost/K/C", `{"calories":1}`, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodDelete, "/cereals/Corn%20Flakes/K/C", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodDelete, "/cereals/Corn%20Flakes/K/C", "", tok).Code)

	assert.Equal(t,
		[]string{queue.ActionCreated, queue.ActionCreated, queue.ActionUpdated, queue.ActionDeleted},
		app.events.actions())
	assert.Equal(t, "root", app.events.events[0].Actor)
}

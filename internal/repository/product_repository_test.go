package repository

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cereal-api/internal/model"
	"github.com/iliyamo/cereal-api/internal/query"
)

func TestProductRepo_CreateAndGet(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	ctx := context.Background()

	p := model.Product{
		Name: "100% Bran", Mfr: "N", Type: "C",
		Calories: intp(70), Fiber: floatp(10), Rating: strp("68.402973"),
	}
	id, err := r.Create(ctx, p)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "100% Bran", got.Name)
	require.NotNil(t, got.Calories)
	assert.Equal(t, 70, *got.Calories)
	assert.Nil(t, got.Protein, "unknown values stay null")
	require.NotNil(t, got.Rating)
	assert.Equal(t, "68.402973", *got.Rating)

	_, err = r.GetByID(ctx, id+100)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductRepo_CreateConflict(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	seed(t, r, cereal("Cheerios", "G", "C", 110))

	_, err := r.Create(context.Background(), cereal("Cheerios", "G", "C", 120))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = r.Create(context.Background(), cereal("Cheerios", "G", "H", 120))
	assert.NoError(t, err, "a different type is a different natural key")
}

func TestProductRepo_ListAndTop(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	seed(t, r,
		cereal("Trix", "G", "C", 110),
		cereal("Apple Jacks", "K", "C", 110),
		cereal("Maypo", "A", "H", 100),
	)
	ctx := context.Background()

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Apple Jacks", "Maypo", "Trix"}, names(all))

	top, err := r.Top(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple Jacks", "Maypo"}, names(top))

	top, err = r.Top(ctx, -5)
	require.NoError(t, err)
	assert.Len(t, top, 1, "take is clamped to at least one row")
}

func TestProductRepo_Search(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	hi := cereal("Cracklin' Oat Bran", "K", "C", 110)
	hi.Protein = intp(3)
	lo := cereal("Corn Flakes", "K", "C", 100)
	lo.Protein = intp(2)
	hot := cereal("Cream of Wheat", "N", "H", 100)
	hot.Protein = intp(3)
	seed(t, r, hi, lo, hot)
	ctx := context.Background()

	raw := "calories>=100&protein<=2"
	values, _ := url.ParseQuery(raw)
	got, err := r.Search(ctx, query.CompileFilter(raw, values), query.CompileSort(""))
	require.NoError(t, err)
	assert.Equal(t, []string{"Corn Flakes"}, names(got))

	b := query.CompileFilter("", url.Values{"calories_gte": {"100"}})
	got, err = r.Search(ctx, b, query.CompileSort("calories_desc,name_asc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Cracklin' Oat Bran", "Corn Flakes", "Cream of Wheat"}, names(got))

	b = query.NewBuilder()
	b.Contains("name", "cr")
	got, err = r.Search(ctx, b, query.CompileSort(""))
	require.NoError(t, err)
	assert.Equal(t, []string{"Cracklin' Oat Bran", "Cream of Wheat"}, names(got))

	// A value that looks like SQL is only ever a bound string.
	b = query.NewBuilder()
	b.EqualFold("name", "x' OR '1'='1")
	got, err = r.Search(ctx, b, query.CompileSort(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProductRepo_Find(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	ids := seed(t, r,
		cereal("Wheaties", "G", "C", 100),
		cereal("Bran Chex", "R", "C", 90),
		cereal("Wheaties", "G", "H", 100),
	)
	ctx := context.Background()

	b := query.NewBuilder()
	b.EqualFold("name", "WHEATIES")
	got, err := r.Find(ctx, b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int64{ids[0], ids[2]}, []int64{got[0].ID, got[1].ID}, "same name falls back to id order")

	got, err = r.Find(ctx, query.NewBuilder())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bran Chex", "Wheaties", "Wheaties"}, names(got))
}

func TestProductRepo_Update(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	ids := seed(t, r, cereal("Kix", "G", "C", 110), cereal("Life", "Q", "C", 100))
	ctx := context.Background()

	p, err := r.GetByID(ctx, ids[0])
	require.NoError(t, err)
	p.Calories = nil
	p.Sugars = intp(3)
	require.NoError(t, r.Update(ctx, p))

	got, err := r.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, got.Calories)
	require.NotNil(t, got.Sugars)
	assert.Equal(t, 3, *got.Sugars)

	// Writing identical values still counts as a match.
	require.NoError(t, r.Update(ctx, got))

	got.Name, got.Mfr = "Life", "Q"
	assert.ErrorIs(t, r.Update(ctx, got), ErrConflict)

	assert.ErrorIs(t, r.Update(ctx, model.Product{ID: 999, Name: "x", Mfr: "x", Type: "x"}), ErrProductNotFound)
}

func TestProductRepo_UpdateByKey(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	ids := seed(t, r, cereal("Total Raisin Bran", "G", "C", 140))
	ctx := context.Background()

	key := model.ProductKey{Name: "Total Raisin Bran", Mfr: "G", Type: "C"}
	require.NoError(t, r.UpdateByKey(ctx, key, model.Nutrition{Calories: intp(150), Cups: floatp(1)}))

	got, err := r.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 150, *got.Calories)
	assert.Equal(t, 1.0, *got.Cups)
	assert.Equal(t, "Total Raisin Bran", got.Name)

	key.Type = "H"
	assert.ErrorIs(t, r.UpdateByKey(ctx, key, model.Nutrition{}), ErrProductNotFound)
}

func TestProductRepo_Delete(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	ids := seed(t, r, cereal("Wheaties", "G", "C", 100), cereal("Smacks", "K", "C", 110))
	ctx := context.Background()

	require.NoError(t, r.DeleteByID(ctx, ids[0]))
	assert.ErrorIs(t, r.DeleteByID(ctx, ids[0]), ErrProductNotFound)

	ok, err := r.Exists(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.DeleteByKey(ctx, model.ProductKey{Name: "Smacks", Mfr: "K", Type: "C"}))
	assert.ErrorIs(t, r.DeleteByKey(ctx, model.ProductKey{Name: "Smacks", Mfr: "K", Type: "C"}), ErrProductNotFound)

	ok, err = r.Exists(ctx, ids[1])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductRepo_BulkInsert(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	ctx := context.Background()

	batch := make([]model.Product, 0, bulkChunk+5)
	for i := 0; i < bulkChunk+5; i++ {
		batch = append(batch, cereal(fmt.Sprintf("Cereal %03d", i), "K", "C", 100+i))
	}
	n, err := r.BulkInsert(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, bulkChunk+5, n)

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, bulkChunk+5)
}

func TestProductRepo_BulkInsertIsAtomic(t *testing.T) {
	r := NewProductRepo(newTestDB(t))
	ctx := context.Background()
	seed(t, r, cereal("Golden Grahams", "G", "C", 110))

	_, err := r.BulkInsert(ctx, []model.Product{
		cereal("Honey-comb", "P", "C", 110),
		cereal("Golden Grahams", "G", "C", 110),
	})
	assert.ErrorIs(t, err, ErrConflict)

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Golden Grahams"}, names(all))
}

func names(ps []model.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

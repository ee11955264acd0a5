package repository

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/database"
	"github.com/iliyamo/cereal-api/internal/model"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, zap.NewNop()))
	return db
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
func strp(v string) *string     { return &v }

func cereal(name, mfr, typ string, calories int) model.Product {
	return model.Product{Name: name, Mfr: mfr, Type: typ, Calories: intp(calories)}
}

func seed(t *testing.T, r *ProductRepo, ps ...model.Product) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(ps))
	for _, p := range ps {
		id, err := r.Create(context.Background(), p)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

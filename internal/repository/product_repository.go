package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cereal-api/internal/model"
	"github.com/iliyamo/cereal-api/internal/query"
)

const productColumns = `id, name, mfr, type, calories, protein, fat, sodium, fiber, carbo,
	sugars, potass, vitamins, shelf, weight, cups, rating`

const insertProductSQL = `INSERT INTO products
	(name, mfr, type, calories, protein, fat, sodium, fiber, carbo, sugars, potass, vitamins, shelf, weight, cups, rating)
	VALUES
	(:name, :mfr, :type, :calories, :protein, :fat, :sodium, :fiber, :carbo, :sugars, :potass, :vitamins, :shelf, :weight, :cups, :rating)`

// MaxTop bounds the row count of Top.
const MaxTop = 10000

// bulkChunk is the number of rows sent per multi-row INSERT.
const bulkChunk = 200

// byNameThenID is the stable order of the unfiltered listings.
var byNameThenID = query.OrderBy{{Column: "name"}, {Column: "id"}}

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// List returns every product ordered by name.
func (r *ProductRepo) List(ctx context.Context) ([]model.Product, error) {
	return r.Search(ctx, query.NewBuilder(), byNameThenID)
}

// Top returns the first n products by name.  n is clamped to 1..MaxTop.
func (r *ProductRepo) Top(ctx context.Context, n int) ([]model.Product, error) {
	if n < 1 {
		n = 1
	}
	if n > MaxTop {
		n = MaxTop
	}
	out := []model.Product{}
	err := r.db.SelectContext(ctx, &out,
		r.db.Rebind("SELECT "+productColumns+" FROM products "+byNameThenID.SQL()+" LIMIT ?"), n)
	return out, err
}

// Find returns the products matching b in the stable name, id order.
func (r *ProductRepo) Find(ctx context.Context, b *query.Builder) ([]model.Product, error) {
	return r.Search(ctx, b, byNameThenID)
}

// Search runs the predicates collected in b with the given ordering.  Only
// b's whitelisted columns and generated parameter names reach the SQL text;
// the values travel as bound arguments.
func (r *ProductRepo) Search(ctx context.Context, b *query.Builder, order query.OrderBy) ([]model.Product, error) {
	q := "SELECT " + productColumns + " FROM products " + b.Where() + " " + order.SQL()
	named, args, err := sqlx.Named(q, b.Args())
	if err != nil {
		return nil, fmt.Errorf("bind search: %w", err)
	}
	out := []model.Product{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(named), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a product by its surrogate id.
func (r *ProductRepo) GetByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.GetContext(ctx, &p,
		r.db.Rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrProductNotFound
	}
	return p, err
}

// Exists reports whether a product with the id is stored.
func (r *ProductRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, r.db.Rebind("SELECT 1 FROM products WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts p and returns the id the store assigned.  p.ID is ignored.
func (r *ProductRepo) Create(ctx context.Context, p model.Product) (int64, error) {
	res, err := r.db.NamedExecContext(ctx, insertProductSQL, p)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	return res.LastInsertId()
}

// Update rewrites every column of the product identified by p.ID.
func (r *ProductRepo) Update(ctx context.Context, p model.Product) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE products SET
		name = :name, mfr = :mfr, type = :type,
		calories = :calories, protein = :protein, fat = :fat, sodium = :sodium,
		fiber = :fiber, carbo = :carbo, sugars = :sugars, potass = :potass,
		vitamins = :vitamins, shelf = :shelf, weight = :weight, cups = :cups,
		rating = :rating
		WHERE id = :id`, p)
	return affectedOne(res, err)
}

// UpdateByKey replaces the nutrition columns of the product with the given
// natural key.  The key columns themselves are not changed.
func (r *ProductRepo) UpdateByKey(ctx context.Context, key model.ProductKey, n model.Nutrition) error {
	arg := struct {
		model.ProductKey
		model.Nutrition
	}{key, n}
	res, err := r.db.NamedExecContext(ctx, `UPDATE products SET
		calories = :calories, protein = :protein, fat = :fat, sodium = :sodium,
		fiber = :fiber, carbo = :carbo, sugars = :sugars, potass = :potass,
		vitamins = :vitamins, shelf = :shelf, weight = :weight, cups = :cups,
		rating = :rating
		WHERE name = :key_name AND mfr = :key_mfr AND type = :key_type`, arg)
	return affectedOne(res, err)
}

// DeleteByID removes a product by surrogate id.
func (r *ProductRepo) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM products WHERE id = ?"), id)
	return affectedOne(res, err)
}

// DeleteByKey removes a product by natural key.
func (r *ProductRepo) DeleteByKey(ctx context.Context, key model.ProductKey) error {
	res, err := r.db.NamedExecContext(ctx,
		`DELETE FROM products WHERE name = :key_name AND mfr = :key_mfr AND type = :key_type`, key)
	return affectedOne(res, err)
}

// BulkInsert stores products in one transaction using multi-row inserts of
// bulkChunk rows.  Either every row is stored or none is.
func (r *ProductRepo) BulkInsert(ctx context.Context, products []model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(products); start += bulkChunk {
		end := start + bulkChunk
		if end > len(products) {
			end = len(products)
		}
		if _, err := tx.NamedExecContext(ctx, insertProductSQL, products[start:end]); err != nil {
			if isDuplicateKey(err) {
				return 0, ErrConflict
			}
			return 0, fmt.Errorf("insert rows %d-%d: %w", start+1, end, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(products), nil
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

package model

// Product mirrors a row of the `products` table.  Nutrition columns are
// nullable: an unknown value stays nil and is never stored as zero.
type Product struct {
	ID       int64    `db:"id" json:"id"`
	Name     string   `db:"name" json:"name"`
	Mfr      string   `db:"mfr" json:"mfr"`
	Type     string   `db:"type" json:"type"`
	Calories *int     `db:"calories" json:"calories"`
	Protein  *int     `db:"protein" json:"protein"`
	Fat      *int     `db:"fat" json:"fat"`
	Sodium   *int     `db:"sodium" json:"sodium"`
	Fiber    *float64 `db:"fiber" json:"fiber"`
	Carbo    *float64 `db:"carbo" json:"carbo"`
	Sugars   *int     `db:"sugars" json:"sugars"`
	Potass   *int     `db:"potass" json:"potass"`
	Vitamins *int     `db:"vitamins" json:"vitamins"`
	Shelf    *int     `db:"shelf" json:"shelf"`
	Weight   *float64 `db:"weight" json:"weight"`
	Cups     *float64 `db:"cups" json:"cups"`
	Rating   *string  `db:"rating" json:"rating"`
}

// ProductKey is the natural key of a product.
type ProductKey struct {
	Name string `db:"key_name"`
	Mfr  string `db:"key_mfr"`
	Type string `db:"key_type"`
}

// Key returns the natural key of p.
func (p Product) Key() ProductKey {
	return ProductKey{Name: p.Name, Mfr: p.Mfr, Type: p.Type}
}

// Nutrition is the set of columns a natural-key update may change.
type Nutrition struct {
	Calories *int     `db:"calories" json:"calories"`
	Protein  *int     `db:"protein" json:"protein"`
	Fat      *int     `db:"fat" json:"fat"`
	Sodium   *int     `db:"sodium" json:"sodium"`
	Fiber    *float64 `db:"fiber" json:"fiber"`
	Carbo    *float64 `db:"carbo" json:"carbo"`
	Sugars   *int     `db:"sugars" json:"sugars"`
	Potass   *int     `db:"potass" json:"potass"`
	Vitamins *int     `db:"vitamins" json:"vitamins"`
	Shelf    *int     `db:"shelf" json:"shelf"`
	Weight   *float64 `db:"weight" json:"weight"`
	Cups     *float64 `db:"cups" json:"cups"`
	Rating   *string  `db:"rating" json:"rating"`
}

// Nutrition returns the updatable columns of p.
func (p Product) Nutrition() Nutrition {
	return Nutrition{
		Calories: p.Calories,
		Protein:  p.Protein,
		Fat:      p.Fat,
		Sodium:   p.Sodium,
		Fiber:    p.Fiber,
		Carbo:    p.Carbo,
		Sugars:   p.Sugars,
		Potass:   p.Potass,
		Vitamins: p.Vitamins,
		Shelf:    p.Shelf,
		Weight:   p.Weight,
		Cups:     p.Cups,
		Rating:   p.Rating,
	}
}

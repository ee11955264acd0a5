// Package importer reads the semicolon separated cereal export into product
// records.
//
// The first line is the column header and the second line lists column
// types; both are skipped.  Fields are split on ';' without any quoting, in
// the order
//
//	name;mfr;type;calories;protein;fat;sodium;fiber;carbo;sugars;potass;vitamins;shelf;weight;cups;rating
//
// A blank cell or "-1" means the value is unknown and becomes nil.
package importer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iliyamo/cereal-api/internal/model"
)

const (
	separator = ";"
	unknown   = "-1"
	maxLine   = 1 << 20
)

// ParseProducts reads every data row of r.  Rows with a blank name, mfr or
// type are rejected with the line number, since they cannot form a natural
// key.
func ParseProducts(r io.Reader) ([]model.Product, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []model.Product
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo <= 2 {
			continue
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		p := parseRow(strings.Split(line, separator))
		if p.Name == "" || p.Mfr == "" || p.Type == "" {
			return nil, fmt.Errorf("line %d: name, mfr and type are required", lineNo)
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return out, nil
}

func parseRow(f []string) model.Product {
	get := func(i int) string {
		if i < len(f) {
			return strings.TrimSpace(f[i])
		}
		return ""
	}
	return model.Product{
		Name:     get(0),
		Mfr:      get(1),
		Type:     get(2),
		Calories: toInt(get(3)),
		Protein:  toInt(get(4)),
		Fat:      toInt(get(5)),
		Sodium:   toInt(get(6)),
		Fiber:    toFloat(get(7)),
		Carbo:    toFloat(get(8)),
		Sugars:   toInt(get(9)),
		Potass:   toInt(get(10)),
		Vitamins: toInt(get(11)),
		Shelf:    toInt(get(12)),
		Weight:   toFloat(get(13)),
		Cups:     toFloat(get(14)),
		Rating:   toString(get(15)),
	}
}

func toInt(s string) *int {
	if s == "" || s == unknown {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// toFloat accepts a dot as decimal separator and falls back to a comma, as
// found in exports made with a Danish locale.
func toFloat(s string) *float64 {
	if s == "" || s == unknown {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return &v
	}
	if !strings.Contains(s, ",") || strings.Contains(s, ".") {
		return nil
	}
	if v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
		return &v
	}
	return nil
}

func toString(s string) *string {
	if s == "" || s == unknown {
		return nil
	}
	return &s
}

package query

import "strings"

// SortKey is one ORDER BY term.
type SortKey struct {
	Column string
	Desc   bool
}

// OrderBy is a non-empty, whitelisted list of sort keys.
type OrderBy []SortKey

// DefaultOrder is used when a sort specification yields nothing usable.
var DefaultOrder = OrderBy{{Column: "name"}}

// CompileSort parses a specification such as "calories_desc,name_asc".
// Tokens ending in _desc sort descending, anything else ascending; unknown
// columns are dropped.  The result is never empty.
func CompileSort(spec string) OrderBy {
	var out OrderBy
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		desc := strings.HasSuffix(tok, "_desc")
		field := strings.TrimSuffix(strings.TrimSuffix(tok, "_desc"), "_asc")
		col, ok := Column(field)
		if !ok {
			continue
		}
		out = append(out, SortKey{Column: col, Desc: desc})
	}
	if len(out) == 0 {
		return append(OrderBy(nil), DefaultOrder...)
	}
	return out
}

// SQL renders the ORDER BY clause.
func (o OrderBy) SQL() string {
	if len(o) == 0 {
		o = DefaultOrder
	}
	parts := make([]string, len(o))
	for i, k := range o {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts[i] = k.Column + " " + dir
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

package query

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// rawExpr finds "field<op>value" clauses in a decoded querystring.  The
// two-character operators are listed first so ">=" is never read as ">"
// followed by "=".
var rawExpr = regexp.MustCompile(`([A-Za-z_]\w*)\s*(!=|>=|<=|=|>|<)\s*([^&]+)`)

// aliasSuffixes is checked in order; "_neq" must come before "_eq" and the
// inclusive forms before their strict counterparts.
var aliasSuffixes = []struct {
	suffix string
	op     Op
}{
	{"_gte", OpGte},
	{"_lte", OpLte},
	{"_neq", OpNeq},
	{"_gt", OpGt},
	{"_lt", OpLt},
	{"_eq", OpEq},
}

// CompileFilter runs both filter syntaxes over one request and returns the
// combined builder.  rawQuery is the still-encoded querystring and values its
// parsed form.  A field matched by both syntaxes yields two clauses.
func CompileFilter(rawQuery string, values url.Values) *Builder {
	b := NewBuilder()
	ParseRawExpressions(b, rawQuery)
	ParseSuffixAliases(b, values)
	return b
}

// ParseRawExpressions scans the decoded querystring for calories>=100 style
// clauses.  A clause whose field or operator is not recognised is skipped
// on its own; the rest of the query is still used.
func ParseRawExpressions(b *Builder, rawQuery string) {
	raw := strings.TrimPrefix(rawQuery, "?")
	if raw == "" {
		return
	}
	for _, m := range rawExpr.FindAllStringSubmatch(lenientUnescape(raw), -1) {
		col, ok := Column(m[1])
		if !ok {
			continue
		}
		op, ok := comparisonOps[m[2]]
		if !ok {
			continue
		}
		b.Add(col, op, CoerceValue(m[3]))
	}
}

// lenientUnescape decodes a querystring one escape at a time.  "+" becomes a
// space and a malformed "%xx" is kept literally, so one bad escape in a
// value does not stop the operators around it from being decoded.
func lenientUnescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			sb.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			sb.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// ParseSuffixAliases handles keys such as calories_gte=100 or name_eq=Trix.
// Keys are visited in sorted order so the clause order is stable, and only
// the first value of a repeated key is used.
func ParseSuffixAliases(b *Builder, values url.Values) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		lower := strings.ToLower(key)
		for _, a := range aliasSuffixes {
			if !strings.HasSuffix(lower, a.suffix) {
				continue
			}
			col, ok := Column(lower[:len(lower)-len(a.suffix)])
			if ok {
				b.Add(col, a.op, CoerceValue(values.Get(key)))
			}
			break
		}
	}
}

// CoerceValue types a raw filter value: integer first, then a float using a
// dot as decimal separator, otherwise the trimmed string itself.
func CoerceValue(s string) any {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

// Package services provides the SQLite repositories behind the store-backed
// content pages (news articles and gadgets) and the query pass-through used by
// their records endpoints.
package services

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Query limits.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Sentinel errors returned by repositories.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidColumn = errors.New("invalid column")
	ErrInvalidQuery  = errors.New("invalid query")
)

// Query is a filtered, ordered and ranged read over one table. Keys of Eq,
// Gte and Lte are column names checked against the repository's whitelist.
type Query struct {
	Eq      map[string]string
	Gte     map[string]string
	Lte     map[string]string
	Offset  int
	Limit   int
	OrderBy string
	Desc    bool
}

// ListResult wraps a ranged result set with the total number of matches.
type ListResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// reserved parameters are not column filters.
var reserved = map[string]bool{"range": true, "order": true, "limit": true, "offset": true, "select": true}

// ParseQuery reads the query pass-through syntax:
//
//	column=eq.value  column=gte.value  column=lte.value
//	range=0-11       order=column.desc  limit=20  offset=40
//
// Column names are not validated here; the repository does that.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		Eq:  map[string]string{},
		Gte: map[string]string{},
		Lte: map[string]string{},
	}

	if r := values.Get("range"); r != "" {
		from, to, ok := strings.Cut(r, "-")
		start, err1 := strconv.Atoi(strings.TrimSpace(from))
		end, err2 := strconv.Atoi(strings.TrimSpace(to))
		if !ok || err1 != nil || err2 != nil || start < 0 || end < start {
			return Query{}, fmt.Errorf("%w: range %q", ErrInvalidQuery, r)
		}
		q.Offset = start
		q.Limit = end - start + 1
	}
	if l := values.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("%w: limit %q", ErrInvalidQuery, l)
		}
		q.Limit = n
	}
	if o := values.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("%w: offset %q", ErrInvalidQuery, o)
		}
		q.Offset = n
	}
	if o := values.Get("order"); o != "" {
		col, dir, _ := strings.Cut(o, ".")
		switch dir {
		case "", "asc":
		case "desc":
			q.Desc = true
		default:
			return Query{}, fmt.Errorf("%w: order direction %q", ErrInvalidQuery, dir)
		}
		q.OrderBy = col
	}

	for key, vals := range values {
		if reserved[key] {
			continue
		}
		for _, raw := range vals {
			op, val, ok := strings.Cut(raw, ".")
			if !ok {
				return Query{}, fmt.Errorf("%w: %s=%q has no operator", ErrInvalidQuery, key, raw)
			}
			switch op {
			case "eq":
				q.Eq[key] = val
			case "gte":
				q.Gte[key] = val
			case "lte":
				q.Lte[key] = val
			default:
				return Query{}, fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, op)
			}
		}
	}
	return q, nil
}

// columnSet whitelists the columns a repository accepts in a Query. Range
// comparisons use the numeric shadow column when one exists.
type columnSet struct {
	text    map[string]string
	numeric map[string]string
}

func (c columnSet) lookup(name string) (string, bool) {
	col, ok := c.text[name]
	return col, ok
}

func (c columnSet) lookupRange(name string) (string, bool) {
	if col, ok := c.numeric[name]; ok {
		return col, true
	}
	return c.lookup(name)
}

// compiled is a Query translated to SQL fragments.
type compiled struct {
	where string
	args  []any
	order string
	limit int
	off   int
}

// compile validates q against cols and builds the WHERE and ORDER BY clauses.
// Conditions are emitted in sorted column order so statements are stable.
func (q Query) compile(cols columnSet, defaultOrder string) (compiled, error) {
	var (
		conds []string
		args  []any
	)

	add := func(m map[string]string, op string, lookup func(string) (string, bool)) error {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			col, ok := lookup(k)
			if !ok {
				return fmt.Errorf("%w: %q", ErrInvalidColumn, k)
			}
			conds = append(conds, col+" "+op+" ?")
			args = append(args, bindValue(m[k], op != "="))
		}
		return nil
	}

	if err := add(q.Eq, "=", cols.lookup); err != nil {
		return compiled{}, err
	}
	if err := add(q.Gte, ">=", cols.lookupRange); err != nil {
		return compiled{}, err
	}
	if err := add(q.Lte, "<=", cols.lookupRange); err != nil {
		return compiled{}, err
	}

	c := compiled{args: args, order: defaultOrder, limit: q.Limit, off: q.Offset}
	if len(conds) > 0 {
		c.where = " WHERE " + strings.Join(conds, " AND ")
	}
	if q.OrderBy != "" {
		col, ok := cols.lookup(q.OrderBy)
		if !ok {
			return compiled{}, fmt.Errorf("%w: order %q", ErrInvalidColumn, q.OrderBy)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		c.order = col + " " + dir
	}

	if c.limit <= 0 {
		c.limit = DefaultLimit
	}
	if c.limit > MaxLimit {
		c.limit = MaxLimit
	}
	if c.off < 0 {
		c.off = 0
	}
	return c, nil
}

// bindValue returns v as a number for range comparisons when it parses as
// one, so SQLite compares numerically.
func bindValue(v string, numeric bool) any {
	if numeric {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

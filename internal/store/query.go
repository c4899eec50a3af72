package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Collection describes a table the query engine may list: the columns it
// selects and the fields clients are allowed to search and sort on. Every
// identifier that reaches SQL comes from these compile-time definitions;
// client input only ever binds as query arguments.
type Collection struct {
	Table   string
	Columns []string
	// Searchable maps a field name to its search weight. Membership is
	// what gates use; an unknown search_key is silently ignored.
	Searchable map[string]int
	// Sortable maps a field name to its default direction
	// (1 ascending, -1 descending).
	Sortable map[string]int
}

// Page is one page of list results. TotalCount is nil unless the caller
// asked for it with total_count=true; nil means unknown, not zero.
type Page[T any] struct {
	TotalCount *int64 `json:"total_count"`
	Data       []T    `json:"data"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Skip       int    `json:"skip"`
}

// defaultOrder is the fallback ordering applied when no allow-listed
// sort_key is supplied.
const defaultOrder = "created_at DESC"

// listQuery translates an untrusted parameter bag into a bounded SQL query
// for col. It returns the data query, the matching COUNT query (empty when
// total_count was not requested), the bind arguments shared by both, and
// the resolved pagination values.
func listQuery(col Collection, params url.Values, defaultPageSize int) (dataSQL, countSQL string, args []any, page, pageSize, skip int, err error) {
	page, err = positiveIntParam(params, "page", 1)
	if err != nil {
		return "", "", nil, 0, 0, 0, err
	}
	pageSize, err = positiveIntParam(params, "page_size", defaultPageSize)
	if err != nil {
		return "", "", nil, 0, 0, 0, err
	}
	skip = (page - 1) * pageSize

	where, args := searchClause(col, params)

	order, err := orderClause(col, params)
	if err != nil {
		return "", "", nil, 0, 0, 0, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(col.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(col.Table)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(order)
	b.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2))

	if params.Get("total_count") == "true" {
		countSQL = "SELECT COUNT(*) FROM " + col.Table
		if where != "" {
			countSQL += " WHERE " + where
		}
	}

	args = append(args, pageSize, skip)
	return b.String(), countSQL, args, page, pageSize, skip, nil
}

// searchClause builds a case-insensitive substring filter when both
// search_key and search_term are present and the key is allow-listed.
// Otherwise the filter is empty and the whole collection matches. Only one
// search field is supported per call.
func searchClause(col Collection, params url.Values) (string, []any) {
	key := params.Get("search_key")
	term := params.Get("search_term")
	if key == "" || term == "" {
		return "", nil
	}
	if _, ok := col.Searchable[key]; !ok {
		return "", nil
	}
	return key + " ILIKE $1", []any{"%" + escapeLike(term) + "%"}
}

// orderClause resolves the ORDER BY expression. An allow-listed sort_key
// sorts by that field, using the client's sort_value when given or the
// configured default direction otherwise. A sort_value outside {1, -1} is
// rejected. Anything else falls back to created_at descending.
func orderClause(col Collection, params url.Values) (string, error) {
	key := params.Get("sort_key")
	if key == "" {
		return defaultOrder, nil
	}
	dir, ok := col.Sortable[key]
	if !ok {
		return defaultOrder, nil
	}
	if raw := params.Get("sort_value"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return "", &ValidationError{Param: "sort_value", Reason: "must be an integer"}
		}
		if v != 1 && v != -1 {
			return "", &ValidationError{Param: "sort_value", Reason: "must be 1 or -1"}
		}
		dir = v
	}
	if dir >= 0 {
		return key + " ASC", nil
	}
	return key + " DESC", nil
}

func positiveIntParam(params url.Values, key string, defaultVal int) (int, error) {
	raw := params.Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Param: key, Reason: "must be an integer"}
	}
	if v <= 0 {
		return 0, &ValidationError{Param: key, Reason: "must be positive"}
	}
	return v, nil
}

// escapeLike escapes LIKE metacharacters so the client term matches
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// paginate runs the list query for col and scans each row with scan.
// Results are sliced after filter and sort, never before.
func paginate[T any](ctx context.Context, pool *pgxpool.Pool, col Collection, params url.Values, defaultPageSize int, scan func(pgx.Rows) (T, error)) (*Page[T], error) {
	dataSQL, countSQL, args, page, pageSize, skip, err := listQuery(col, params, defaultPageSize)
	if err != nil {
		return nil, err
	}

	result := &Page[T]{
		Data:     []T{},
		Page:     page,
		PageSize: pageSize,
		Skip:     skip,
	}

	if countSQL != "" {
		var total int64
		// The count shares the filter args but not LIMIT/OFFSET.
		if err := pool.QueryRow(ctx, countSQL, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, fmt.Errorf("count %s: %w", col.Table, err)
		}
		result.TotalCount = &total
	}

	rows, err := pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", col.Table, err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", col.Table, err)
		}
		result.Data = append(result.Data, item)
	}
	return result, rows.Err()
}

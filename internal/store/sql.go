package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/onnwee/townhall/internal/content"
)

// excludedStatuses hides merged, removed and ambiguous communities from name
// searches.
var excludedStatuses = []string{
	content.StatusDuplicate,
	content.StatusDeleted,
	content.StatusHomonym,
}

// sqlBuilder accumulates positional arguments.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// BuildSelect renders q as a parameterized SELECT over the kind's table.
func BuildSelect(q Query) (string, []any, error) {
	return buildSelect(q, "", false)
}

// BuildNameLike renders a name search for q.Kind combined with q's filters.
func BuildNameLike(nameLike string, q Query) (string, []any, error) {
	return buildSelect(q, normalizeNameLike(q.Kind, nameLike), true)
}

// BuildExists renders a one-row probe for items matching q's filters.
func BuildExists(q Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	b := &sqlBuilder{}
	where, err := b.where(q, "", false)
	if err != nil {
		return "", nil, err
	}
	return "SELECT 1 FROM " + pq.QuoteIdentifier(tables[q.Kind]) + where + " LIMIT 1", b.args, nil
}

// BuildInsert renders an INSERT of every column of item.
func BuildInsert(item content.Item) (string, []any, error) {
	table, ok := Table(item.Kind())
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", content.ErrUnknownKind, item.Kind())
	}
	doc := content.ToDocument(item)
	b := &sqlBuilder{}

	cols := Columns(item.Kind())
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
		placeholders[i] = b.arg(fieldValue(doc, col))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))
	return query, b.args, nil
}

func buildSelect(q Query, nameLike string, search bool) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	cols := Columns(q.Kind)
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
	}

	b := &sqlBuilder{}
	where, err := b.where(q, nameLike, search)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(pq.QuoteIdentifier(tables[q.Kind]))
	sb.WriteString(where)

	if len(q.OrderBy) > 0 {
		order := make([]string, len(q.OrderBy))
		for i, s := range q.OrderBy {
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			order[i] = pq.QuoteIdentifier(s.Field) + " " + dir + " NULLS LAST"
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}

	sb.WriteString(" LIMIT ")
	sb.WriteString(b.arg(q.limit()))
	sb.WriteString(" OFFSET ")
	sb.WriteString(b.arg(q.Offset))

	return sb.String(), b.args, nil
}

// where renders the WHERE clause: the optional name search first, then one
// conjunct per filter.
func (b *sqlBuilder) where(q Query, nameLike string, search bool) (string, error) {
	var conds []string
	if search {
		conds = append(conds, b.nameLike(q.Kind, nameLike))
	}
	for _, f := range q.Filters {
		cond, err := b.filter(f)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

func (b *sqlBuilder) filter(f Filter) (string, error) {
	col := pq.QuoteIdentifier(f.Field)
	switch f.Op {
	case OpEq:
		return col + " = " + b.arg(f.Value), nil
	case OpAfter:
		return col + " > " + b.arg(f.Value), nil
	case OpIsNull:
		return col + " IS NULL", nil
	case OpIn:
		var members []any
		withNull := false
		for _, v := range f.Values {
			if v == nil {
				withNull = true
				continue
			}
			members = append(members, v)
		}
		var parts []string
		if len(members) > 0 {
			parts = append(parts, col+" = ANY("+b.arg(arrayOf(members))+")")
		}
		if withNull {
			parts = append(parts, col+" IS NULL")
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, f.Op)
}

// arrayOf wraps set members for binding as one Postgres array parameter.
func arrayOf(values []any) any {
	strs := make([]string, 0, len(values))
	ints := make([]int64, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			strs = append(strs, t)
		case int:
			ints = append(ints, int64(t))
		case int64:
			ints = append(ints, t)
		}
	}
	switch {
	case len(strs) == len(values):
		return pq.Array(strs)
	case len(ints) == len(values):
		return pq.Array(ints)
	}
	return pq.Array(values)
}

// nameLike renders the per-kind name search.
func (b *sqlBuilder) nameLike(kind content.Kind, q string) string {
	lower := func(col string) string { return "LOWER(" + pq.QuoteIdentifier(col) + ")" }
	escaped := escapeLike(q)

	switch kind {
	case content.KindComment:
		p := b.arg("%" + escaped + "%")
		return "(" + lower("content") + " LIKE " + p + " OR " + lower("title") + " LIKE " + p + ")"
	case content.KindProposition:
		p := b.arg("%" + escaped + "%")
		return "(" + lower("content2") + " LIKE " + p + " OR " + lower("content1") + " LIKE " + p + ")"
	case content.KindCommunity:
		url := b.arg(escapeLike(content.CleanURL(q)) + "%")
		name := b.arg(escaped + "%")
		word := b.arg("% " + escaped + "%")
		statuses := b.arg(pq.Array(excludedStatuses))
		return "((" + pq.QuoteIdentifier("url") + " LIKE " + url +
			" OR " + lower("name") + " LIKE " + name +
			" OR " + lower("name") + " LIKE " + word + ")" +
			" AND COALESCE(" + pq.QuoteIdentifier("status") + ", '') <> ALL(" + statuses + "))"
	case content.KindIssue:
		p := b.arg("%" + escaped + "%")
		return "(" + lower("tag") + " LIKE " + p + " OR " + lower("title") + " LIKE " + p + ")"
	case content.KindUser:
		p := b.arg(escaped + "%")
		return "(" + lower("username") + " LIKE " + p +
			" OR " + lower("first_name") + " LIKE " + p +
			" OR " + lower("last_name") + " LIKE " + p +
			" OR LOWER(" + pq.QuoteIdentifier("first_name") + " || " + pq.QuoteIdentifier("last_name") + ") LIKE " + p + ")"
	}
	p := b.arg("%" + escaped + "%")
	return lower("name") + " LIKE " + p
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// normalizeNameLike lowercases and trims a name search. Free-text kinds keep
// inner whitespace; all others drop it.
func normalizeNameLike(kind content.Kind, s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if keepsSpaces(kind) {
		return s
	}
	return strings.Join(strings.Fields(s), "")
}

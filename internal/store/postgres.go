package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/onnwee/townhall/internal/content"
	"github.com/onnwee/townhall/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL. Each call
// resolves relations through its own identity map, so items returned by one
// call share community, issue, comment and user instances.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores an item.
func (r *PostgresRepository) Insert(ctx context.Context, item content.Item) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tables[item.Kind()], tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if err := content.Validate(item); err != nil {
		return err
	}
	query, args, err := BuildInsert(item)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s: %w", item.Kind(), err)
	}
	return nil
}

// Find returns the items matching q.
func (r *PostgresRepository) Find(ctx context.Context, q Query) (items []content.Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tables[q.Kind], tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query, args, err := BuildSelect(q)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, q.Kind, query, args)
}

// FindByNameLike searches q.Kind by name, then applies q.
func (r *PostgresRepository) FindByNameLike(ctx context.Context, nameLike string, q Query) (items []content.Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tables[q.Kind], tracing.DBOperationSearch)
	defer func() { endSpan(err) }()

	query, args, err := BuildNameLike(nameLike, q)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, q.Kind, query, args)
}

// Exists reports whether an item with the same identifying fields is stored.
func (r *PostgresRepository) Exists(ctx context.Context, item content.Item) (exists bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tables[item.Kind()], tracing.DBOperationExists)
	defer func() { endSpan(err) }()

	if err := content.Validate(item); err != nil {
		return false, err
	}
	query, args, err := BuildExists(Query{Kind: item.Kind(), Filters: identityFilters(item)})
	if err != nil {
		return false, err
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", item.Kind(), err)
	}
	return true, nil
}

func (r *PostgresRepository) query(ctx context.Context, kind content.Kind, query string, args []any) ([]content.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	cols := Columns(kind)
	im := content.NewIdentityMap()
	var items []content.Item
	for rows.Next() {
		values := make([]any, len(cols))
		targets := make([]any, len(cols))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}

		doc := content.Document{Kind: kind}
		for i, col := range cols {
			if err := assignField(&doc, col, values[i]); err != nil {
				return nil, fmt.Errorf("failed to scan %s.%s: %w", kind, col, err)
			}
		}
		item, err := im.Materialize(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind, err)
	}
	return items, nil
}

// assignField writes a scanned column value into doc. NULL leaves the zero
// value in place.
func assignField(doc *content.Document, col string, v any) error {
	if v == nil {
		return nil
	}

	var err error
	switch col {
	case "id":
		doc.ID, err = asString(v)
	case "created_at":
		doc.CreatedAt, err = asTime(v)
	case "global_relevancy":
		doc.GlobalRelevancy, err = asFloat(v)
	case "global_relevancy_score":
		doc.GlobalRelevancyScore, err = asFloatPtr(v)
	case "cluster_global_relevancy_score":
		doc.ClusterGlobalRelevancyScore, err = asFloatPtr(v)
	case "community_id":
		doc.CommunityID, err = asString(v)
	case "issue_id":
		doc.IssueID, err = asString(v)
	case "root_id":
		doc.RootID, err = asString(v)
	case "user_id":
		doc.UserID, err = asString(v)
	case "level":
		doc.Level, err = asInt(v)
	case "is_active":
		doc.IsActive, err = asBool(v)
	case "url":
		doc.URL, err = asString(v)
	case "name":
		doc.Name, err = asString(v)
	case "status":
		doc.Status, err = asString(v)
	case "date_end":
		doc.DateEnd, err = asTime(v)
	case "official":
		doc.Official, err = asBool(v)
	case "tag":
		doc.Tag, err = asString(v)
	case "title":
		doc.Title, err = asString(v)
	case "content":
		doc.Content, err = asString(v)
	case "content1":
		doc.Content1, err = asString(v)
	case "content2":
		doc.Content2, err = asString(v)
	case "badge_top_down":
		doc.BadgeTopDown, err = asBool(v)
	case "badge_impact":
		doc.BadgeImpact, err = asBool(v)
	case "admin_level":
		doc.AdminLevel, err = asInt(v)
	case "username":
		doc.Username, err = asString(v)
	case "first_name":
		doc.FirstName, err = asString(v)
	case "last_name":
		doc.LastName, err = asString(v)
	case "date_begin":
		doc.DateBegin, err = asTime(v)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, col)
	}
	return err
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", fmt.Errorf("unexpected type %T for text column", v)
}

func asFloat(v any) (float64, error) {
	if f, ok := toFloat(v); ok {
		return f, nil
	}
	if b, ok := v.([]byte); ok {
		var f float64
		if _, err := fmt.Sscan(string(b), &f); err != nil {
			return 0, err
		}
		return f, nil
	}
	return 0, fmt.Errorf("unexpected type %T for numeric column", v)
}

func asFloatPtr(v any) (*float64, error) {
	f, err := asFloat(v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func asInt(v any) (int, error) {
	if n, ok := v.(int64); ok {
		return int(n), nil
	}
	return 0, fmt.Errorf("unexpected type %T for integer column", v)
}

func asBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("unexpected type %T for boolean column", v)
}

func asTime(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unexpected type %T for timestamp column", v)
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*InMemoryRepository)(nil)
)

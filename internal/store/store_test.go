package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/townhall/internal/content"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ids(items []content.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Meta().ID
	}
	return out
}

func sameIDs(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

// fixture is a small civic dataset shared by the repository tests.
type fixture struct {
	lyon, paris   *content.Community
	bikes, budget *content.Issue
	alice, bob    *content.User
	all           []content.Item
}

func newFixture() *fixture {
	f := &fixture{}
	f.lyon = &content.Community{Base: content.Base{ID: "c-lyon", CreatedAt: t0}, Name: "Lyon", URL: "lyon", Level: 2, IsActive: true}
	f.paris = &content.Community{Base: content.Base{ID: "c-paris", CreatedAt: t0}, Name: "Paris Centre", URL: "paris-centre", Level: 2}
	dup := &content.Community{Base: content.Base{ID: "c-dup", CreatedAt: t0}, Name: "Lyon Bis", URL: "lyon-bis", Status: content.StatusDuplicate}
	f.bikes = &content.Issue{Base: content.Base{ID: "i-bikes", CreatedAt: t0.Add(24 * time.Hour), GlobalRelevancy: 12}, Community: f.lyon, Tag: "bikes", Title: "More bike lanes", DateEnd: t0.Add(90 * 24 * time.Hour)}
	f.budget = &content.Issue{Base: content.Base{ID: "i-budget", CreatedAt: t0.Add(48 * time.Hour), GlobalRelevancy: 30}, Community: f.paris, Tag: "budget", Title: "Participatory budget"}
	orphan := &content.Issue{Base: content.Base{ID: "i-orphan", CreatedAt: t0.Add(72 * time.Hour), GlobalRelevancy: 5}, Title: "Noise at night"}
	root := &content.Comment{Base: content.Base{ID: "m-root", CreatedAt: t0}, Issue: f.bikes, Title: "Yes", Content: "Protected lanes on the quays please"}
	f.alice = &content.User{Base: content.Base{ID: "u-alice", CreatedAt: t0}, Username: "alice", FirstName: "Alice", LastName: "Martin"}
	f.bob = &content.User{Base: content.Base{ID: "u-bob", CreatedAt: t0}, Username: "bobby", FirstName: "Bob", LastName: "Durand"}
	event := &content.Event{Base: content.Base{ID: "e-fete", CreatedAt: t0}, Community: f.lyon, Name: "Fête des lumières", DateBegin: t0.Add(300 * 24 * time.Hour)}

	f.all = []content.Item{f.lyon, f.paris, dup, f.bikes, f.budget, orphan, root, f.alice, f.bob, event}
	return f
}

func seed(t *testing.T, f *fixture) *InMemoryRepository {
	t.Helper()
	repo := NewInMemoryRepository()
	for _, item := range f.all {
		if _, err := repo.Add(context.Background(), item); err != nil {
			t.Fatalf("Add(%s) error = %v", item.Meta().ID, err)
		}
	}
	return repo
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		q       Query
		wantErr error
	}{
		{"valid", Query{Kind: content.KindIssue, Filters: []Filter{Eq("official", true)}, OrderBy: []Sort{{Field: "created_at"}}}, nil},
		{"unknown kind", Query{Kind: "poll"}, content.ErrUnknownKind},
		{"field of another kind", Query{Kind: content.KindUser, Filters: []Filter{Eq("tag", "x")}}, ErrUnknownField},
		{"injection in order", Query{Kind: content.KindUser, OrderBy: []Sort{{Field: "id; DROP TABLE users"}}}, ErrUnknownField},
		{"empty set", Query{Kind: content.KindIssue, Filters: []Filter{In("community_id")}}, ErrInvalidQuery},
		{"negative offset", Query{Kind: content.KindIssue, Offset: -1}, ErrInvalidQuery},
		{"unknown operator", Query{Kind: content.KindIssue, Filters: []Filter{{Field: "tag", Op: "like"}}}, ErrInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEq_NilBecomesIsNull(t *testing.T) {
	if f := Eq("community_id", nil); f.Op != OpIsNull {
		t.Errorf("expected OpIsNull, got %s", f.Op)
	}
}

func TestBuildSelect(t *testing.T) {
	q := Query{
		Kind: content.KindIssue,
		Filters: []Filter{
			Eq("official", true),
			After("created_at", t0),
			In("community_id", "c-lyon", "c-paris", nil),
		},
		OrderBy: []Sort{{Field: "global_relevancy", Desc: true}, {Field: "id"}},
		Limit:   5,
		Offset:  10,
	}

	query, args, err := BuildSelect(q)
	if err != nil {
		t.Fatalf("BuildSelect() error = %v", err)
	}

	want := `SELECT "id", "created_at", "global_relevancy", "global_relevancy_score", "cluster_global_relevancy_score", ` +
		`"community_id", "date_end", "official", "tag", "title" FROM "issues" ` +
		`WHERE "official" = $1 AND "created_at" > $2 AND ("community_id" = ANY($3) OR "community_id" IS NULL) ` +
		`ORDER BY "global_relevancy" DESC NULLS LAST, "id" ASC NULLS LAST LIMIT $4 OFFSET $5`
	if query != want {
		t.Errorf("unexpected query:\n got: %s\nwant: %s", query, want)
	}
	if len(args) != 5 || args[0] != true || args[3] != 5 || args[4] != 10 {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestBuildSelect_DefaultLimit(t *testing.T) {
	query, args, err := BuildSelect(Query{Kind: content.KindUser})
	if err != nil {
		t.Fatalf("BuildSelect() error = %v", err)
	}
	if strings.Contains(query, "WHERE") {
		t.Errorf("unexpected WHERE clause: %s", query)
	}
	if args[0] != DefaultLimit {
		t.Errorf("expected default limit %d, got %v", DefaultLimit, args[0])
	}
}

func TestBuildNameLike(t *testing.T) {
	tests := []struct {
		name     string
		kind     content.Kind
		nameLike string
		contains []string
		firstArg string
	}{
		{
			name:     "community strips spaces and excludes statuses",
			kind:     content.KindCommunity,
			nameLike: " Paris Centre ",
			contains: []string{`"url" LIKE $1`, `LOWER("name") LIKE $2`, `LOWER("name") LIKE $3`, `<> ALL($4)`},
			firstArg: "pariscentre%",
		},
		{
			name:     "comment keeps spaces",
			kind:     content.KindComment,
			nameLike: "Bike Lanes",
			contains: []string{`LOWER("content") LIKE $1`, `LOWER("title") LIKE $1`},
			firstArg: "%bike lanes%",
		},
		{
			name:     "user prefix search",
			kind:     content.KindUser,
			nameLike: "Ali ce",
			contains: []string{`LOWER("username") LIKE $1`, `LOWER("first_name" || "last_name") LIKE $1`},
			firstArg: "alice%",
		},
		{
			name:     "wildcards are escaped",
			kind:     content.KindEvent,
			nameLike: "100%_fun",
			contains: []string{`LOWER("name") LIKE $1`},
			firstArg: `%100\%\_fun%`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := BuildNameLike(tt.nameLike, Query{Kind: tt.kind})
			if err != nil {
				t.Fatalf("BuildNameLike() error = %v", err)
			}
			for _, fragment := range tt.contains {
				if !strings.Contains(query, fragment) {
					t.Errorf("expected %q in %s", fragment, query)
				}
			}
			if args[0] != tt.firstArg {
				t.Errorf("expected first arg %q, got %v", tt.firstArg, args[0])
			}
		})
	}
}

func TestBuildInsert(t *testing.T) {
	f := newFixture()
	query, args, err := BuildInsert(f.budget)
	if err != nil {
		t.Fatalf("BuildInsert() error = %v", err)
	}
	if !strings.HasPrefix(query, `INSERT INTO "issues" ("id", "created_at"`) {
		t.Errorf("unexpected query: %s", query)
	}
	if len(args) != len(Columns(content.KindIssue)) {
		t.Fatalf("expected %d args, got %d", len(Columns(content.KindIssue)), len(args))
	}
	if args[5] != "c-paris" {
		t.Errorf("expected community id arg, got %v", args[5])
	}
	if args[6] != nil {
		t.Errorf("expected NULL date_end for issue without end date, got %v", args[6])
	}
}

func TestInMemoryRepository_Add(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	user := &content.User{Base: content.Base{CreatedAt: t0}, Username: "carol"}
	id, err := repo.Add(ctx, user)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if id == "" || user.ID != id {
		t.Errorf("expected generated id to be set on the item, got %q / %q", id, user.ID)
	}

	if _, err := repo.Add(ctx, &content.User{Username: "no-date"}); !errors.Is(err, content.ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestInMemoryRepository_Find(t *testing.T) {
	f := newFixture()
	repo := seed(t, f)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{
			name: "equality on relation",
			q:    Query{Kind: content.KindIssue, Filters: []Filter{Eq("community_id", "c-lyon")}},
			want: []string{"i-bikes"},
		},
		{
			name: "after on date",
			q:    Query{Kind: content.KindIssue, Filters: []Filter{After("created_at", t0.Add(24*time.Hour))}},
			want: []string{"i-budget", "i-orphan"},
		},
		{
			name: "set membership with null",
			q:    Query{Kind: content.KindIssue, Filters: []Filter{In("community_id", "c-paris", nil)}},
			want: []string{"i-budget", "i-orphan"},
		},
		{
			name: "is null",
			q:    Query{Kind: content.KindIssue, Filters: []Filter{IsNull("date_end")}},
			want: []string{"i-budget", "i-orphan"},
		},
		{
			name: "order and page",
			q:    Query{Kind: content.KindIssue, OrderBy: []Sort{{Field: "global_relevancy", Desc: true}}, Limit: 2, Offset: 1},
			want: []string{"i-bikes", "i-orphan"},
		},
		{
			name: "nulls last descending",
			q:    Query{Kind: content.KindIssue, OrderBy: []Sort{{Field: "date_end", Desc: true}, {Field: "id", Desc: true}}},
			want: []string{"i-bikes", "i-orphan", "i-budget"},
		},
		{
			name: "nulls last ascending",
			q:    Query{Kind: content.KindIssue, OrderBy: []Sort{{Field: "date_end"}, {Field: "id"}}},
			want: []string{"i-bikes", "i-budget", "i-orphan"},
		},
		{
			name: "numeric equality across int and float",
			q:    Query{Kind: content.KindCommunity, Filters: []Filter{Eq("level", 2.0), Eq("is_active", true)}},
			want: []string{"c-lyon"},
		},
		{
			name: "offset past the end",
			q:    Query{Kind: content.KindUser, Offset: 10},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Find(ctx, tt.q)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if !sameIDs(ids(got), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ids(got))
			}
		})
	}
}

func TestInMemoryRepository_FindByNameLike(t *testing.T) {
	f := newFixture()
	repo := seed(t, f)
	ctx := context.Background()

	tests := []struct {
		name     string
		kind     content.Kind
		nameLike string
		want     []string
	}{
		{"community by name prefix", content.KindCommunity, "Ly", []string{"c-lyon"}},
		{"community by word prefix", content.KindCommunity, "centre", []string{"c-paris"}},
		{"community by url slug", content.KindCommunity, "Paris-Cen", []string{"c-paris"}},
		{"issue by tag", content.KindIssue, "BUD", []string{"i-budget"}},
		{"issue by title", content.KindIssue, "bike", []string{"i-bikes"}},
		{"comment keeps spaces", content.KindComment, "the quays", []string{"m-root"}},
		{"user by first and last name", content.KindUser, "alice mar", []string{"u-alice"}},
		{"user by username prefix", content.KindUser, "bob", []string{"u-bob"}},
		{"event by name", content.KindEvent, "lumières", []string{"e-fete"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindByNameLike(ctx, tt.nameLike, Query{Kind: tt.kind})
			if err != nil {
				t.Fatalf("FindByNameLike() error = %v", err)
			}
			if !sameIDs(ids(got), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ids(got))
			}
		})
	}
}

func TestInMemoryRepository_Exists(t *testing.T) {
	f := newFixture()
	repo := seed(t, f)
	ctx := context.Background()

	tests := []struct {
		name string
		item content.Item
		want bool
	}{
		{
			name: "same title in same community",
			item: &content.Issue{Base: content.Base{ID: "new", CreatedAt: t0}, Title: "More bike lanes", Community: f.lyon},
			want: true,
		},
		{
			name: "same title elsewhere",
			item: &content.Issue{Base: content.Base{ID: "new", CreatedAt: t0}, Title: "More bike lanes", Community: f.paris},
			want: false,
		},
		{
			name: "same title without community",
			item: &content.Issue{Base: content.Base{ID: "new", CreatedAt: t0}, Title: "Noise at night"},
			want: true,
		},
		{
			name: "community url taken",
			item: &content.Community{Base: content.Base{ID: "new", CreatedAt: t0}, URL: "lyon", Name: "Lyon 2"},
			want: true,
		},
		{
			name: "new username",
			item: &content.User{Base: content.Base{ID: "new", CreatedAt: t0}, Username: "zoe"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Exists(ctx, tt.item)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestInMemoryRepository_ContextCancelled(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.Find(ctx, Query{Kind: content.KindIssue}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

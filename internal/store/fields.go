package store

import (
	"slices"

	"github.com/onnwee/townhall/internal/content"
)

// tables maps each kind to its table.
var tables = map[content.Kind]string{
	content.KindIssue:              "issues",
	content.KindProposition:        "propositions",
	content.KindComment:            "comments",
	content.KindCommunity:          "communities",
	content.KindCommunityFollowing: "community_followings",
	content.KindIssueFollowing:     "issue_followings",
	content.KindUser:               "users",
	content.KindEvent:              "events",
}

var baseColumns = []string{
	"id",
	"created_at",
	"global_relevancy",
	"global_relevancy_score",
	"cluster_global_relevancy_score",
}

// kindColumns lists the variant columns of each kind, in select order.
var kindColumns = map[content.Kind][]string{
	content.KindIssue:              {"community_id", "date_end", "official", "tag", "title"},
	content.KindProposition:        {"community_id", "issue_id", "content1", "content2"},
	content.KindComment:            {"issue_id", "root_id", "badge_top_down", "badge_impact", "title", "content"},
	content.KindCommunity:          {"level", "is_active", "url", "name", "status"},
	content.KindCommunityFollowing: {"community_id", "user_id", "admin_level"},
	content.KindIssueFollowing:     {"issue_id", "user_id", "admin_level"},
	content.KindUser:               {"username", "first_name", "last_name"},
	content.KindEvent:              {"community_id", "name", "date_begin"},
}

// Table returns the table holding kind.
func Table(kind content.Kind) (string, bool) {
	t, ok := tables[kind]
	return t, ok
}

// Columns returns every column of kind, base columns first.
func Columns(kind content.Kind) []string {
	return append(slices.Clone(baseColumns), kindColumns[kind]...)
}

// HasField reports whether field is a column of kind.
func HasField(kind content.Kind, field string) bool {
	return slices.Contains(baseColumns, field) || slices.Contains(kindColumns[kind], field)
}

// fieldValue reads a field from a flattened item. Unset relations, unset
// dates and absent scores read as nil.
func fieldValue(doc content.Document, field string) any {
	switch field {
	case "id":
		return doc.ID
	case "created_at":
		return doc.CreatedAt
	case "global_relevancy":
		return doc.GlobalRelevancy
	case "global_relevancy_score":
		return derefFloat(doc.GlobalRelevancyScore)
	case "cluster_global_relevancy_score":
		return derefFloat(doc.ClusterGlobalRelevancyScore)
	case "community_id":
		return nullable(doc.CommunityID)
	case "issue_id":
		return nullable(doc.IssueID)
	case "root_id":
		return nullable(doc.RootID)
	case "user_id":
		return nullable(doc.UserID)
	case "level":
		return doc.Level
	case "is_active":
		return doc.IsActive
	case "url":
		return doc.URL
	case "name":
		return doc.Name
	case "status":
		return doc.Status
	case "date_end":
		if doc.DateEnd.IsZero() {
			return nil
		}
		return doc.DateEnd
	case "official":
		return doc.Official
	case "tag":
		return doc.Tag
	case "title":
		return doc.Title
	case "content":
		return doc.Content
	case "content1":
		return doc.Content1
	case "content2":
		return doc.Content2
	case "badge_top_down":
		return doc.BadgeTopDown
	case "badge_impact":
		return doc.BadgeImpact
	case "admin_level":
		return doc.AdminLevel
	case "username":
		return doc.Username
	case "first_name":
		return doc.FirstName
	case "last_name":
		return doc.LastName
	case "date_begin":
		if doc.DateBegin.IsZero() {
			return nil
		}
		return doc.DateBegin
	}
	return nil
}

func derefFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// Package content provides the content item model ranked by the engine:
// issues, propositions, comments, communities, followings, users and events.
package content

import (
	"time"
)

// Kind identifies a content variant.
type Kind string

// Content kinds.
const (
	KindIssue              Kind = "issue"
	KindProposition        Kind = "proposition"
	KindComment            Kind = "comment"
	KindCommunity          Kind = "community"
	KindCommunityFollowing Kind = "community_following"
	KindIssueFollowing     Kind = "issue_following"
	KindUser               Kind = "user"
	KindEvent              Kind = "event"
)

// Kinds lists every known content kind.
var Kinds = []Kind{
	KindIssue,
	KindProposition,
	KindComment,
	KindCommunity,
	KindCommunityFollowing,
	KindIssueFollowing,
	KindUser,
	KindEvent,
}

// Item is a content item. The set of implementations is closed: only the
// variant types in this package satisfy it.
type Item interface {
	// Meta returns the fields shared by every variant.
	Meta() *Base
	// Kind returns the variant kind.
	Kind() Kind

	sealed()
}

// Base holds the fields common to all content variants.
type Base struct {
	ID              string    `json:"id" cbor:"id"`
	CreatedAt       time.Time `json:"created_at" cbor:"created_at"`
	GlobalRelevancy float64   `json:"global_relevancy" cbor:"global_relevancy"`

	// Aggregated scores. When present they replace GlobalRelevancy as the
	// popularity signal, cluster score first.
	GlobalRelevancyScore        *float64 `json:"global_relevancy_score,omitempty" cbor:"global_relevancy_score,omitempty"`
	ClusterGlobalRelevancyScore *float64 `json:"cluster_global_relevancy_score,omitempty" cbor:"cluster_global_relevancy_score,omitempty"`
}

// Meta returns the shared fields.
func (b *Base) Meta() *Base { return b }

// Upvotes returns the popularity signal: the cluster score if set, then the
// aggregated score, then the raw global relevancy.
func (b *Base) Upvotes() float64 {
	if b.ClusterGlobalRelevancyScore != nil {
		return *b.ClusterGlobalRelevancyScore
	}
	if b.GlobalRelevancyScore != nil {
		return *b.GlobalRelevancyScore
	}
	return b.GlobalRelevancy
}

// Community is a node in the community hierarchy. Two communities are the
// same only if they are the same pointer.
type Community struct {
	Base
	Level    int    `json:"level"`
	IsActive bool   `json:"is_active"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Status   string `json:"status,omitempty"`
}

// Community statuses excluded from name searches.
const (
	StatusDuplicate = "duplicate"
	StatusDeleted   = "deleted"
	StatusHomonym   = "homonym"
)

// Issue is a discussion issue opened in a community.
type Issue struct {
	Base
	Community *Community `json:"-"`
	DateEnd   time.Time  `json:"date_end"`
	Official  bool       `json:"official"`
	Tag       string     `json:"tag"`
	Title     string     `json:"title"`
}

// Proposition is a proposal attached to an issue.
type Proposition struct {
	Base
	Community *Community `json:"-"`
	Issue     *Issue     `json:"-"`
	Content1  string     `json:"content1"`
	Content2  string     `json:"content2"`
}

// Comment is a comment on an issue. Root is nil for top-level comments.
type Comment struct {
	Base
	BadgeTopDown bool       `json:"badge_top_down"`
	BadgeImpact  bool       `json:"badge_impact"`
	Root         *Comment   `json:"-"`
	Comments     []*Comment `json:"-"`
	Issue        *Issue     `json:"-"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
}

// CommunityFollowing links a user to a community they follow.
type CommunityFollowing struct {
	Base
	Community  *Community `json:"-"`
	User       *User      `json:"-"`
	AdminLevel int        `json:"admin_level"`
}

// IssueFollowing links a user to an issue they follow.
type IssueFollowing struct {
	Base
	Issue      *Issue `json:"-"`
	User       *User  `json:"-"`
	AdminLevel int    `json:"admin_level"`
}

// User is a user profile.
type User struct {
	Base
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Event is a dated event organised in a community.
type Event struct {
	Base
	Community *Community `json:"-"`
	Name      string     `json:"name"`
	DateBegin time.Time  `json:"date_begin"`
}

func (*Issue) Kind() Kind              { return KindIssue }
func (*Proposition) Kind() Kind        { return KindProposition }
func (*Comment) Kind() Kind            { return KindComment }
func (*Community) Kind() Kind          { return KindCommunity }
func (*CommunityFollowing) Kind() Kind { return KindCommunityFollowing }
func (*IssueFollowing) Kind() Kind     { return KindIssueFollowing }
func (*User) Kind() Kind               { return KindUser }
func (*Event) Kind() Kind              { return KindEvent }

func (*Issue) sealed()              {}
func (*Proposition) sealed()        {}
func (*Comment) sealed()            {}
func (*Community) sealed()          {}
func (*CommunityFollowing) sealed() {}
func (*IssueFollowing) sealed()     {}
func (*User) sealed()               {}
func (*Event) sealed()              {}

// IsOpen reports whether the issue is still open at now.
func (i *Issue) IsOpen(now time.Time) bool {
	return i.DateEnd.After(now)
}

// IsRoot reports whether the comment is top-level.
func (c *Comment) IsRoot() bool {
	return c.Root == nil
}

package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Format is a document encoding.
type Format string

// Supported document formats.
const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ErrUnsupportedFormat is returned for an unknown document format.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document is the flat wire form of a content item. Relations are carried as
// IDs and resolved through an IdentityMap.
type Document struct {
	Kind                        Kind      `json:"kind" cbor:"kind"`
	ID                          string    `json:"id" cbor:"id"`
	CreatedAt                   time.Time `json:"created_at" cbor:"created_at"`
	GlobalRelevancy             float64   `json:"global_relevancy" cbor:"global_relevancy"`
	GlobalRelevancyScore        *float64  `json:"global_relevancy_score,omitempty" cbor:"global_relevancy_score,omitempty"`
	ClusterGlobalRelevancyScore *float64  `json:"cluster_global_relevancy_score,omitempty" cbor:"cluster_global_relevancy_score,omitempty"`

	CommunityID string `json:"community_id,omitempty" cbor:"community_id,omitempty"`
	IssueID     string `json:"issue_id,omitempty" cbor:"issue_id,omitempty"`
	RootID      string `json:"root_id,omitempty" cbor:"root_id,omitempty"`
	UserID      string `json:"user_id,omitempty" cbor:"user_id,omitempty"`

	Level    int    `json:"level,omitempty" cbor:"level,omitempty"`
	IsActive bool   `json:"is_active,omitempty" cbor:"is_active,omitempty"`
	URL      string `json:"url,omitempty" cbor:"url,omitempty"`
	Name     string `json:"name,omitempty" cbor:"name,omitempty"`
	Status   string `json:"status,omitempty" cbor:"status,omitempty"`

	DateEnd  time.Time `json:"date_end,omitempty" cbor:"date_end,omitempty"`
	Official bool      `json:"official,omitempty" cbor:"official,omitempty"`
	Tag      string    `json:"tag,omitempty" cbor:"tag,omitempty"`
	Title    string    `json:"title,omitempty" cbor:"title,omitempty"`

	Content  string `json:"content,omitempty" cbor:"content,omitempty"`
	Content1 string `json:"content1,omitempty" cbor:"content1,omitempty"`
	Content2 string `json:"content2,omitempty" cbor:"content2,omitempty"`

	BadgeTopDown bool `json:"badge_top_down,omitempty" cbor:"badge_top_down,omitempty"`
	BadgeImpact  bool `json:"badge_impact,omitempty" cbor:"badge_impact,omitempty"`

	AdminLevel int `json:"admin_level,omitempty" cbor:"admin_level,omitempty"`

	Username  string `json:"username,omitempty" cbor:"username,omitempty"`
	FirstName string `json:"first_name,omitempty" cbor:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" cbor:"last_name,omitempty"`

	DateBegin time.Time `json:"date_begin,omitempty" cbor:"date_begin,omitempty"`
}

// Decode reads a list of documents in the given format and materializes them
// into items. The returned identity map can be used to look up communities
// referenced by the documents.
func Decode(r io.Reader, format Format) ([]Item, *IdentityMap, error) {
	var docs []Document
	switch format {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&docs); err != nil {
			return nil, nil, fmt.Errorf("failed to decode json documents: %w", err)
		}
	case FormatCBOR:
		if err := cbor.NewDecoder(r).Decode(&docs); err != nil {
			return nil, nil, fmt.Errorf("failed to decode cbor documents: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	im := NewIdentityMap()
	items := make([]Item, 0, len(docs))
	for i := range docs {
		item, err := im.Materialize(docs[i])
		if err != nil {
			return nil, nil, fmt.Errorf("document %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, im, nil
}

// IdentityMap guarantees one in-memory instance per (kind, ID) so that
// relations resolved from different documents point at the same value.
type IdentityMap struct {
	communities map[string]*Community
	issues      map[string]*Issue
	comments    map[string]*Comment
	users       map[string]*User
}

// NewIdentityMap creates an empty identity map.
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		communities: make(map[string]*Community),
		issues:      make(map[string]*Issue),
		comments:    make(map[string]*Comment),
		users:       make(map[string]*User),
	}
}

// Community returns the canonical community for id, creating a stub if it
// has not been seen yet. An empty id yields nil.
func (m *IdentityMap) Community(id string) *Community {
	if id == "" {
		return nil
	}
	c, ok := m.communities[id]
	if !ok {
		c = &Community{Base: Base{ID: id}}
		m.communities[id] = c
	}
	return c
}

// LookupCommunity returns the community for id without creating a stub.
func (m *IdentityMap) LookupCommunity(id string) (*Community, bool) {
	c, ok := m.communities[id]
	return c, ok
}

// Issue returns the canonical issue for id.
func (m *IdentityMap) Issue(id string) *Issue {
	if id == "" {
		return nil
	}
	i, ok := m.issues[id]
	if !ok {
		i = &Issue{Base: Base{ID: id}}
		m.issues[id] = i
	}
	return i
}

// Comment returns the canonical comment for id.
func (m *IdentityMap) Comment(id string) *Comment {
	if id == "" {
		return nil
	}
	c, ok := m.comments[id]
	if !ok {
		c = &Comment{Base: Base{ID: id}}
		m.comments[id] = c
	}
	return c
}

// User returns the canonical user for id.
func (m *IdentityMap) User(id string) *User {
	if id == "" {
		return nil
	}
	u, ok := m.users[id]
	if !ok {
		u = &User{Base: Base{ID: id}}
		m.users[id] = u
	}
	return u
}

// Materialize turns a document into an item. Communities, issues, comments
// and users fill the canonical instance in place so earlier references see
// the loaded fields.
func (m *IdentityMap) Materialize(doc Document) (Item, error) {
	base := Base{
		ID:                          doc.ID,
		CreatedAt:                   doc.CreatedAt,
		GlobalRelevancy:             doc.GlobalRelevancy,
		GlobalRelevancyScore:        doc.GlobalRelevancyScore,
		ClusterGlobalRelevancyScore: doc.ClusterGlobalRelevancyScore,
	}

	switch doc.Kind {
	case KindCommunity:
		c := m.Community(doc.ID)
		if c == nil {
			c = &Community{}
		}
		c.Base = base
		c.Level = doc.Level
		c.IsActive = doc.IsActive
		c.URL = doc.URL
		c.Name = doc.Name
		c.Status = doc.Status
		return c, nil
	case KindIssue:
		i := m.Issue(doc.ID)
		if i == nil {
			i = &Issue{}
		}
		i.Base = base
		i.Community = m.Community(doc.CommunityID)
		i.DateEnd = doc.DateEnd
		i.Official = doc.Official
		i.Tag = doc.Tag
		i.Title = doc.Title
		return i, nil
	case KindProposition:
		return &Proposition{
			Base:      base,
			Community: m.Community(doc.CommunityID),
			Issue:     m.Issue(doc.IssueID),
			Content1:  doc.Content1,
			Content2:  doc.Content2,
		}, nil
	case KindComment:
		c := m.Comment(doc.ID)
		if c == nil {
			c = &Comment{}
		}
		c.Base = base
		c.BadgeTopDown = doc.BadgeTopDown
		c.BadgeImpact = doc.BadgeImpact
		c.Issue = m.Issue(doc.IssueID)
		c.Title = doc.Title
		c.Content = doc.Content
		if root := m.Comment(doc.RootID); root != nil {
			c.Root = root
			root.Comments = append(root.Comments, c)
		}
		return c, nil
	case KindCommunityFollowing:
		return &CommunityFollowing{
			Base:       base,
			Community:  m.Community(doc.CommunityID),
			User:       m.User(doc.UserID),
			AdminLevel: doc.AdminLevel,
		}, nil
	case KindIssueFollowing:
		return &IssueFollowing{
			Base:       base,
			Issue:      m.Issue(doc.IssueID),
			User:       m.User(doc.UserID),
			AdminLevel: doc.AdminLevel,
		}, nil
	case KindUser:
		u := m.User(doc.ID)
		if u == nil {
			u = &User{}
		}
		u.Base = base
		u.Username = doc.Username
		u.FirstName = doc.FirstName
		u.LastName = doc.LastName
		return u, nil
	case KindEvent:
		return &Event{
			Base:      base,
			Community: m.Community(doc.CommunityID),
			Name:      doc.Name,
			DateBegin: doc.DateBegin,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
}

// ToDocument flattens an item into its wire form. Relations are replaced by
// the IDs of the related items.
func ToDocument(item Item) Document {
	b := item.Meta()
	doc := Document{
		Kind:                        item.Kind(),
		ID:                          b.ID,
		CreatedAt:                   b.CreatedAt,
		GlobalRelevancy:             b.GlobalRelevancy,
		GlobalRelevancyScore:        b.GlobalRelevancyScore,
		ClusterGlobalRelevancyScore: b.ClusterGlobalRelevancyScore,
	}

	switch v := item.(type) {
	case *Community:
		doc.Level = v.Level
		doc.IsActive = v.IsActive
		doc.URL = v.URL
		doc.Name = v.Name
		doc.Status = v.Status
	case *Issue:
		doc.CommunityID = idOf(v.Community)
		doc.DateEnd = v.DateEnd
		doc.Official = v.Official
		doc.Tag = v.Tag
		doc.Title = v.Title
	case *Proposition:
		doc.CommunityID = idOf(v.Community)
		doc.IssueID = idOf(v.Issue)
		doc.Content1 = v.Content1
		doc.Content2 = v.Content2
	case *Comment:
		doc.IssueID = idOf(v.Issue)
		doc.RootID = idOf(v.Root)
		doc.BadgeTopDown = v.BadgeTopDown
		doc.BadgeImpact = v.BadgeImpact
		doc.Title = v.Title
		doc.Content = v.Content
	case *CommunityFollowing:
		doc.CommunityID = idOf(v.Community)
		doc.UserID = idOf(v.User)
		doc.AdminLevel = v.AdminLevel
	case *IssueFollowing:
		doc.IssueID = idOf(v.Issue)
		doc.UserID = idOf(v.User)
		doc.AdminLevel = v.AdminLevel
	case *User:
		doc.Username = v.Username
		doc.FirstName = v.FirstName
		doc.LastName = v.LastName
	case *Event:
		doc.CommunityID = idOf(v.Community)
		doc.Name = v.Name
		doc.DateBegin = v.DateBegin
	}
	return doc
}

// idOf returns the ID of a related item, or "" when the relation is unset.
func idOf(item Item) string {
	if isNil(item) {
		return ""
	}
	return item.Meta().ID
}

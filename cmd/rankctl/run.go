package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/onnwee/townhall/internal/content"
	"github.com/onnwee/townhall/internal/ranking"
	"github.com/onnwee/townhall/internal/store"
	"github.com/onnwee/townhall/internal/tracking"
)

// Item sources.
const (
	sourceDocuments = "documents"
	sourcePostgres  = "postgres"
)

// Commands.
const (
	commandRelevancy = "relevancy"
	commandNew       = "new"
	commandBest      = "best"
	commandMatch     = "match"
	commandQuality   = "quality"
)

var (
	errUnknownCommand   = errors.New("unknown command")
	errUnknownSource    = errors.New("unknown source")
	errUnknownCommunity = errors.New("reference community not found")
)

type options struct {
	Command     string
	Input       string
	Format      content.Format
	Source      string
	Kind        content.Kind
	Limit       int
	CommunityID string
	Locale      string
	Order       string
	Viewer      string
	Query       string
	RecordSeen  bool
	MetricsOut  string
}

// request is one ranking call with its items already loaded.
type request struct {
	Items     []content.Item
	Community *content.Community
	Locale    string
	Order     string
	Viewer    string
	Query     string
}

type result struct {
	ID     string       `json:"id"`
	Kind   content.Kind `json:"kind"`
	Points *int         `json:"points,omitempty"`
}

type output struct {
	Command string   `json:"command"`
	Count   int      `json:"count"`
	Results []result `json:"results"`
}

// load reads the items and resolves the reference community.
func load(ctx context.Context, opts options, stdin io.Reader, repo store.Repository) (request, error) {
	req := request{
		Locale: opts.Locale,
		Order:  opts.Order,
		Viewer: opts.Viewer,
		Query:  opts.Query,
	}

	var err error
	switch opts.Source {
	case sourceDocuments, "":
		req.Items, req.Community, err = loadDocuments(opts, stdin)
	case sourcePostgres:
		req.Items, req.Community, err = loadFromStore(ctx, repo, opts)
	default:
		err = fmt.Errorf("%w: %q", errUnknownSource, opts.Source)
	}
	return req, err
}

func loadDocuments(opts options, stdin io.Reader) ([]content.Item, *content.Community, error) {
	r := stdin
	if opts.Input != "" && opts.Input != "-" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	items, im, err := content.Decode(r, opts.Format)
	if err != nil {
		return nil, nil, err
	}
	if opts.CommunityID == "" {
		return items, nil, nil
	}
	community, ok := im.LookupCommunity(opts.CommunityID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", errUnknownCommunity, opts.CommunityID)
	}
	return items, community, nil
}

// replyPageSize bounds each query for replies of loaded comments.
const replyPageSize = 500

// loadFromStore reads items of opts.Kind, by name when a query is set, then
// fills in the issues and communities they reference and the replies of the
// loaded comments. The reference community is the same instance the items
// point at whenever they share it.
func loadFromStore(ctx context.Context, repo store.Repository, opts options) ([]content.Item, *content.Community, error) {
	q := store.Query{Kind: opts.Kind, Limit: opts.Limit}

	var items []content.Item
	var err error
	if opts.Query != "" {
		items, err = repo.FindByNameLike(ctx, opts.Query, q)
	} else {
		q.OrderBy = []store.Sort{{Field: "created_at", Desc: true}}
		items, err = repo.Find(ctx, q)
	}
	if err != nil {
		return nil, nil, err
	}

	refs := make(map[string]*content.Community)
	issues := make(map[string]*content.Issue)
	for _, item := range items {
		if c := content.CommunityOf(item); c != nil {
			refs[c.ID] = c
		}
		switch v := item.(type) {
		case *content.Community:
			refs[v.ID] = v
		case *content.Issue:
			issues[v.ID] = v
		}
		if issue, ok := content.ParentIssue(item); ok && issue != nil {
			issues[issue.ID] = issue
		}
	}

	if err := hydrateIssues(ctx, repo, issues); err != nil {
		return nil, nil, err
	}
	for _, issue := range issues {
		if issue.Community == nil {
			continue
		}
		if shared, ok := refs[issue.Community.ID]; ok {
			issue.Community = shared
		} else {
			refs[issue.Community.ID] = issue.Community
		}
	}

	if err := loadReplies(ctx, repo, items); err != nil {
		return nil, nil, err
	}

	if opts.CommunityID != "" {
		if _, ok := refs[opts.CommunityID]; !ok {
			refs[opts.CommunityID] = &content.Community{Base: content.Base{ID: opts.CommunityID}}
		}
	}

	if err := hydrateCommunities(ctx, repo, refs); err != nil {
		return nil, nil, err
	}

	if opts.CommunityID == "" {
		return items, nil, nil
	}
	community := refs[opts.CommunityID]
	if community.CreatedAt.IsZero() {
		return nil, nil, fmt.Errorf("%w: %s", errUnknownCommunity, opts.CommunityID)
	}
	return items, community, nil
}

// hydrateIssues loads the stored fields of every referenced issue that is
// still a bare reference into the shared instances, in one query.
func hydrateIssues(ctx context.Context, repo store.Repository, refs map[string]*content.Issue) error {
	var ids []any
	for id, issue := range refs {
		if issue.CreatedAt.IsZero() {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	loaded, err := repo.Find(ctx, store.Query{
		Kind:    content.KindIssue,
		Filters: []store.Filter{store.In("id", ids...)},
		Limit:   len(ids),
	})
	if err != nil {
		return fmt.Errorf("failed to load issues: %w", err)
	}
	for _, item := range loaded {
		issue := item.(*content.Issue)
		if ref := refs[issue.ID]; ref != issue {
			*ref = *issue
		}
	}
	return nil
}

// loadReplies attaches to every loaded comment the replies that were not
// part of the same page, so reply counts cover the whole thread.
func loadReplies(ctx context.Context, repo store.Repository, items []content.Item) error {
	roots := make(map[string]*content.Comment)
	seen := make(map[string]bool)
	var ids []any
	for _, item := range items {
		c, ok := item.(*content.Comment)
		if !ok {
			continue
		}
		roots[c.ID] = c
		ids = append(ids, c.ID)
		for _, reply := range c.Comments {
			seen[reply.ID] = true
		}
	}
	if len(ids) == 0 {
		return nil
	}

	for offset := 0; ; offset += replyPageSize {
		page, err := repo.Find(ctx, store.Query{
			Kind:    content.KindComment,
			Filters: []store.Filter{store.In("root_id", ids...)},
			OrderBy: []store.Sort{{Field: "id"}},
			Limit:   replyPageSize,
			Offset:  offset,
		})
		if err != nil {
			return fmt.Errorf("failed to load replies: %w", err)
		}
		for _, item := range page {
			reply := item.(*content.Comment)
			if seen[reply.ID] || reply.Root == nil {
				continue
			}
			root, ok := roots[reply.Root.ID]
			if !ok {
				continue
			}
			seen[reply.ID] = true
			reply.Root = root
			root.Comments = append(root.Comments, reply)
		}
		if len(page) < replyPageSize {
			return nil
		}
	}
}

// hydrateCommunities loads the stored fields of every referenced community
// into the shared instances, in one query.
func hydrateCommunities(ctx context.Context, repo store.Repository, refs map[string]*content.Community) error {
	if len(refs) == 0 {
		return nil
	}
	ids := make([]any, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}

	loaded, err := repo.Find(ctx, store.Query{
		Kind:    content.KindCommunity,
		Filters: []store.Filter{store.In("id", ids...)},
		Limit:   len(ids),
	})
	if err != nil {
		return fmt.Errorf("failed to load communities: %w", err)
	}
	for _, item := range loaded {
		c := item.(*content.Community)
		if ref := refs[c.ID]; ref != c {
			*ref = *c
		}
	}
	return nil
}

// run executes one command against the service.
func run(ctx context.Context, svc *ranking.Service, command string, req request) (output, error) {
	out := output{Command: command}

	var ranked []ranking.Ranked
	var err error
	switch command {
	case commandRelevancy:
		ranked, err = svc.RankContentsByRelevancy(ctx, req.Items, req.Order)
	case commandNew:
		ranked, err = svc.RankContentsNew(ctx, req.Items, req.Community, req.Locale, req.Order, req.Viewer)
	case commandBest:
		ranked, err = svc.RankContentsBest(ctx, req.Items, req.Community, req.Locale, req.Order)
	case commandMatch:
		var sorted []content.Item
		sorted, err = svc.NameLikePerfectMatchesSorting(ctx, req.Items, req.Query)
		if err != nil {
			return out, err
		}
		for _, item := range sorted {
			out.Results = append(out.Results, result{ID: item.Meta().ID, Kind: item.Kind()})
		}
	case commandQuality:
		for _, item := range req.Items {
			quality, err := svc.GetContentQuality(item, req.Community)
			if err != nil {
				return out, err
			}
			out.Results = append(out.Results, result{ID: item.Meta().ID, Kind: item.Kind(), Points: &quality})
		}
	default:
		return out, fmt.Errorf("%w: %q", errUnknownCommand, command)
	}
	if err != nil {
		return out, err
	}

	for _, r := range ranked {
		points := r.Points
		out.Results = append(out.Results, result{ID: r.Item.Meta().ID, Kind: r.Item.Kind(), Points: &points})
	}
	if out.Results == nil {
		out.Results = []result{}
	}
	out.Count = len(out.Results)
	return out, nil
}

// recordSeen marks every ranked item as seen by viewer.
func recordSeen(ctx context.Context, recorder tracking.Recorder, viewer string, results []result) error {
	if viewer == "" {
		return nil
	}
	for _, r := range results {
		if err := recorder.Record(ctx, viewer, tracking.EventSeen, r.ID); err != nil {
			return err
		}
	}
	return nil
}

func writeOutput(w io.Writer, out output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

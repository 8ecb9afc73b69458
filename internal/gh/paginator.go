package gh

import (
	"context"
	"fmt"

	"github.com/h0rv/roadmap/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is the largest page GitHub serves for project items.
	DefaultPageSize = 100
	// DefaultMaxItems bounds how many items one board fetch may accumulate.
	DefaultMaxItems = 500
)

// Paginator follows the items cursor of a project until the upstream reports
// no further pages or the item cap is hit. Pages are fetched strictly in
// sequence since each cursor comes from the previous response.
type Paginator struct {
	client    Querier
	ownerType OwnerType
	pageSize  int
	maxItems  int
	logger    *zap.Logger
}

// PaginatorOption customizes a Paginator.
type PaginatorOption func(*Paginator)

// WithOwnerType selects the organization or user query root.
func WithOwnerType(t OwnerType) PaginatorOption {
	return func(p *Paginator) {
		if t != "" {
			p.ownerType = t
		}
	}
}

// WithPageSize sets the number of items requested per page.
func WithPageSize(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithMaxItems sets the item cap.
func WithMaxItems(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.maxItems = n
		}
	}
}

// WithPaginatorLogger sets the logger for truncation warnings and page tracing.
func WithPaginatorLogger(l *zap.Logger) PaginatorOption {
	return func(p *Paginator) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPaginator creates a paginator on top of a Querier.
func NewPaginator(client Querier, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		client:    client,
		ownerType: OwnerTypeOrganization,
		pageSize:  DefaultPageSize,
		maxItems:  DefaultMaxItems,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchAll fetches the project envelope and every item page for owner/number.
//
// The first page supplies project and field metadata; later pages only add
// items. Once maxItems items are held the loop stops, the list is cut to
// exactly maxItems and a truncation warning is logged. Any query error
// aborts the loop and is returned wrapped (errors.As still matches the
// typed domain error). A board that cannot be resolved yields a payload
// with a nil Project.
func (p *Paginator) FetchAll(ctx context.Context, owner string, number int) (*RawPayload, error) {
	payload := &RawPayload{Owner: owner, Number: number}
	cursor := ""

	for page := 1; ; page++ {
		first := p.pageSize
		if remaining := p.maxItems - p.count(payload); remaining < first {
			first = remaining
		}

		vars := map[string]any{
			"owner":  owner,
			"number": number,
			"first":  first,
			"after":  nil,
		}
		if cursor != "" {
			vars["after"] = cursor
		}

		document := ProjectQuery(p.ownerType)
		if page > 1 {
			document = ItemsQuery(p.ownerType)
		}

		resp, err := p.client.Query(ctx, document, vars)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d of project #%d: %w", page, number, err)
		}

		project, err := decodeProject(resp.Data, p.ownerType)
		if err != nil {
			return nil, &domain.UpstreamError{Message: err.Error(), Err: err}
		}
		if project == nil {
			if page == 1 {
				return payload, nil
			}
			return nil, &domain.UpstreamError{
				Message: fmt.Sprintf("project #%d disappeared while fetching page %d", number, page),
			}
		}

		p.logger.Debug("fetched project page",
			zap.Int("page", page),
			zap.Int("items", len(project.Items.Nodes)),
			zap.Bool("hasNextPage", project.Items.PageInfo.HasNextPage),
			zap.Int("rateLimitRemaining", resp.RateLimit.Remaining),
			zap.Time("rateLimitReset", resp.RateLimit.ResetAt),
		)

		if page == 1 {
			envelope := *project
			envelope.Items.Nodes = make([]RawItem, 0, len(project.Items.Nodes))
			payload.Project = &envelope
		}
		payload.Project.Items.Nodes = append(payload.Project.Items.Nodes, project.Items.Nodes...)
		payload.Project.Items.PageInfo = project.Items.PageInfo

		info := project.Items.PageInfo
		if p.count(payload) >= p.maxItems {
			fetched := p.count(payload)
			if fetched > p.maxItems || info.HasNextPage {
				payload.Project.Items.Nodes = payload.Project.Items.Nodes[:p.maxItems]
				payload.Truncated = true
				p.logger.Warn("project item cap reached, truncating board",
					zap.String("owner", owner),
					zap.Int("number", number),
					zap.Int("fetched", fetched),
					zap.Int("limit", p.maxItems),
					zap.Bool("hasNextPage", info.HasNextPage),
				)
			}
			return payload, nil
		}

		if !info.HasNextPage || info.EndCursor == "" {
			return payload, nil
		}
		cursor = info.EndCursor
	}
}

func (p *Paginator) count(payload *RawPayload) int {
	if payload.Project == nil {
		return 0
	}
	return len(payload.Project.Items.Nodes)
}

package normalize

import (
	"context"
	"fmt"
	"time"

	"github.com/h0rv/roadmap/internal/domain"
	"github.com/h0rv/roadmap/internal/gh"
	"go.uber.org/zap"
)

// Fetcher retrieves the accumulated raw payload of one board.
type Fetcher interface {
	FetchAll(ctx context.Context, owner string, number int) (*gh.RawPayload, error)
}

// Pipeline runs fetch -> normalize -> group for a single configured board.
// It satisfies store.Loader.
type Pipeline struct {
	fetcher Fetcher
	owner   string
	number  int
	clock   func() time.Time
	logger  *zap.Logger
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock sets the clock used to stamp LastUpdated.
func WithClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline for owner's project number.
func NewPipeline(fetcher Fetcher, owner string, number int, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetcher: fetcher,
		owner:   owner,
		number:  number,
		clock:   func() time.Time { return time.Now().UTC() },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load fetches and normalizes the board. Typed upstream errors pass through
// with errors.As intact.
func (p *Pipeline) Load(ctx context.Context) (*domain.NormalizedProjectData, error) {
	raw, err := p.fetcher.FetchAll(ctx, p.owner, p.number)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/#%d: %w", p.owner, p.number, err)
	}

	data, err := Normalize(raw, p.clock())
	if err != nil {
		return nil, err
	}

	p.logger.Debug("normalized board",
		zap.String("project", data.Project.Title),
		zap.String("groupBy", data.Project.GroupByField),
		zap.Int("items", len(data.Items)),
		zap.Strings("columns", data.Columns.Names()),
	)
	return data, nil
}

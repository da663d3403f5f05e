package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"incidentwatch/corroboration"
	"incidentwatch/deduplication"
	"incidentwatch/extraction"
	"incidentwatch/geocoding"
	"incidentwatch/logging"
	"incidentwatch/storage"
	"incidentwatch/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFetchConcurrency = 4
	DefaultAnalysisWindow   = 24 * time.Hour
)

// ArticleSource supplies articles for a refresh cycle.
type ArticleSource interface {
	Name() string
	Fetch(ctx context.Context) ([]*types.Article, error)
}

// Publisher forwards persisted incidents and coordination groups downstream.
type Publisher interface {
	PublishIncidents(incidents []*types.Incident) types.BatchWriteResult
	PublishGroups(groups []types.CoordinationGroup) types.BatchWriteResult
}

// ReportArchive keeps a copy of each run report.
type ReportArchive interface {
	WriteReport(ctx context.Context, runID string, at time.Time, report any) (string, error)
}

// Config wires the stages. Deduplicator, Extractor and Engine default to
// their zero-config versions; the remaining collaborators are optional.
type Config struct {
	Deduplicator *deduplication.Deduplicator
	Extractor    *extraction.Extractor
	Resolver     *geocoding.Resolver
	Engine       *corroboration.Engine

	Store     storage.Store
	Publisher Publisher
	Archive   ReportArchive
	Sources   []ArticleSource

	MergeWindow      time.Duration
	AnalysisWindow   time.Duration
	FetchConcurrency int
	Now              func() time.Time
}

// Pipeline runs fetch, dedup, extract, geocode, persist and corroborate as
// one synchronous batch.
type Pipeline struct {
	cfg Config
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Deduplicator == nil {
		d, err := deduplication.NewDeduplicator(deduplication.DeduplicatorConfig{Now: cfg.Now})
		if err != nil {
			return nil, fmt.Errorf("failed to create deduplicator: %w", err)
		}
		cfg.Deduplicator = d
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extraction.NewExtractor(nil, nil, extraction.Config{Now: cfg.Now})
	}
	if cfg.Engine == nil {
		cfg.Engine = corroboration.NewEngine(corroboration.Config{})
	}
	if cfg.MergeWindow <= 0 {
		cfg.MergeWindow = extraction.MergeWindow
	}
	if cfg.AnalysisWindow <= 0 {
		cfg.AnalysisWindow = DefaultAnalysisWindow
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg}, nil
}

// Deduplicator returns the configured deduplicator.
func (p *Pipeline) Deduplicator() *deduplication.Deduplicator { return p.cfg.Deduplicator }

// Extractor returns the configured extractor.
func (p *Pipeline) Extractor() *extraction.Extractor { return p.cfg.Extractor }

// Engine returns the configured corroboration engine.
func (p *Pipeline) Engine() *corroboration.Engine { return p.cfg.Engine }

// Store returns the configured store, or nil.
func (p *Pipeline) Store() storage.Store { return p.cfg.Store }

// RunSources fetches every source in parallel and runs the batch. A failing
// source is recorded in the report and the others proceed.
func (p *Pipeline) RunSources(ctx context.Context) (*Report, error) {
	if len(p.cfg.Sources) == 0 {
		return nil, errors.New("no article sources configured")
	}
	fetched := make([][]*types.Article, len(p.cfg.Sources))
	errs := make([]error, len(p.cfg.Sources))

	var g errgroup.Group
	g.SetLimit(p.cfg.FetchConcurrency)
	for i, src := range p.cfg.Sources {
		g.Go(func() error {
			articles, err := src.Fetch(ctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			fetched[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var articles []*types.Article
	sourceErrors := make(map[string]string)
	for i, src := range p.cfg.Sources {
		if errs[i] != nil {
			logging.Warn("source fetch failed", "source", src.Name(), "err", errs[i])
			sourceErrors[src.Name()] = errs[i].Error()
			continue
		}
		logging.Info("fetched source", "source", src.Name(), "articles", len(fetched[i]))
		articles = append(articles, fetched[i]...)
	}
	if len(sourceErrors) == len(p.cfg.Sources) {
		return nil, fmt.Errorf("all %d sources failed", len(sourceErrors))
	}

	report, err := p.Run(ctx, articles)
	if report != nil && len(sourceErrors) > 0 {
		report.SourceErrors = sourceErrors
	}
	return report, err
}

// Run processes one batch of articles end to end. Per-item failures are
// reported, not returned; the error is non-nil only when ctx ends first.
func (p *Pipeline) Run(ctx context.Context, articles []*types.Article) (*Report, error) {
	started := p.cfg.Now()
	report := &Report{RunID: uuid.NewString(), StartedAt: started, Fetched: len(articles)}

	// 1. dedup against the stored recency window
	window := p.recentArticles(ctx, started.Add(-p.cfg.Deduplicator.Horizon()))
	dedup := p.cfg.Deduplicator.ProcessBatch(ctx, articles, window)
	report.Unique, report.Exact, report.Fuzzy, report.DedupErrors = len(dedup.Unique), dedup.Exact, dedup.Fuzzy, dedup.Errors
	report.Results = dedup.Results
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if p.cfg.Store != nil && len(dedup.Unique) > 0 {
		report.ArticleWrites = p.cfg.Store.SaveArticles(ctx, dedup.Unique)
	}

	// 2. extraction
	candidates, failed := p.cfg.Extractor.ExtractBatch(dedup.Unique, p.cfg.MergeWindow)
	report.ExtractionFailed = failed
	report.Candidates = len(candidates)

	// 3. geocoding
	if p.cfg.Resolver != nil && len(candidates) > 0 {
		report.Geocoding = p.cfg.Resolver.ResolveIncidents(ctx, candidates)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	var persistable []*types.Incident
	for _, inc := range candidates {
		if p.cfg.Extractor.Persistable(inc) {
			persistable = append(persistable, inc)
		} else {
			report.Review = append(report.Review, inc)
		}
	}

	// 4. corroboration over the rolling window, new incidents included
	pool := p.corroborationPool(ctx, started.Add(-p.cfg.AnalysisWindow), persistable)
	analysis := p.cfg.Engine.Analyze(pool)
	report.Corroboration = analysis.Stats
	report.Groups = analysis.Groups

	changed := changedIncidents(pool, analysis.Incidents, persistable)
	report.Incidents = changed

	// 5. persist and publish
	if p.cfg.Store != nil {
		if len(changed) > 0 {
			report.IncidentWrites = p.cfg.Store.SaveIncidents(ctx, changed)
		}
		if err := p.cfg.Store.SaveGroups(ctx, analysis.Groups); err != nil {
			logging.Warn("failed to store coordination groups", "err", err)
		}
	}
	if p.cfg.Publisher != nil {
		if len(changed) > 0 {
			report.Published.Merge(p.cfg.Publisher.PublishIncidents(changed))
		}
		if len(analysis.Groups) > 0 {
			report.Published.Merge(p.cfg.Publisher.PublishGroups(analysis.Groups))
		}
	}

	report.FinishedAt = p.cfg.Now()
	report.Duration = report.FinishedAt.Sub(started)
	if p.cfg.Archive != nil {
		key, err := p.cfg.Archive.WriteReport(ctx, report.RunID, started, report)
		if err != nil {
			logging.Warn("failed to archive run report", "run", report.RunID, "err", err)
		} else {
			report.ArchiveKey = key
		}
	}

	report.log()
	return report, nil
}

func (p *Pipeline) recentArticles(ctx context.Context, since time.Time) []*types.Article {
	if p.cfg.Store == nil {
		return nil
	}
	window, err := p.cfg.Store.RecentArticles(ctx, since)
	if err != nil {
		logging.Warn("failed to load recency window, deduplicating within the batch only", "err", err)
		return nil
	}
	return window
}

// corroborationPool returns stored recent incidents with fresh ones
// replacing stored copies of the same id.
func (p *Pipeline) corroborationPool(ctx context.Context, since time.Time, fresh []*types.Incident) []*types.Incident {
	var stored []*types.Incident
	if p.cfg.Store != nil {
		var err error
		stored, err = p.cfg.Store.RecentIncidents(ctx, since)
		if err != nil {
			logging.Warn("failed to load recent incidents, analyzing this batch only", "err", err)
		}
	}
	freshIDs := make(map[string]bool, len(fresh))
	for _, inc := range fresh {
		freshIDs[inc.ID] = true
	}
	pool := make([]*types.Incident, 0, len(stored)+len(fresh))
	for _, inc := range stored {
		if !freshIDs[inc.ID] {
			pool = append(pool, inc)
		}
	}
	return append(pool, fresh...)
}

// changedIncidents returns the analyzed copies of fresh incidents and of
// stored incidents whose score, verification or related articles changed.
func changedIncidents(before, after []*types.Incident, fresh []*types.Incident) []*types.Incident {
	freshIDs := make(map[string]bool, len(fresh))
	for _, inc := range fresh {
		freshIDs[inc.ID] = true
	}
	previous := make(map[string]*types.Incident, len(before))
	for _, inc := range before {
		previous[inc.ID] = inc
	}
	var out []*types.Incident
	for _, inc := range after {
		old, ok := previous[inc.ID]
		if freshIDs[inc.ID] || !ok || inc.Confidence != old.Confidence || inc.Verified != old.Verified ||
			len(inc.RelatedArticles) != len(old.RelatedArticles) {
			out = append(out, inc)
		}
	}
	return out
}

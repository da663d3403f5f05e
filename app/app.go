// Package app assembles the pipeline and its backends from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"incidentwatch/config"
	"incidentwatch/corroboration"
	"incidentwatch/deduplication"
	"incidentwatch/extraction"
	"incidentwatch/fingerprint"
	"incidentwatch/geocoding"
	"incidentwatch/logging"
	"incidentwatch/pipeline"
	"incidentwatch/rssfeeds"
	"incidentwatch/shared/kafka"
	"incidentwatch/storage"
	"incidentwatch/types"
)

// App owns the pipeline and the connections behind it.
type App struct {
	Config      config.Config
	Pipeline    *pipeline.Pipeline
	SourceNames []string

	store    *storage.RedisStore
	producer *kafka.Producer
}

// Build connects every configured backend and wires the pipeline. Redis,
// Kafka and S3 are optional: an unset address disables each one.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	hasher := fingerprint.NewHasher(fingerprint.Config{
		ShingleWidth: cfg.Dedup.ShingleWidth,
		NumHashes:    cfg.Dedup.SignatureLength,
		MinTokens:    cfg.Dedup.MinTokens,
	})

	pcfg := pipeline.Config{
		MergeWindow:    cfg.Extraction.MergeWindow,
		AnalysisWindow: cfg.Corroboration.AnalysisWindow,
	}

	dcfg := deduplication.DeduplicatorConfig{
		SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
		Horizon:             cfg.Dedup.Horizon,
		Bands:               cfg.Dedup.Bands,
		Rows:                cfg.Dedup.Rows,
		Hasher:              hasher,
	}
	var geoCache geocoding.Cache = geocoding.NewMemoryCache(cfg.Geocoding.CacheSize)

	if cfg.Redis.Addr != "" {
		store, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:             cfg.Redis.Addr,
			Password:         cfg.Redis.Password,
			DB:               cfg.Redis.DB,
			Prefix:           cfg.Redis.Prefix,
			ArticleRetention: cfg.Redis.ArticleRetention,
		})
		if err != nil {
			return nil, err
		}
		a.store = store
		pcfg.Store = store
		dcfg.Seen = deduplication.NewRedisSeenSetWithClient(store.Client(), cfg.Redis.Prefix+"seen:", cfg.Dedup.Horizon)
		geoCache = geocoding.NewRedisCache(store.Client(), cfg.Redis.Prefix+"geocode:")
	} else {
		logging.Warn("REDIS_ADDR not set; running without persistence")
	}

	dedup, err := deduplication.NewDeduplicator(dcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create deduplicator: %w", err)
	}
	pcfg.Deduplicator = dedup

	extractor, err := newExtractor(cfg.Extraction)
	if err != nil {
		return nil, err
	}
	pcfg.Extractor = extractor

	chain := geocoding.NewChain(geocoding.ChainConfig{
		Cache:       geoCache,
		TTL:         cfg.Geocoding.CacheTTL,
		NegativeTTL: cfg.Geocoding.NegativeTTL,
	}, geocoding.NewGazetteerStrategy(extractor.Gazetteer()))
	pcfg.Resolver = geocoding.NewResolver(chain, geocoding.ResolverConfig{
		Concurrency:   cfg.Geocoding.Concurrency,
		Timeout:       cfg.Geocoding.Timeout,
		RatePerSecond: cfg.Geocoding.RatePerSecond,
	})

	c := cfg.Corroboration
	pcfg.Engine = corroboration.NewEngine(corroboration.Config{
		RadiusKm:           c.RadiusKm,
		Window:             c.Window,
		AnalysisWindow:     c.AnalysisWindow,
		Alpha:              c.Alpha,
		VerifiedThreshold:  c.VerifiedThreshold,
		VerifiedMinSources: c.VerifiedMinSources,
		MediaMaxDistance:   c.MediaMaxDistance,
		MediaWindow:        c.MediaWindow,
		CoordinationWindow: c.CoordinationWindow,
		TextSimilarity:     c.TextSimilarity,
		SuspicionFloor:     c.SuspicionFloor,
		Hasher:             hasher,
	})

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:           cfg.Kafka.Brokers,
			IncidentsTopic:    cfg.Kafka.IncidentsTopic,
			CoordinationTopic: cfg.Kafka.CoordinationTopic,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		a.producer = producer
		pcfg.Publisher = producer
	}

	if cfg.S3.Bucket != "" {
		objects, err := storage.NewS3(ctx, storage.S3Config{
			Region:       cfg.S3.Region,
			Profile:      cfg.S3.Profile,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			// reports are a convenience; the run proceeds without them
			logging.Warn("failed to init S3 client, archiving disabled", "err", err)
		} else {
			pcfg.Archive = storage.NewArchive(objects, cfg.S3.Bucket, cfg.S3.Prefix)
		}
	}

	for _, name := range cfg.Feeds.Presets {
		src, found := rssfeeds.NewSource(name, cfg.Feeds.Count, cfg.Feeds.Enrich)
		if !found {
			logging.Warn("unknown feed, skipping", "feed", name, "presets", rssfeeds.PresetNames())
			continue
		}
		pcfg.Sources = append(pcfg.Sources, src)
		a.SourceNames = append(a.SourceNames, src.Name())
	}

	p, err := pipeline.New(pcfg)
	if err != nil {
		return nil, err
	}
	a.Pipeline = p
	ok = true
	return a, nil
}

func newExtractor(cfg config.ExtractionConfig) (*extraction.Extractor, error) {
	var tables *extraction.Tables
	if cfg.TablesPath != "" {
		t, err := extraction.LoadTablesFile(cfg.TablesPath)
		if err != nil {
			return nil, err
		}
		tables = t
	}
	var gazetteer *extraction.Gazetteer
	if cfg.GazetteerPath != "" {
		g, err := extraction.LoadGazetteerFile(cfg.GazetteerPath)
		if err != nil {
			return nil, err
		}
		gazetteer = g
	}
	return extraction.NewExtractor(tables, gazetteer, extraction.Config{
		ScoreFactor:       cfg.ScoreFactor,
		LocationBonus:     cfg.LocationBonus,
		NoLocationPenalty: cfg.NoLocationPenalty,
		MinConfidence:     cfg.MinConfidence,
		PersistThreshold:  cfg.PersistThreshold,
		MaxPerArticle:     cfg.MaxPerArticle,
		DefaultLocation: &types.Location{
			Lat:     cfg.DefaultLat,
			Lon:     cfg.DefaultLon,
			Address: cfg.DefaultAddress,
		},
	}), nil
}

// NewArticleConsumer returns a consumer feeding article batches from the
// input topic into the pipeline, or nil when Kafka is not configured.
func (a *App) NewArticleConsumer() (*kafka.Consumer, error) {
	if len(a.Config.Kafka.Brokers) == 0 {
		return nil, nil
	}
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: a.Config.Kafka.Brokers,
		Topic:   a.Config.Kafka.InputTopic,
		GroupID: a.Config.Kafka.GroupID,
		Handler: BatchHandler(a.Pipeline),
	})
}

// BatchHandler runs each consumed ArticleBatch through p. Empty and
// undecodable batches are skipped; a batch whose run was interrupted is left
// unmarked for redelivery.
func BatchHandler(p *pipeline.Pipeline) kafka.MessageHandler {
	return &kafka.TypedMessageHandler[types.ArticleBatch]{
		Validate: func(b *types.ArticleBatch) bool { return len(b.Articles) > 0 },
		Process: func(ctx context.Context, b *types.ArticleBatch) error {
			report, err := p.Run(ctx, b.Articles)
			if err != nil {
				return err
			}
			logging.Info("processed queued batch", "batch", b.BatchID, "run", report.RunID, "incidents", len(report.Incidents))
			return nil
		},
		AlwaysMark: true,
	}
}

// Close releases every backend connection.
func (a *App) Close() error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
		a.producer = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	return errors.Join(errs...)
}

// Package bootstrap wires the shared stores, embedders, and fabric
// every cmd/ binary needs from a loaded Config, so each binary's
// main.go is left to do only its own route or claim-loop setup.
package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"retrieval-platform/internal/analytics"
	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/blobstore"
	"retrieval-platform/internal/bktree"
	"retrieval-platform/internal/config"
	"retrieval-platform/internal/embedder"
	"retrieval-platform/internal/kvcache"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/metastore"
	"retrieval-platform/internal/queue"
	"retrieval-platform/internal/ratelimit"
	"retrieval-platform/internal/vectorstore"
)

// Stores bundles every live dependency a worker or the API server
// constructs once at startup and holds for its lifetime.
type Stores struct {
	Config    *config.Config
	Logger    logging.Logger
	Meta      *metastore.Store
	Vectors   *vectorstore.Store
	KV        *kvcache.Client
	Fabric    *queue.Fabric
	Dense     *embedder.DenseEmbedder
	Sparse    *embedder.SparseEmbedder
	BM25      *embedder.BM25Embedder
	TypoCache *bktree.Cache
	Analytics *analytics.Pipe
	Blobs     blobstore.Store
	Limiter   *ratelimit.RedisLimiter
}

// Connect establishes every store Stores needs. Individual binaries
// that don't use a given store (e.g. a worker with no need for blob
// storage) simply leave that field unused.
func Connect(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Stores, error) {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	meta, err := metastore.Open(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, err
	}

	host, port, err := splitHostPort(cfg.Qdrant.URL)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Fatal, "parse QDRANT_URL", err)
	}
	vectors, err := vectorstore.New(vectorstore.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Fatal, "connect to qdrant", err)
	}

	redisAddr, err := parseRedisAddr(cfg.Redis.URL)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Fatal, "parse REDIS_URL", err)
	}
	kv, err := kvcache.New(ctx, kvcache.Config{
		Addr:     redisAddr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.Connections,
	})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Fatal, "connect to redis", err)
	}
	fabric := queue.New(kv)

	denseCfg := embedder.DefaultDenseConfig()
	denseCfg.BaseURL = cfg.Embedding.LLMBaseURL
	denseCfg.APIKey = cfg.Embedding.LLMAPIKey
	denseCfg.Model = cfg.Embedding.LLMModel
	dense := embedder.NewDenseEmbedder(denseCfg, logger)
	sparse := embedder.NewSparseEmbedder(denseCfg)
	bm25 := embedder.NewBM25Embedder()
	typoCache := bktree.NewCache(kv)

	var analyticsPipe *analytics.Pipe
	if cfg.Analytics.Enabled {
		sink := analytics.NewClickHouseSink(analytics.ClickHouseConfig{
			Addr:     cfg.Analytics.URL,
			Database: cfg.Analytics.Database,
			Username: cfg.Analytics.User,
			Password: cfg.Analytics.Password,
		})
		analyticsPipe = analytics.New(sink, logger)
	} else {
		analyticsPipe = analytics.New(nil, logger)
	}

	var blobs blobstore.Store
	if cfg.Storage.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.Fatal, "load aws config", err)
		}
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Storage.S3Endpoint != "" {
				o.BaseEndpoint = &cfg.Storage.S3Endpoint
			}
			if cfg.Storage.S3Region != "" {
				o.Region = cfg.Storage.S3Region
			}
		})
		blobs = blobstore.NewS3Store(s3Client, cfg.Storage.S3Bucket)
	} else {
		blobs = blobstore.NewMemStore()
	}

	var limiter *ratelimit.RedisLimiter
	if cfg.RateLimit.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		rlCfg.RedisAddr = redisAddr
		rlCfg.RedisPassword = cfg.Redis.Password
		rlCfg.RedisDB = cfg.Redis.DB
		rlCfg.DefaultLimit = cfg.RateLimit.DefaultLimit
		rlCfg.DefaultWindow = cfg.RateLimit.DefaultWindow
		rlCfg.RouteLimits["POST /api/chunk"] = &ratelimit.RouteLimit{
			Limit:  cfg.RateLimit.ChunkIngestLimit,
			Window: cfg.RateLimit.ChunkIngestWindow,
		}
		limiter, err = ratelimit.NewRedisLimiter(rlCfg)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.Fatal, "connect rate limiter", err)
		}
	}

	return &Stores{
		Config:    cfg,
		Logger:    logger,
		Meta:      meta,
		Vectors:   vectors,
		KV:        kv,
		Fabric:    fabric,
		Dense:     dense,
		Sparse:    sparse,
		BM25:      bm25,
		TypoCache: typoCache,
		Analytics: analyticsPipe,
		Blobs:     blobs,
		Limiter:   limiter,
	}, nil
}

// Close stops the typo cache sweep and closes the rate limiter,
// analytics pipe, metadata store and Redis client, ignoring
// individual close errors since shutdown should proceed regardless.
// The vector store client is not closed.
func (s *Stores) Close() {
	if s.TypoCache != nil {
		s.TypoCache.Close()
	}
	if s.Limiter != nil {
		_ = s.Limiter.Close()
	}
	if s.Analytics != nil {
		s.Analytics.Close()
	}
	if s.Meta != nil {
		_ = s.Meta.Close()
	}
	if s.KV != nil {
		_ = s.KV.Close()
	}
}

func parseRedisAddr(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return raw, nil
	}
	return u.Host, nil
}

func splitHostPort(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		host = raw
		return host, 6334, nil
	}
	portStr := u.Port()
	if portStr == "" {
		return host, 6334, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse port: %w", err)
	}
	return host, port, nil
}

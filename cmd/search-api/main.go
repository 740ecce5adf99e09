// Command search-api exposes the platform's HTTP surface: chunk
// create/search/autocomplete/delete and tracking-id lookup, dataset
// create/get/delete, bookmarking a chunk into a group, and an
// admin-key-gated Prometheus metrics endpoint. Group creation and the
// organization, file, topic, message and analytics routes answer
// 501 Not Implemented. The router layer is a thin delegation surface over the internal
// packages; it carries no business logic of its own.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/bootstrap"
	"retrieval-platform/internal/bktree"
	"retrieval-platform/internal/config"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/ratelimit"
	"retrieval-platform/internal/search"
	"retrieval-platform/internal/telemetry"
	"retrieval-platform/pkg/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("search-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect stores: %v", err)
	}
	defer stores.Close()

	engine := search.New(stores.Meta, stores.Vectors, stores.Dense, stores.Sparse, stores.BM25, stores.TypoCache, nil, stores.Analytics, logger)
	api := &apiServer{stores: stores, engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/chunk", func(r chi.Router) {
		if stores.Limiter != nil {
			r.Use(rateLimitMiddleware(stores.Limiter, logger))
		}
		r.Post("/", api.createChunk)
		r.Post("/search", api.searchChunks)
		r.Post("/autocomplete", api.autocomplete)
		r.Get("/tracking_id/{trackingID}", api.getChunkByTrackingID)
		r.Delete("/{chunkID}", api.deleteChunk)
	})
	r.Route("/api/chunk_group", func(r chi.Router) {
		r.Post("/", api.createGroup)
		r.Post("/{groupID}/bookmark", api.bookmarkChunk)
	})
	r.Route("/api/dataset", func(r chi.Router) {
		r.Post("/", api.upsertDataset)
		r.Get("/{datasetID}", api.getDataset)
		r.Delete("/{datasetID}", api.deleteDataset)
	})
	r.Post("/api/organization", api.notImplemented)
	r.Post("/api/file", api.notImplemented)
	r.Post("/api/topic", api.notImplemented)
	r.Post("/api/message", api.notImplemented)
	r.Get("/api/analytics/*", api.notImplemented)

	r.Group(func(r chi.Router) {
		r.Use(adminKeyMiddleware(cfg.Admin.APIKey))
		r.Handle("/api/metrics", telemetry.Handler())
	})

	srv := &http.Server{
		Addr:         cfg.Server.Host + portSuffix(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("search-api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
}

func portSuffix(port int) string {
	if port <= 0 {
		return ""
	}
	return ":" + itoa(port)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// rateLimitMiddleware enforces the limiter's per-route budget, keyed
// by API key when the caller sends one and client IP otherwise.
func rateLimitMiddleware(limiter *ratelimit.RedisLimiter, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
			cfg := limiter.Config()
			if cfg.ShouldBypass(ip) {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = ip
			}
			route := r.Method + " " + r.URL.Path
			result, err := limiter.Check(r.Context(), key, cfg.RouteLimitFor(route))
			if err != nil {
				logger.Warn("rate limit check failed, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", itoa(result.Remaining))
			if !result.Allowed {
				w.Header().Set("Retry-After", itoa(int(result.RetryAfter.Seconds())))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func adminKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" || r.Header.Get("X-Admin-Key") == expected {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

type apiServer struct {
	stores *bootstrap.Stores
	engine *search.Engine
	logger logging.Logger
}

func (a *apiServer) notImplemented(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "not implemented", http.StatusNotImplemented)
}

func (a *apiServer) writeError(w http.ResponseWriter, err error) {
	status := apierrors.KindOf(err).HTTPStatus()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (a *apiServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type createChunkRequest struct {
	DatasetID uuid.UUID            `json:"dataset_id"`
	Chunk     types.IngestChunkReq `json:"chunk"`
}

func (a *apiServer) createChunk(w http.ResponseWriter, r *http.Request) {
	var req createChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "decode request", err))
		return
	}
	dataset, err := a.stores.Meta.GetDataset(r.Context(), req.DatasetID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.stores.Fabric.Enqueue(r.Context(), types.QueueIngestion, "ingest_chunks", types.IngestChunksPayload{
		DatasetID:          req.DatasetID,
		DatasetConfig:      dataset.Config,
		Chunks:             []types.IngestChunkReq{req.Chunk},
		UpsertByTrackingID: true,
	}); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (a *apiServer) getChunkByTrackingID(w http.ResponseWriter, r *http.Request) {
	datasetID, err := uuid.Parse(r.URL.Query().Get("dataset_id"))
	if err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "parse dataset_id", err))
		return
	}
	trackingID := chi.URLParam(r, "trackingID")
	chunks, err := a.stores.Meta.GetChunksByTrackingID(r.Context(), datasetID, trackingID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if len(chunks) == 0 {
		http.NotFound(w, r)
		return
	}
	a.writeJSON(w, http.StatusOK, chunks[0])
}

func (a *apiServer) deleteChunk(w http.ResponseWriter, r *http.Request) {
	chunkID, err := uuid.Parse(chi.URLParam(r, "chunkID"))
	if err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "parse chunk id", err))
		return
	}
	if err := a.stores.Meta.DeleteChunksByIDs(r.Context(), []uuid.UUID{chunkID}); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) searchChunks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DatasetID uuid.UUID          `json:"dataset_id"`
		Config    types.DatasetConfig `json:"-"`
		Search    types.SearchRequest `json:"search"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "decode request", err))
		return
	}
	dataset, err := a.stores.Meta.GetDataset(r.Context(), req.DatasetID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	req.Search.DatasetID = req.DatasetID
	resp, err := a.engine.Search(r.Context(), dataset.Config, req.Search)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *apiServer) autocomplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DatasetID uuid.UUID `json:"dataset_id"`
		Query     string    `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "decode request", err))
		return
	}
	corrected, changed := bktree.CorrectQuery(r.Context(), a.stores.TypoCache, req.DatasetID, req.Query, nil)
	a.writeJSON(w, http.StatusOK, map[string]any{"query": corrected, "corrected": changed})
}

func (a *apiServer) createGroup(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "not implemented"})
}

func (a *apiServer) bookmarkChunk(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "parse group id", err))
		return
	}
	var req struct {
		ChunkID uuid.UUID `json:"chunk_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "decode request", err))
		return
	}
	if err := a.stores.Meta.BookmarkChunk(r.Context(), req.ChunkID, groupID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) upsertDataset(w http.ResponseWriter, r *http.Request) {
	var ds types.Dataset
	if err := json.NewDecoder(r.Body).Decode(&ds); err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "decode request", err))
		return
	}
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	if err := a.stores.Meta.UpsertDataset(r.Context(), ds); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, ds)
}

func (a *apiServer) getDataset(w http.ResponseWriter, r *http.Request) {
	datasetID, err := uuid.Parse(chi.URLParam(r, "datasetID"))
	if err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "parse dataset id", err))
		return
	}
	ds, err := a.stores.Meta.GetDataset(r.Context(), datasetID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, ds)
}

func (a *apiServer) deleteDataset(w http.ResponseWriter, r *http.Request) {
	datasetID, err := uuid.Parse(chi.URLParam(r, "datasetID"))
	if err != nil {
		a.writeError(w, apierrors.Wrap(apierrors.Validation, "parse dataset id", err))
		return
	}
	if err := a.stores.Meta.MarkDatasetDeleted(r.Context(), datasetID, time.Now()); err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.stores.Fabric.Enqueue(r.Context(), types.QueueDelete, "delete_dataset", types.DeleteDatasetPayload{
		DatasetID: datasetID,
	}); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Package vectorstore wraps Qdrant as the platform's point store: one
// collection per distinct embedding-dimension/BM25-parameter shape, a
// dataset_id payload field on every point enforcing tenant isolation,
// and named dense/sparse/bm25 vectors so a dataset can opt into any
// combination of the three ranking signals.
package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/pkg/types"
)

// Store wraps a Qdrant client.
type Store struct {
	client *qdrant.Client
}

// Config holds the connection knobs for the Qdrant client.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// New dials Qdrant. SkipCompatibilityCheck mirrors the teacher's
// choice to silence version-mismatch warnings in dev environments.
func New(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Fatal, "create qdrant client", err)
	}
	return &Store{client: client}, nil
}

// CollectionNameFor derives a deterministic collection name from a
// collection shape, so every dataset sharing a shape lands in the
// same collection without a separate shape-to-name registry.
func CollectionNameFor(shape types.CollectionShape) string {
	name := fmt.Sprintf("chunks_d%d", shape.EmbeddingSize)
	if shape.BM25Enabled {
		name += fmt.Sprintf("_bm25_b%gk%g", shape.BM25B, shape.BM25K)
	}
	return strings.ReplaceAll(name, ".", "p")
}

// EnsureCollection creates the named collection if it does not
// already exist, with a dense vector sized per shape, a named "sparse"
// sparse vector and, when the shape enables BM25, a named "bm25"
// sparse vector.
func (s *Store) EnsureCollection(ctx context.Context, shape types.CollectionShape) error {
	name := CollectionNameFor(shape)
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "list collections", err)
	}
	for _, c := range collections {
		if c == name {
			return nil
		}
	}

	vectorsCfg := qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
		string(types.VectorDense): {
			Size:     uint64(shape.EmbeddingSize),
			Distance: qdrant.Distance_Cosine,
		},
	})
	create := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig:  vectorsCfg,
	}
	sparseCfg := map[string]*qdrant.SparseVectorParams{string(types.VectorSparse): {}}
	if shape.BM25Enabled {
		sparseCfg[string(types.VectorBM25)] = &qdrant.SparseVectorParams{}
	}
	create.SparseVectorsConfig = qdrant.NewSparseVectorsConfig(sparseCfg)
	if err := s.client.CreateCollection(ctx, create); err != nil {
		return apierrors.Wrap(apierrors.Transient, "create collection "+name, err)
	}
	return nil
}

// UpsertPoints writes points into the collection for shape, stamping
// dataset_id onto every payload so later filters can enforce tenant
// isolation even if a caller forgets to.
func (s *Store) UpsertPoints(ctx context.Context, shape types.CollectionShape, datasetID uuid.UUID, points []types.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	name := CollectionNameFor(shape)
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, toPointStruct(datasetID, p))
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         structs,
	})
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "upsert points", err)
	}
	return nil
}

func toPointStruct(datasetID uuid.UUID, p types.VectorPoint) *qdrant.PointStruct {
	payload := map[string]*qdrant.Value{
		"dataset_id": qdrant.NewValueString(datasetID.String()),
	}
	for k, v := range p.Payload {
		payload[k] = toQdrantValue(v)
	}

	vectors := map[string]*qdrant.Vector{}
	if len(p.Dense) > 0 {
		vectors[string(types.VectorDense)] = qdrant.NewVectorDense(p.Dense)
	}
	if p.Sparse != nil {
		vectors[string(types.VectorSparse)] = qdrant.NewVectorSparse(p.Sparse.Indices, p.Sparse.Values)
	}
	if p.BM25 != nil {
		vectors[string(types.VectorBM25)] = qdrant.NewVectorSparse(p.BM25.Indices, p.BM25.Values)
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(p.ID.String()),
		Vectors: qdrant.NewVectorsMap(vectors),
		Payload: payload,
	}
}

func toQdrantValue(v any) *qdrant.Value {
	switch t := v.(type) {
	case string:
		return qdrant.NewValueString(t)
	case float64:
		return qdrant.NewValueDouble(t)
	case float32:
		return qdrant.NewValueDouble(float64(t))
	case int:
		return qdrant.NewValueInt(int64(t))
	case int64:
		return qdrant.NewValueInt(t)
	case bool:
		return qdrant.NewValueBool(t)
	case []string:
		values := make([]*qdrant.Value, len(t))
		for i, s := range t {
			values[i] = qdrant.NewValueString(s)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	case map[string]any:
		fields := make(map[string]*qdrant.Value, len(t))
		for k, fv := range t {
			fields[k] = toQdrantValue(fv)
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}
	default:
		return qdrant.NewValueString(fmt.Sprintf("%v", t))
	}
}

// Query performs a ranked search against one named vector, with an
// optional dataset_id-scoped filter appended to whatever filter the
// caller supplied so cross-tenant leakage is structurally impossible.
func (s *Store) Query(ctx context.Context, shape types.CollectionShape, datasetID uuid.UUID, vector types.VectorName, dense []float32, sparse *types.SparseVector, filter types.ChunkFilter, limit int, scoreThreshold *float32) ([]types.ScoredChunk, error) {
	name := CollectionNameFor(shape)
	qf := buildFilter(datasetID, filter)

	var query *qdrant.Query
	switch vector {
	case types.VectorDense:
		query = qdrant.NewQuery(dense...)
	case types.VectorSparse, types.VectorBM25:
		if sparse == nil {
			return nil, apierrors.New(apierrors.Validation, "sparse vector required for sparse/bm25 query")
		}
		query = qdrant.NewQuerySparse(sparse.Indices, sparse.Values)
	default:
		return nil, apierrors.New(apierrors.Validation, "unknown vector name "+string(vector))
	}

	req := &qdrant.QueryPoints{
		CollectionName: name,
		Query:          query,
		Using:          qdrant.PtrOf(string(vector)),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(false),
		Filter:         qf,
	}
	if scoreThreshold != nil {
		req.ScoreThreshold = scoreThreshold
	}

	result, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "query vector store", err)
	}

	out := make([]types.ScoredChunk, 0, len(result))
	for _, sp := range result {
		id, err := uuid.Parse(sp.Id.GetUuid())
		if err != nil {
			continue
		}
		out = append(out, types.ScoredChunk{ChunkID: id, Score: sp.Score})
	}
	return out, nil
}

func buildFilter(datasetID uuid.UUID, filter types.ChunkFilter) *qdrant.Filter {
	must := []*qdrant.Condition{fieldMatch("dataset_id", datasetID.String())}
	for _, c := range filter.Must {
		must = append(must, conditionFor(c))
	}
	qf := &qdrant.Filter{Must: must}
	for _, c := range filter.MustNot {
		qf.MustNot = append(qf.MustNot, conditionFor(c))
	}
	for _, c := range filter.Should {
		qf.Should = append(qf.Should, conditionFor(c))
	}
	return qf
}

func conditionFor(c types.MatchCondition) *qdrant.Condition {
	switch {
	case c.MatchValue != nil:
		return fieldMatch(c.Field, *c.MatchValue)
	case len(c.MatchAny) > 0:
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   c.Field,
					Match: qdrant.NewMatchKeywords(c.MatchAny...),
				},
			},
		}
	case c.Gte != nil || c.Lte != nil:
		r := &qdrant.Range{}
		if c.Gte != nil {
			r.Gte = c.Gte
		}
		if c.Lte != nil {
			r.Lte = c.Lte
		}
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: c.Field, Range: r},
			},
		}
	default:
		return fieldMatch(c.Field, "")
	}
}

func fieldMatch(field, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   field,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

// GetPoints fetches points by ID directly, used by the Reindexer to
// read back existing vectors before transforming them.
func (s *Store) GetPoints(ctx context.Context, shape types.CollectionShape, ids []uuid.UUID) ([]types.VectorPoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	name := CollectionNameFor(shape)
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id.String()))
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: name,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "get points", err)
	}
	out := make([]types.VectorPoint, 0, len(points))
	for _, p := range points {
		id, err := uuid.Parse(p.Id.GetUuid())
		if err != nil {
			continue
		}
		vp := types.VectorPoint{ID: id, Payload: fromQdrantPayload(p.Payload)}
		named := p.GetVectors().GetVectors().GetVectors()
		if v, ok := named[string(types.VectorDense)]; ok {
			vp.Dense = v.GetDense().GetData()
		}
		if v, ok := named[string(types.VectorSparse)]; ok {
			vp.Sparse = &types.SparseVector{Indices: v.GetSparse().GetIndices().GetData(), Values: v.GetSparse().GetValues()}
		}
		if v, ok := named[string(types.VectorBM25)]; ok {
			vp.BM25 = &types.SparseVector{Indices: v.GetSparse().GetIndices().GetData(), Values: v.GetSparse().GetValues()}
		}
		out = append(out, vp)
	}
	return out, nil
}

func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromQdrantValue(v)
	}
	return out
}

func fromQdrantValue(v *qdrant.Value) any {
	switch t := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.GetStringValue()
	case *qdrant.Value_DoubleValue:
		return v.GetDoubleValue()
	case *qdrant.Value_IntegerValue:
		return v.GetIntegerValue()
	case *qdrant.Value_BoolValue:
		return v.GetBoolValue()
	case *qdrant.Value_ListValue:
		out := make([]any, len(t.ListValue.Values))
		for i, item := range t.ListValue.Values {
			out[i] = fromQdrantValue(item)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(t.StructValue.Fields))
		for k, item := range t.StructValue.Fields {
			out[k] = fromQdrantValue(item)
		}
		return out
	default:
		return nil
	}
}

// ScrollFilterIDs pages through every point in the collection matching
// filter within dataset, returning their IDs without ranking — used
// by delete-by-filter to find the relational rows that must be
// removed alongside the vector points.
func (s *Store) ScrollFilterIDs(ctx context.Context, shape types.CollectionShape, datasetID uuid.UUID, filter types.ChunkFilter) ([]uuid.UUID, error) {
	name := CollectionNameFor(shape)
	qf := buildFilter(datasetID, filter)

	var out []uuid.UUID
	var offset *qdrant.PointId
	for {
		req := &qdrant.ScrollPoints{
			CollectionName: name,
			Filter:         qf,
			Limit:          qdrant.PtrOf(uint32(500)),
			WithPayload:    qdrant.NewWithPayload(false),
			WithVectors:    qdrant.NewWithVectors(false),
		}
		if offset != nil {
			req.Offset = offset
		}
		points, err := s.client.Scroll(ctx, req)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.Transient, "scroll filter ids", err)
		}
		if len(points) == 0 {
			break
		}
		for _, p := range points {
			if id, err := uuid.Parse(p.Id.GetUuid()); err == nil {
				out = append(out, id)
			}
		}
		if len(points) < 500 {
			break
		}
		offset = points[len(points)-1].Id
	}
	return out, nil
}

// DeletePoints removes points by ID from the collection.
func (s *Store) DeletePoints(ctx context.Context, shape types.CollectionShape, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	name := CollectionNameFor(shape)
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id.String()))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "delete points", err)
	}
	return nil
}

// DeleteByFilter removes every point matching filter within dataset,
// used by delete-by-filter requests and the dataset-delete cascade's
// final vector-side cleanup.
func (s *Store) DeleteByFilter(ctx context.Context, shape types.CollectionShape, datasetID uuid.UUID, filter types.ChunkFilter) error {
	name := CollectionNameFor(shape)
	qf := buildFilter(datasetID, filter)
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: qf},
		},
	})
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "delete by filter", err)
	}
	return nil
}

// CollectionHealthy reports whether the collection for shape is
// reachable and reports status "green" or "yellow".
func (s *Store) CollectionHealthy(ctx context.Context, shape types.CollectionShape) (bool, error) {
	info, err := s.client.GetCollectionInfo(ctx, CollectionNameFor(shape))
	if err != nil {
		return false, apierrors.Wrap(apierrors.Transient, "get collection info", err)
	}
	status := info.GetStatus()
	return status == qdrant.CollectionStatus_Green || status == qdrant.CollectionStatus_Yellow, nil
}

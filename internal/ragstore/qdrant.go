package ragstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"ragcore/internal/ragconfig"
)

// payloadIDField stores the caller's original chunk id alongside the
// deterministic UUID Qdrant requires as a point id, matching the
// teacher's qdrantVector convention.
const payloadIDField = "_original_id"

// QdrantVectorStore is the Qdrant-backed VectorStore.
type QdrantVectorStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// NewQdrantVectorStore dials Qdrant and ensures the configured collection
// exists with the configured dimension/metric.
func NewQdrantVectorStore(ctx context.Context, cfg ragconfig.VectorStoreConfig) (*QdrantVectorStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("ragstore: vector collection name is required")
	}
	qc := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	}
	if cfg.APIKey != "" {
		qc.APIKey = cfg.APIKey
	}
	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("ragstore: create qdrant client: %w", err)
	}
	qv := &QdrantVectorStore{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimensions,
		metric:     strings.ToLower(strings.TrimSpace(cfg.Metric)),
	}
	if err := qv.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ragstore: ensure collection: %w", err)
	}
	return qv, nil
}

func (q *QdrantVectorStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *QdrantVectorStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	uuidStr := pointUUID(id)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if uuidStr != id {
		payload[payloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	points := []*qdrant.PointStruct{{
		Id:      qdrant.NewIDUUID(uuidStr),
		Vectors: qdrant.NewVectorsDense(vec),
		Payload: qdrant.NewValueMap(payload),
	}}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	return err
}

func (q *QdrantVectorStore) Delete(ctx context.Context, id string) error {
	pointID := qdrant.NewIDUUID(pointUUID(id))
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(pointID),
	})
	return err
}

// buildFilter translates the filter tree's EQ/GTE/LTE/IN leaves into
// Qdrant match/range conditions, ANDed together.
func buildFilter(filters []VectorFilter) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filters))
	for _, f := range filters {
		switch f.Op {
		case FilterEQ:
			switch v := f.Value.(type) {
			case string:
				must = append(must, qdrant.NewMatch(f.Key, v))
			case int:
				must = append(must, qdrant.NewMatchInt(f.Key, int64(v)))
			case int64:
				must = append(must, qdrant.NewMatchInt(f.Key, v))
			case bool:
				must = append(must, qdrant.NewMatchBool(f.Key, v))
			}
		case FilterGTE:
			must = append(must, qdrant.NewRange(f.Key, &qdrant.Range{Gte: toFloatPtr(f.Value)}))
		case FilterLTE:
			must = append(must, qdrant.NewRange(f.Key, &qdrant.Range{Lte: toFloatPtr(f.Value)}))
		case FilterIN:
			if values, ok := f.Value.([]any); ok {
				strs := make([]string, 0, len(values))
				for _, v := range values {
					if s, ok := v.(string); ok {
						strs = append(strs, s)
					}
				}
				if len(strs) > 0 {
					must = append(must, qdrant.NewMatchKeywords(f.Key, strs...))
				}
			}
		}
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func toFloatPtr(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return nil
	}
	return &f
}

func (q *QdrantVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filters []VectorFilter) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	searchResult, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         buildFilter(filters),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]VectorResult, 0, len(searchResult))
	for _, hit := range searchResult {
		metadata := make(map[string]any)
		var originalID string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == payloadIDField {
					originalID = v.GetStringValue()
					continue
				}
				metadata[k] = qdrantValueToGo(v)
			}
		}
		id := originalID
		if id == "" {
			id = hit.Id.GetUuid()
		}
		out = append(out, VectorResult{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return out, nil
}

// qdrantValueToGo unwraps a qdrant payload Value into a plain Go value,
// mirroring the teacher's GetStringValue() convention for the other
// scalar kinds the metadata sanitizer can produce.
func qdrantValueToGo(v *qdrant.Value) any {
	switch {
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetIntegerValue() != 0:
		return v.GetIntegerValue()
	case v.GetDoubleValue() != 0:
		return v.GetDoubleValue()
	case v.GetBoolValue():
		return true
	case v.GetListValue() != nil:
		lst := v.GetListValue().GetValues()
		out := make([]any, len(lst))
		for i, e := range lst {
			out[i] = qdrantValueToGo(e)
		}
		return out
	default:
		return nil
	}
}

func (q *QdrantVectorStore) Dimension() int { return q.dimension }
func (q *QdrantVectorStore) Close() error   { return q.client.Close() }

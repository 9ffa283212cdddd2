package qdrant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/qdrant/go-client/qdrant"
)

// PointsClient подмножество методов *qdrant.Client, которое использует репозиторий.
type PointsClient interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
}

// filterableFields поля payload, по которым разрешена фильтрация поиска.
var filterableFields = map[string]bool{
	"shop_id":   true,
	"colors":    true,
	"occasions": true,
	"tags":      true,
}

// EmbeddingRepo репозиторий для работы с embedding-векторами в Qdrant.
// Идентификатор точки совпадает с product_id.
type EmbeddingRepo struct {
	client PointsClient
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client PointsClient, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или обновляет вектор одного товара.
func (q *EmbeddingRepo) Upsert(ctx context.Context, point *domain.IndexPoint) error {
	const op = "upsert"

	if err := q.upsertPoints(ctx, []domain.IndexPoint{*point}); err != nil {
		return e.NewIndexOperationError(op, []int64{point.ProductID}, err)
	}

	return nil
}

// UpsertBatch записывает точки чанками по cfg.UpsertBatchSize.
// Ошибка чанка не прерывает запись остальных: его точки попадают в Failed.
func (q *EmbeddingRepo) UpsertBatch(ctx context.Context, points []domain.IndexPoint) (*usecase.UpsertBatchRes, error) {
	const op = "upsert_batch"

	res := usecase.NewUpsertBatchRes()
	size := q.cfg.UpsertBatchSize
	if size <= 0 {
		size = 100
	}

	for start := 0; start < len(points); start += size {
		end := min(start+size, len(points))
		chunk := points[start:end]
		res.Chunks++

		if err := q.upsertPoints(ctx, chunk); err != nil {
			ids := pointIDs(chunk)
			opErr := e.NewIndexOperationError(op, ids, err)
			for _, id := range ids {
				res.Failed[id] = opErr
			}
			res.FailedChunks++
			continue
		}

		res.Upserted += len(chunk)
	}

	return res, nil
}

func (q *EmbeddingRepo) upsertPoints(ctx context.Context, points []domain.IndexPoint) error {
	reqPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		if uint64(len(point.Vector)) != q.cfg.VectorSize {
			return fmt.Errorf("vector for product %d has %d dimensions, collection expects %d",
				point.ProductID, len(point.Vector), q.cfg.VectorSize)
		}

		reqPoints = append(reqPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(point.ProductID)),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(point.Payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points:         reqPoints,
		Wait:           qdrant.PtrOf(true),
	})

	return err
}

// Query ищет topK ближайших векторов по косинусной близости с фильтрами на равенство полей payload.
func (q *EmbeddingRepo) Query(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.VectorMatch, error) {
	const op = "query"

	qf, err := buildFilter(filter)
	if err != nil {
		return nil, err
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qf,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.NewIndexOperationError(op, nil, err)
	}

	matches := make([]domain.VectorMatch, 0, len(points))
	for _, p := range points {
		matches = append(matches, domain.VectorMatch{
			ProductID: int64(p.GetId().GetNum()),
			Score:     p.GetScore(),
			Payload:   payloadToMap(p.GetPayload()),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	return matches, nil
}

// Delete удаляет точки по идентификаторам. Отсутствующие точки не считаются ошибкой.
func (q *EmbeddingRepo) Delete(ctx context.Context, ids ...int64) error {
	const op = "delete"

	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDNum(uint64(id)))
	}

	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	}); err != nil {
		return e.NewIndexOperationError(op, ids, err)
	}

	return nil
}

// Stats возвращает количество точек, размерность и статус коллекции.
func (q *EmbeddingRepo) Stats(ctx context.Context) (*domain.IndexStats, error) {
	const op = "stats"

	info, err := q.client.GetCollectionInfo(ctx, q.cfg.QdrantCollectionName)
	if err != nil {
		return nil, e.NewIndexOperationError(op, nil, err)
	}

	dims := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if dims == 0 {
		dims = q.cfg.VectorSize
	}

	return &domain.IndexStats{
		Count:      info.GetPointsCount(),
		Dimensions: dims,
		Status:     strings.ToLower(info.GetStatus().String()),
	}, nil
}

// ScrollIDs возвращает страницу точек начиная с offset (включительно) и offset следующей страницы.
func (q *EmbeddingRepo) ScrollIDs(ctx context.Context, offset *int64, limit int) (*usecase.ScrollIDsRes, error) {
	const op = "scroll"

	var start *qdrant.PointId
	if offset != nil {
		start = qdrant.NewIDNum(uint64(*offset))
	}

	// Запрашиваем на одну точку больше, чтобы узнать начало следующей страницы
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Offset:         start,
		Limit:          qdrant.PtrOf(uint32(limit + 1)),
		WithPayload:    qdrant.NewWithPayloadInclude("indexed_at"),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, e.NewIndexOperationError(op, nil, err)
	}

	res := &usecase.ScrollIDsRes{}
	if len(points) > limit {
		next := int64(points[limit].GetId().GetNum())
		res.Next = &next
		points = points[:limit]
	}

	res.Points = make([]domain.IndexedVector, 0, len(points))
	for _, p := range points {
		v := domain.IndexedVector{ProductID: int64(p.GetId().GetNum())}
		if ts, ok := p.GetPayload()["indexed_at"]; ok {
			v.IndexedAt = time.Unix(ts.GetIntegerValue(), 0).UTC()
		}
		res.Points = append(res.Points, v)
	}

	return res, nil
}

// Existing сообщает, какие из ids присутствуют в коллекции.
func (q *EmbeddingRepo) Existing(ctx context.Context, ids []int64) (map[int64]bool, error) {
	const op = "get"

	result := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDNum(uint64(id)))
	}

	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, e.NewIndexOperationError(op, ids, err)
	}

	for _, p := range points {
		result[int64(p.GetId().GetNum())] = true
	}

	return result, nil
}

// buildFilter переводит фильтр поиска в условия must Qdrant.
// Массив строк означает совпадение с любым из значений.
func buildFilter(filter domain.SearchFilter) (*qdrant.Filter, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, key := range keys {
		if !filterableFields[key] {
			return nil, e.Wrap(key, e.ErrUnsupportedFilter)
		}

		switch v := filter[key].(type) {
		case int64:
			conditions = append(conditions, qdrant.NewMatchInt(key, v))
		case int:
			conditions = append(conditions, qdrant.NewMatchInt(key, int64(v)))
		case string:
			conditions = append(conditions, qdrant.NewMatchKeyword(key, v))
		case []string:
			conditions = append(conditions, qdrant.NewMatchKeywords(key, v...))
		default:
			return nil, e.Wrap(fmt.Sprintf("%s: unsupported value type %T", key, v), e.ErrUnsupportedFilter)
		}
	}

	return &qdrant.Filter{Must: conditions}, nil
}

func payloadToMap(payload map[string]*qdrant.Value) domain.Payload {
	if len(payload) == 0 {
		return nil
	}

	out := make(domain.Payload, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}

	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, 0, len(values))
		for _, item := range values {
			out = append(out, valueToAny(item))
		}
		return out
	default:
		return nil
	}
}

func pointIDs(points []domain.IndexPoint) []int64 {
	ids := make([]int64, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.ProductID)
	}

	return ids
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const (
	filterShopID    = "shop_id"
	filterColors    = "colors"
	filterOccasions = "occasions"
	filterTags      = "tags"
)

// SearchUseCase ищет товары, визуально похожие на изображение запроса.
type SearchUseCase struct {
	acquirer   ImageAcquirer
	embedder   EmbeddingInfra
	vectorRepo VectorRepository
	metadata   *MetadataReader
	cfg        *cfg.SearchCfg
	logger     logger.Logger
}

func NewSearchUC(
	acquirer ImageAcquirer,
	embedder EmbeddingInfra,
	vectorRepo VectorRepository,
	metadata *MetadataReader,
	cfg *cfg.SearchCfg,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		acquirer:   acquirer,
		embedder:   embedder,
		vectorRepo: vectorRepo,
		metadata:   metadata,
		cfg:        cfg,
		logger:     logger,
	}
}

// Search возвращает совпадения, разбитые на полосы exact и similar.
// Совпадения без метаданных отбрасываются: индекс и хранилище метаданных сходятся не сразу.
func (s *SearchUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "SearchUseCase.Search"
	start := time.Now()

	src, topK, filter, err := s.validate(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	image, err := s.acquirer.Acquire(ctx, src)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	embedding, err := s.embedder.Embed(ctx, 0, image.Bytes)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	matches, err := s.vectorRepo.Query(ctx, embedding.Vector, topK, filter)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ProductID)
	}

	res := &SearchRes{
		Exact:   make([]domain.SearchHit, 0),
		Similar: make([]domain.SearchHit, 0),
	}

	metas, err := s.metadata.GetBatch(ctx, ids)
	if err != nil {
		s.logger.Warnf("search: metadata enrichment failed, returning degraded result: %v", e.Wrap(op, err))
		metas = map[int64]*domain.ProductMetadata{}
		res.Degraded = true
	}
	floor := s.cfg.SimilarThreshold
	if req.Threshold != nil && *req.Threshold > floor {
		floor = *req.Threshold
	}

	dropped := 0
	for _, m := range matches {
		if m.Score < floor {
			continue
		}

		meta, ok := metas[m.ProductID]
		if !ok {
			dropped++
			continue
		}

		hit := domain.SearchHit{ProductID: m.ProductID, Score: m.Score, Metadata: meta}
		switch band(m.Score, s.cfg.ExactThreshold, s.cfg.SimilarThreshold) {
		case domain.BandExact:
			res.Exact = append(res.Exact, hit)
		case domain.BandSimilar:
			res.Similar = append(res.Similar, hit)
		}
	}
	if dropped > 0 {
		s.logger.Debugf("search: %d hits dropped without metadata", dropped)
	}

	stats, err := s.vectorRepo.Stats(ctx)
	if err != nil {
		s.logger.Warnf("search: index stats unavailable: %v", err)
	} else {
		res.TotalIndexed = stats.Count
	}

	res.SearchTime = time.Since(start)

	return res, nil
}

// band относит оценку к полосе; пустая строка означает, что результат отбрасывается.
func band(score, exact, similar float32) domain.Band {
	switch {
	case score >= exact:
		return domain.BandExact
	case score >= similar:
		return domain.BandSimilar
	default:
		return ""
	}
}

// validate проверяет запрос до любых сетевых вызовов.
func (s *SearchUseCase) validate(req *SearchReq) (domain.ImageSource, int, domain.SearchFilter, error) {
	src, err := imageSource(req.ImageURL, req.ImageBase64)
	if err != nil {
		return domain.ImageSource{}, 0, nil, err
	}

	topK := s.cfg.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 || topK > s.cfg.MaxTopK {
		return domain.ImageSource{}, 0, nil, fmt.Errorf("%w: must be within [1, %d]", e.ErrInvalidTopK, s.cfg.MaxTopK)
	}

	if req.Threshold != nil {
		t := *req.Threshold
		if math.IsNaN(float64(t)) || t < 0 || t > 1 {
			return domain.ImageSource{}, 0, nil, e.ErrInvalidThreshold
		}
	}

	filter, err := normalizeFilters(req.Filters)
	if err != nil {
		return domain.ImageSource{}, 0, nil, err
	}

	return src, topK, filter, nil
}

// normalizeFilters приводит значения фильтров из JSON к типам, которые понимает индекс.
func normalizeFilters(filters map[string]any) (domain.SearchFilter, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	out := make(domain.SearchFilter, len(filters))
	for key, value := range filters {
		switch key {
		case filterShopID:
			id, ok := toInt64(value)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be an integer", e.ErrUnsupportedFilter, key)
			}
			out[key] = id
		case filterColors, filterOccasions, filterTags:
			values, ok := toStrings(value)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string or an array of strings", e.ErrUnsupportedFilter, key)
			}
			if len(values) == 1 {
				out[key] = values[0]
			} else if len(values) > 1 {
				out[key] = values
			}
		default:
			return nil, fmt.Errorf("%w: %s", e.ErrUnsupportedFilter, key)
		}
	}

	return out, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		id, err := n.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}

func toStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case string:
		return []string{s}, true
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

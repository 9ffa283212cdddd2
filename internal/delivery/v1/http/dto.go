package http

import (
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
)

type IndexRequest struct {
	ProductID   int64    `json:"product_id" example:"42"`
	ImageURL    string   `json:"image_url,omitempty" example:"https://cdn.example.com/products/42.jpg"`
	ImageBase64 string   `json:"image_base64,omitempty"`
	Name        string   `json:"name" example:"Букет из 25 роз"`
	Price       int64    `json:"price" example:"950000"`
	Colors      []string `json:"colors,omitempty"`
	Occasions   []string `json:"occasions,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ShopID      *int64   `json:"shop_id,omitempty" example:"8"`
}

type IndexResponse struct {
	Success   bool   `json:"success"`
	ProductID int64  `json:"product_id"`
	VectorID  string `json:"vector_id"`
	IndexedAt string `json:"indexed_at"`
}

type DeleteResponse struct {
	Success   bool  `json:"success"`
	ProductID int64 `json:"product_id"`
	Deleted   bool  `json:"deleted"`
}

type SearchRequest struct {
	ImageURL    string         `json:"image_url,omitempty"`
	ImageBase64 string         `json:"image_base64,omitempty"`
	TopK        *int           `json:"topK,omitempty" example:"10"`
	Threshold   *float32       `json:"threshold,omitempty" example:"0.75"`
	Filters     map[string]any `json:"filters,omitempty"`
}

type SearchHitResponse struct {
	ProductID int64    `json:"product_id"`
	Score     float32  `json:"score"`
	Name      string   `json:"name"`
	Price     int64    `json:"price"`
	ImageKey  string   `json:"image_key"`
	Colors    []string `json:"colors,omitempty"`
	Occasions []string `json:"occasions,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	ShopID    *int64   `json:"shop_id,omitempty"`
}

type SearchResponse struct {
	Success      bool                `json:"success"`
	Exact        []SearchHitResponse `json:"exact"`
	Similar      []SearchHitResponse `json:"similar"`
	SearchTimeMs int64               `json:"search_time_ms"`
	TotalIndexed uint64              `json:"total_indexed"`
	Degraded     bool                `json:"degraded,omitempty"`
}

type BatchIndexRequest struct {
	Source string `json:"source" example:"catalog"`
	Limit  int    `json:"limit,omitempty" example:"50"`
	Offset int    `json:"offset,omitempty" example:"0"`
	ShopID *int64 `json:"shop_id,omitempty"`
}

type BatchItemError struct {
	ProductID int64  `json:"product_id"`
	Error     string `json:"error"`
}

type BatchIndexResponse struct {
	Success    bool             `json:"success"`
	Total      int              `json:"total"`
	Indexed    int              `json:"indexed"`
	Failed     int              `json:"failed"`
	Errors     []BatchItemError `json:"errors"`
	DurationMs int64            `json:"duration_ms"`
}

type StatsResponse struct {
	TotalIndexed    uint64  `json:"total_indexed"`
	LastIndexedAt   *string `json:"last_indexed_at"`
	VectorizeStatus string  `json:"vectorize_status"`
	D1Rows          int64   `json:"d1_rows"`
}

type ReconcileResponse struct {
	Success               bool  `json:"success"`
	VectorsChecked        int   `json:"vectors_checked"`
	MetadataChecked       int   `json:"metadata_checked"`
	OrphanVectorsRemoved  int   `json:"orphan_vectors_removed"`
	OrphanMetadataRemoved int   `json:"orphan_metadata_removed"`
	DurationMs            int64 `json:"duration_ms"`
}

type RootResponse struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// MAPPERS

func (r *IndexRequest) toUsecase() *usecase.IndexProductReq {
	return &usecase.IndexProductReq{
		ProductID:   r.ProductID,
		Name:        r.Name,
		Price:       r.Price,
		ImageURL:    r.ImageURL,
		ImageBase64: r.ImageBase64,
		Colors:      r.Colors,
		Occasions:   r.Occasions,
		Tags:        r.Tags,
		ShopID:      r.ShopID,
	}
}

func (r *SearchRequest) toUsecase() *usecase.SearchReq {
	return &usecase.SearchReq{
		ImageURL:    r.ImageURL,
		ImageBase64: r.ImageBase64,
		TopK:        r.TopK,
		Threshold:   r.Threshold,
		Filters:     r.Filters,
	}
}

func (r *BatchIndexRequest) toUsecase() *usecase.BatchIndexReq {
	return &usecase.BatchIndexReq{
		Source: r.Source,
		Limit:  r.Limit,
		Offset: r.Offset,
		ShopID: r.ShopID,
	}
}

func newIndexResponse(res *usecase.IndexProductRes) *IndexResponse {
	return &IndexResponse{
		Success:   true,
		ProductID: res.ProductID,
		VectorID:  res.VectorID,
		IndexedAt: formatTime(res.IndexedAt),
	}
}

func newSearchResponse(res *usecase.SearchRes) *SearchResponse {
	return &SearchResponse{
		Success:      true,
		Exact:        toHitResponses(res.Exact),
		Similar:      toHitResponses(res.Similar),
		SearchTimeMs: res.SearchTime.Milliseconds(),
		TotalIndexed: res.TotalIndexed,
		Degraded:     res.Degraded,
	}
}

func toHitResponses(hits []domain.SearchHit) []SearchHitResponse {
	out := make([]SearchHitResponse, 0, len(hits))
	for _, h := range hits {
		hit := SearchHitResponse{ProductID: h.ProductID, Score: h.Score}
		if m := h.Metadata; m != nil {
			hit.Name = m.Name
			hit.Price = m.Price
			hit.ImageKey = m.ImageKey
			hit.Colors = m.Colors
			hit.Occasions = m.Occasions
			hit.Tags = m.Tags
			hit.ShopID = m.ShopID
		}
		out = append(out, hit)
	}

	return out
}

func newBatchIndexResponse(report *domain.BatchIndexReport) *BatchIndexResponse {
	errs := make([]BatchItemError, 0, len(report.Errors))
	for _, ie := range report.Errors {
		errs = append(errs, BatchItemError{ProductID: ie.ProductID, Error: itemErrorMessage(ie.Err)})
	}

	return &BatchIndexResponse{
		Success:    true,
		Total:      report.Total,
		Indexed:    report.Indexed,
		Failed:     report.Failed,
		Errors:     errs,
		DurationMs: report.Duration.Milliseconds(),
	}
}

// itemErrorMessage возвращает понятное сообщение об ошибке товара, не раскрывая внутренние детали.
func itemErrorMessage(err error) string {
	_, msg := ToHTTPResponse(err)
	return msg
}

func newStatsResponse(res *usecase.StatsRes) *StatsResponse {
	out := &StatsResponse{
		TotalIndexed:    res.TotalIndexed,
		VectorizeStatus: res.VectorizeStatus,
		D1Rows:          res.MetadataRows,
	}
	if res.LastIndexedAt != nil {
		ts := formatTime(*res.LastIndexedAt)
		out.LastIndexedAt = &ts
	}

	return out
}

func newReconcileResponse(report *domain.ReconcileReport) *ReconcileResponse {
	return &ReconcileResponse{
		Success:               true,
		VectorsChecked:        report.VectorsChecked,
		MetadataChecked:       report.MetadataChecked,
		OrphanVectorsRemoved:  report.OrphanVectorsRemoved,
		OrphanMetadataRemoved: report.OrphanMetadataRemoved,
		DurationMs:            report.Duration.Milliseconds(),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

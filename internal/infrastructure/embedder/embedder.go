package embedder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const maxErrorBody = 4 << 10

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Image predictImage `json:"image"`
}

type predictImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type predictParameters struct {
	Dimension int `json:"dimension"`
}

type predictResponse struct {
	Predictions []struct {
		ImageEmbedding []float32 `json:"imageEmbedding"`
	} `json:"predictions"`
}

// Embedder получает эмбеддинги изображений у мультимодальной модели.
// Одновременно к провайдеру уходит не больше cfg.MaxConcurrent запросов, включая пакетные.
type Embedder struct {
	tokens usecase.TokenProvider
	client *http.Client
	cfg    *cfg.EmbeddingCfg
	url    string
	sem    chan struct{}
	logger logger.Logger
}

func NewEmbedder(tokens usecase.TokenProvider, client *http.Client, cfg *cfg.EmbeddingCfg, logger logger.Logger) *Embedder {
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 3
	}

	return &Embedder{
		tokens: tokens,
		client: client,
		cfg:    cfg,
		url:    cfg.PredictURL(),
		sem:    make(chan struct{}, limit),
		logger: logger,
	}
}

// Embed возвращает L2-нормализованный вектор изображения.
// Любая ошибка (токен, сеть, формат ответа) возвращается как ErrEmbedding с исходной причиной.
func (m *Embedder) Embed(ctx context.Context, productID int64, image []byte) (*domain.Embedding, error) {
	const op = "Embedder.Embed"

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrEmbedding, ctx.Err()))
	}
	defer func() { <-m.sem }()

	vector, err := m.predict(ctx, image)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrEmbedding, err))
	}

	return domain.NewEmbedding(productID, domain.Normalize(vector), m.cfg.Model), nil
}

// EmbedBatch векторизует изображения параллельно. Ошибка одного элемента не влияет на остальные,
// результаты возвращаются в порядке входа.
func (m *Embedder) EmbedBatch(ctx context.Context, items []usecase.EmbedItem) []usecase.EmbedResult {
	results := make([]usecase.EmbedResult, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()

			emb, err := m.Embed(ctx, item.ProductID, item.Image)
			results[i] = usecase.EmbedResult{ProductID: item.ProductID, Embedding: emb, Err: err}
		}()
	}
	wg.Wait()

	return results
}

func (m *Embedder) predict(ctx context.Context, image []byte) ([]float32, error) {
	token, err := m.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(predictRequest{
		Instances:  []predictInstance{{Image: predictImage{BytesBase64Encoded: base64.StdEncoding.EncodeToString(image)}}},
		Parameters: predictParameters{Dimension: m.cfg.Dimension},
	})
	if err != nil {
		return nil, err
	}

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrInvalidEmbeddingResponse, err)
	}

	if len(pr.Predictions) != 1 {
		return nil, fmt.Errorf("%w: expected 1 prediction, got %d", e.ErrInvalidEmbeddingResponse, len(pr.Predictions))
	}

	vector := pr.Predictions[0].ImageEmbedding
	if len(vector) != m.cfg.Dimension {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", e.ErrInvalidEmbeddingResponse, m.cfg.Dimension, len(vector))
	}

	return vector, nil
}

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/shopspring/decimal"
)

const maxResponseBytes = 16 << 20

// Client читает страницы каталога товаров магазина.
type Client struct {
	client     *http.Client
	cfg        *cfg.CatalogCfg
	baseURL    string
	priceScale decimal.Decimal
	logger     logger.Logger
}

func NewClient(client *http.Client, cfg *cfg.CatalogCfg, logger logger.Logger) *Client {
	scale := cfg.PriceScale
	if scale <= 0 {
		scale = 1
	}

	return &Client{
		client:     client,
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		priceScale: decimal.NewFromInt(scale),
		logger:     logger,
	}
}

type productRecord struct {
	ID        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	Price     json.RawMessage `json:"price"`
	ImageURL  string          `json:"image_url"`
	ShopID    *int64          `json:"shop_id"`
	Colors    []string        `json:"colors"`
	Occasions []string        `json:"occasions"`
	Tags      []string        `json:"tags"`
}

type productsEnvelope struct {
	Products []productRecord `json:"products"`
}

// ListProducts возвращает одну страницу каталога.
// Цена в каталоге указана в рублях и переводится в копейки.
func (c *Client) ListProducts(ctx context.Context, req *usecase.ListProductsReq) (*domain.CatalogPage, error) {
	const op = "Client.ListProducts"

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(req.Limit))
	q.Set("offset", strconv.Itoa(req.Offset))
	if req.ShopID != nil {
		q.Set("shop_id", strconv.FormatInt(*req.ShopID, 10))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products?"+q.Encode(), nil)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrCatalogUnavailable, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrCatalogUnavailable, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, e.Wrap(op, fmt.Errorf("%w: status %d", e.ErrCatalogUnavailable, resp.StatusCode))
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	page := &domain.CatalogPage{
		Products: make([]domain.CatalogProduct, 0, len(records)),
		Limit:    req.Limit,
		Offset:   req.Offset,
	}
	for i := range records {
		p, err := c.toCatalogProduct(&records[i])
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		page.Products = append(page.Products, p)
	}

	c.logger.Debugf("catalog page offset=%d limit=%d returned %d products", req.Offset, req.Limit, len(page.Products))

	return page, nil
}

// decodeRecords принимает как {"products": [...]}, так и голый массив.
func decodeRecords(body []byte) ([]productRecord, error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []productRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", e.ErrCatalogUnavailable, err)
		}
		return records, nil
	}

	var env productsEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrCatalogUnavailable, err)
	}

	return env.Products, nil
}

// toCatalogProduct приводит цену к копейкам умножением на PriceScale.
func (c *Client) toCatalogProduct(r *productRecord) (domain.CatalogProduct, error) {
	rawID := scalar(r.ID)
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return domain.CatalogProduct{}, fmt.Errorf("%w: id %q", e.ErrInvalidCatalogRecord, rawID)
	}

	var price int64
	if rawPrice := scalar(r.Price); rawPrice != "" {
		d, err := decimal.NewFromString(rawPrice)
		if err != nil || d.IsNegative() {
			return domain.CatalogProduct{}, fmt.Errorf("%w: product %d price %q", e.ErrInvalidCatalogRecord, id, rawPrice)
		}
		price = d.Mul(c.priceScale).Round(0).IntPart()
	}

	return domain.CatalogProduct{
		ID:        id,
		Name:      strings.TrimSpace(r.Name),
		Price:     price,
		ImageURL:  strings.TrimSpace(r.ImageURL),
		ShopID:    r.ShopID,
		Colors:    r.Colors,
		Occasions: r.Occasions,
		Tags:      r.Tags,
	}, nil
}

// scalar возвращает значение числа или строки JSON без кавычек; null дает пустую строку.
func scalar(raw json.RawMessage) string {
	v := strings.TrimSpace(string(raw))
	if v == "null" {
		return ""
	}

	if unquoted, err := strconv.Unquote(v); err == nil {
		return strings.TrimSpace(unquoted)
	}

	return v
}

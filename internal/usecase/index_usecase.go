package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/tr"
)

// IndexUseCase индексирует товары: изображение -> эмбеддинг -> векторный индекс -> метаданные.
type IndexUseCase struct {
	acquirer    ImageAcquirer
	embedder    EmbeddingInfra
	vectorRepo  VectorRepository
	metaRepo    MetadataRepository
	cacheRepo   CacheRepository
	imagesInfra ImagesInfra
	outboxRepo  OutboxRepository
	catalog     CatalogInfra
	trManager   tr.Manager
	batchCfg    *cfg.BatchCfg
	logger      logger.Logger
}

// NewIndexUC собирает usecase индексации.
// cacheRepo и outboxRepo могут быть nil: кэш и публикация событий тогда отключены.
func NewIndexUC(
	acquirer ImageAcquirer,
	embedder EmbeddingInfra,
	vectorRepo VectorRepository,
	metaRepo MetadataRepository,
	cacheRepo CacheRepository,
	imagesInfra ImagesInfra,
	outboxRepo OutboxRepository,
	catalog CatalogInfra,
	trManager tr.Manager,
	batchCfg *cfg.BatchCfg,
	logger logger.Logger,
) *IndexUseCase {
	if cacheRepo == nil {
		cacheRepo = nopCache{}
	}
	if trManager == nil {
		trManager = tr.NopManager{}
	}

	return &IndexUseCase{
		acquirer:    acquirer,
		embedder:    embedder,
		vectorRepo:  vectorRepo,
		metaRepo:    metaRepo,
		cacheRepo:   cacheRepo,
		imagesInfra: imagesInfra,
		outboxRepo:  outboxRepo,
		catalog:     catalog,
		trManager:   trManager,
		batchCfg:    batchCfg,
		logger:      logger,
	}
}

// IndexProduct индексирует один товар. Шаги выполняются строго последовательно.
// Если вектор записан, а метаданные нет, вектор останется без метаданных до ближайшей сверки.
func (i *IndexUseCase) IndexProduct(ctx context.Context, req *IndexProductReq) (_ *IndexProductRes, err error) {
	const op = "IndexUseCase.IndexProduct"

	src, err := i.validateIndexReq(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	image, err := i.acquirer.Acquire(ctx, src)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	embedding, err := i.embedder.Embed(ctx, req.ProductID, image.Bytes)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	imageKey := image.Source.Value
	if image.Source.Kind == domain.ImageSourceBase64 {
		if i.imagesInfra == nil {
			return nil, e.Wrap(op, fmt.Errorf("inline images require object storage"))
		}

		imageKey, err = i.imagesInfra.UploadImage(ctx, req.ProductID, image)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		// Загруженный объект никому не нужен, если товар так и не проиндексирован
		defer func() {
			if err != nil {
				i.logger.Warnf("cleaning up orphaned image %s after failed indexing of product %d", imageKey, req.ProductID)
				i.imagesInfra.CleanupImages([]string{imageKey})
			}
		}()
	}

	meta := domain.NewProductMetadata(
		req.ProductID, strings.TrimSpace(req.Name), req.Price, imageKey,
		req.Colors, req.Occasions, req.Tags, req.ShopID,
	)

	saved, err := i.store(ctx, meta, embedding)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	i.publish(ctx, []*domain.ProductMetadata{saved})

	return NewIndexProductRes(saved.ProductID, saved.UpdatedAt), nil
}

// DeleteProduct удаляет вектор и метаданные товара. Отсутствие товара ошибкой не считается.
func (i *IndexUseCase) DeleteProduct(ctx context.Context, productID int64) (*DeleteProductRes, error) {
	const op = "IndexUseCase.DeleteProduct"

	if productID <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidProductID)
	}

	if err := i.vectorRepo.Delete(ctx, productID); err != nil {
		return nil, e.Wrap(op, err)
	}

	var existed bool
	err := i.trManager.Do(ctx, func(ctx context.Context) error {
		meta, err := i.metaRepo.Get(ctx, productID)
		if err != nil {
			return err
		}

		existed, err = i.metaRepo.Delete(ctx, productID)
		if err != nil {
			return err
		}

		if !existed {
			return nil
		}

		var shopID *int64
		if meta != nil {
			shopID = meta.ShopID
		}

		return i.enqueueEvent(ctx, domain.EventProductDeleted, productID, shopID)
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	i.invalidate(ctx, productID)

	if !existed {
		i.logger.Debugf("product %d had no metadata record, delete is a no-op", productID)
	}

	return &DeleteProductRes{ProductID: productID, Deleted: true}, nil
}

// BatchIndex индексирует страницу каталога. Ошибка отдельного товара попадает в отчет
// и не останавливает остальные; прерывает пакет только недоступность каталога.
func (i *IndexUseCase) BatchIndex(ctx context.Context, req *BatchIndexReq) (*domain.BatchIndexReport, error) {
	const op = "IndexUseCase.BatchIndex"
	start := time.Now()

	if err := i.normalizeBatchReq(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	page, err := i.catalog.ListProducts(ctx, NewListProductsReq(req.Limit, req.Offset, req.ShopID))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	items := make([]batchItem, len(page.Products))
	for idx := range page.Products {
		items[idx].product = &page.Products[idx]
	}

	i.acquireBatch(ctx, items)
	i.embedBatch(ctx, items)
	i.upsertVectors(ctx, items)
	i.storeBatch(ctx, items)

	report := &domain.BatchIndexReport{Total: len(items)}
	saved := make([]*domain.ProductMetadata, 0, len(items))
	for _, it := range items {
		if it.err != nil {
			report.Failed++
			report.Errors = append(report.Errors, domain.ItemError{ProductID: it.product.ID, Err: it.err})
			i.logger.Warnf("batch index: product %d failed: %v", it.product.ID, it.err)
			continue
		}
		report.Indexed++
		saved = append(saved, it.saved)
	}

	i.publish(ctx, saved)

	report.Duration = time.Since(start)
	i.logger.Infof("batch index offset=%d limit=%d: total=%d indexed=%d failed=%d in %s",
		req.Offset, req.Limit, report.Total, report.Indexed, report.Failed, report.Duration)

	return report, nil
}

// batchItem состояние одного товара на этапах пакетной индексации.
// После первой ошибки товар пропускается на всех следующих этапах.
type batchItem struct {
	product   *domain.CatalogProduct
	image     *domain.AcquiredImage
	meta      *domain.ProductMetadata
	embedding *domain.Embedding
	saved     *domain.ProductMetadata
	err       error
}

func (i *IndexUseCase) acquireBatch(ctx context.Context, items []batchItem) {
	sem := make(chan struct{}, i.batchConcurrency())
	var wg sync.WaitGroup

	for idx := range items {
		it := &items[idx]
		if it.product.ImageURL == "" {
			it.err = e.ErrNoImageURL
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			it.image, it.err = i.acquirer.Acquire(ctx, domain.NewURLSource(it.product.ImageURL))
		}()
	}

	wg.Wait()
}

func (i *IndexUseCase) embedBatch(ctx context.Context, items []batchItem) {
	pending := make([]EmbedItem, 0, len(items))
	for _, it := range items {
		if it.err == nil {
			pending = append(pending, EmbedItem{ProductID: it.product.ID, Image: it.image.Bytes})
		}
	}
	if len(pending) == 0 {
		return
	}

	results := i.embedder.EmbedBatch(ctx, pending)

	next := 0
	for idx := range items {
		it := &items[idx]
		if it.err != nil {
			continue
		}
		res := results[next]
		next++

		if res.Err != nil {
			it.err = res.Err
			continue
		}
		it.embedding = res.Embedding

		p := it.product
		it.meta = domain.NewProductMetadata(p.ID, p.Name, p.Price, it.image.Source.Value, p.Colors, p.Occasions, p.Tags, p.ShopID)
	}
}

func (i *IndexUseCase) upsertVectors(ctx context.Context, items []batchItem) {
	points := make([]domain.IndexPoint, 0, len(items))
	for _, it := range items {
		if it.err == nil {
			points = append(points, *domain.NewIndexPoint(it.product.ID, it.embedding.Vector, domain.NewPayload(it.meta, it.embedding.Model)))
		}
	}
	if len(points) == 0 {
		return
	}

	res, err := i.vectorRepo.UpsertBatch(ctx, points)
	for idx := range items {
		it := &items[idx]
		if it.err != nil {
			continue
		}
		if err != nil {
			it.err = err
			continue
		}
		if failed, ok := res.Failed[it.product.ID]; ok {
			it.err = failed
		}
	}

	if err == nil && res.FailedChunks > 0 {
		i.logger.Warnf("batch index: %d of %d vector chunks failed", res.FailedChunks, res.Chunks)
	}
}

func (i *IndexUseCase) storeBatch(ctx context.Context, items []batchItem) {
	for idx := range items {
		it := &items[idx]
		if it.err != nil {
			continue
		}

		it.saved, it.err = i.saveMetadata(ctx, it.meta)
	}
}

// store записывает вектор, затем метаданные и событие в одной транзакции.
func (i *IndexUseCase) store(ctx context.Context, meta *domain.ProductMetadata, embedding *domain.Embedding) (*domain.ProductMetadata, error) {
	point := domain.NewIndexPoint(meta.ProductID, embedding.Vector, domain.NewPayload(meta, embedding.Model))
	if err := i.vectorRepo.Upsert(ctx, point); err != nil {
		return nil, err
	}

	return i.saveMetadata(ctx, meta)
}

func (i *IndexUseCase) saveMetadata(ctx context.Context, meta *domain.ProductMetadata) (*domain.ProductMetadata, error) {
	var saved *domain.ProductMetadata
	err := i.trManager.Do(ctx, func(ctx context.Context) error {
		var err error
		saved, err = i.metaRepo.Upsert(ctx, meta)
		if err != nil {
			return err
		}

		return i.enqueueEvent(ctx, domain.EventProductIndexed, meta.ProductID, meta.ShopID)
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// enqueueEvent кладет событие в outbox в текущей транзакции. Без outbox ничего не делает.
func (i *IndexUseCase) enqueueEvent(ctx context.Context, eventType domain.OutboxEventType, productID int64, shopID *int64) error {
	if i.outboxRepo == nil {
		return nil
	}

	event := domain.NewIndexEvent(eventType, productID, shopID)
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = i.outboxRepo.Create(ctx, &domain.OutboxEvent{
		EventID:   event.EventID,
		EventType: eventType,
		ProductID: productID,
		Payload:   payload,
		Status:    domain.OutboxPending,
	})

	return err
}

// publish кладет сохраненные записи в кэш поверх прежних версий.
// Если записать не удалось, ключи удаляются, чтобы поиск не видел устаревшие данные.
func (i *IndexUseCase) publish(ctx context.Context, saved []*domain.ProductMetadata) {
	if len(saved) == 0 {
		return
	}

	err := i.cacheRepo.SetProducts(ctx, saved)
	if err == nil {
		return
	}
	i.logger.Warnf("failed to write indexed metadata to cache: %v", err)

	ids := make([]int64, len(saved))
	for idx, meta := range saved {
		ids[idx] = meta.ProductID
	}
	if err := i.cacheRepo.DeleteProducts(ctx, ids); err != nil {
		i.logger.Warnf("failed to invalidate cached metadata: %v", err)
	}
}

func (i *IndexUseCase) invalidate(ctx context.Context, productID int64) {
	if err := i.cacheRepo.DeleteProducts(ctx, []int64{productID}); err != nil {
		i.logger.Warnf("failed to invalidate cached metadata of product %d: %v", productID, err)
	}
}

func (i *IndexUseCase) batchConcurrency() int {
	if i.batchCfg.Concurrency <= 0 {
		return 1
	}

	return i.batchCfg.Concurrency
}

// validateIndexReq проверяет запрос и возвращает источник изображения.
func (i *IndexUseCase) validateIndexReq(req *IndexProductReq) (domain.ImageSource, error) {
	if req.ProductID <= 0 {
		return domain.ImageSource{}, e.ErrInvalidProductID
	}

	if strings.TrimSpace(req.Name) == "" {
		return domain.ImageSource{}, e.ErrProductNameRequired
	}

	if req.Price < 0 {
		return domain.ImageSource{}, e.ErrPriceMustBePositive
	}

	return imageSource(req.ImageURL, req.ImageBase64)
}

func (i *IndexUseCase) normalizeBatchReq(req *BatchIndexReq) error {
	if req.Source == "" {
		req.Source = BatchSourceCatalog
	}
	if req.Source != BatchSourceCatalog {
		return e.ErrUnsupportedSource
	}

	if req.Limit == 0 {
		req.Limit = i.batchCfg.DefaultLimit
	}
	if req.Limit < 0 || req.Limit > i.batchCfg.MaxLimit {
		return e.ErrInvalidLimit
	}

	if req.Offset < 0 {
		return e.ErrInvalidOffset
	}

	return nil
}

// imageSource требует ровно один источник изображения.
func imageSource(imageURL, imageBase64 string) (domain.ImageSource, error) {
	imageURL = strings.TrimSpace(imageURL)
	imageBase64 = strings.TrimSpace(imageBase64)

	switch {
	case imageURL != "" && imageBase64 == "":
		return domain.NewURLSource(imageURL), nil
	case imageBase64 != "" && imageURL == "":
		return domain.NewBase64Source(imageBase64), nil
	default:
		return domain.ImageSource{}, e.ErrImageSourceRequired
	}
}

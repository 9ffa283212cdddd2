package http

import (
	"net/http"
	"strconv"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type IndexHandler struct {
	indexUsecase usecase.IndexUC
	logger       logger.Logger
	opts         *handlerOptions
}

func NewIndexHandler(indexUsecase usecase.IndexUC, logger logger.Logger, opts *handlerOptions) *IndexHandler {
	return &IndexHandler{indexUsecase: indexUsecase, logger: logger, opts: opts}
}

// indexProduct
//
//	@Summary		Индексация товара
//	@Description	Получает изображение товара, строит эмбеддинг и сохраняет вектор и метаданные
//	@Tags			index
//	@Accept			json
//	@Produce		json
//	@Param			request	body		IndexRequest	true	"Товар"
//	@Success		200		{object}	IndexResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации или формата изображения"
//	@Failure		413		{object}	ErrorResponse	"Изображение слишком большое"
//	@Failure		502		{object}	ErrorResponse	"Ошибка провайдера эмбеддингов"
//	@Failure		503		{object}	ErrorResponse	"Векторный индекс недоступен"
//	@Router			/index [post]
func (h *IndexHandler) indexProduct(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := decodeJSON(w, r, h.opts.maxBodyBytes, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.indexUsecase.IndexProduct(r.Context(), req.toUsecase())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Infof("product %d indexed", res.ProductID)
	WriteSuccess(w, http.StatusOK, newIndexResponse(res))
}

// deleteProduct
//
//	@Summary		Удаление товара из индекса
//	@Description	Удаляет вектор и метаданные товара. Повторное удаление не ошибка
//	@Tags			index
//	@Produce		json
//	@Param			product_id	path		int	true	"ID товара"
//	@Success		200			{object}	DeleteResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/index/{product_id} [delete]
func (h *IndexHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil {
		h.fail(w, r, e.ErrInvalidProductID)
		return
	}

	res, err := h.indexUsecase.DeleteProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Infof("product %d removed from index", res.ProductID)
	WriteSuccess(w, http.StatusOK, &DeleteResponse{Success: true, ProductID: res.ProductID, Deleted: res.Deleted})
}

// batchIndex
//
//	@Summary		Пакетная индексация страницы каталога
//	@Description	Ошибки отдельных товаров возвращаются в errors и не прерывают пакет
//	@Tags			index
//	@Accept			json
//	@Produce		json
//	@Param			request	body		BatchIndexRequest	false	"Страница каталога"
//	@Success		200		{object}	BatchIndexResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse	"Каталог недоступен"
//	@Router			/batch-index [post]
func (h *IndexHandler) batchIndex(w http.ResponseWriter, r *http.Request) {
	var req BatchIndexRequest
	if err := decodeJSON(w, r, h.opts.maxBodyBytes, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.indexUsecase.BatchIndex(r.Context(), req.toUsecase())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newBatchIndexResponse(report))
}

func (h *IndexHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := WriteError(w, err, h.opts.withDetails)
	logFailure(h.logger, r, code, err)
}

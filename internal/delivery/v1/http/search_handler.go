package http

import (
	"net/http"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
	opts          *handlerOptions
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger, opts *handlerOptions) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger, opts: opts}
}

// search
//
//	@Summary		Поиск похожих букетов
//	@Description	Ищет товары, визуально похожие на изображение. Результаты делятся на exact (>= 0.85) и similar (0.70..0.85)
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SearchRequest	true	"Изображение и параметры поиска"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/search [post]
func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(w, r, h.opts.maxBodyBytes, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.searchUsecase.Search(r.Context(), req.toUsecase())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Debugf("search: %d exact, %d similar in %s", len(res.Exact), len(res.Similar), res.SearchTime)
	WriteSuccess(w, http.StatusOK, newSearchResponse(res))
}

func (h *SearchHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := WriteError(w, err, h.opts.withDetails)
	logFailure(h.logger, r, code, err)
}
